package feed

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"strings"

	"github.com/mmcdole/gofeed/atom"
	ext "github.com/mmcdole/gofeed/extensions"
	"github.com/mmcdole/gofeed/rss"
	xpp "github.com/mmcdole/goxpp"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/language"
)

var ErrUnrecognizedFormat = errors.New("unrecognized feed format: expected RSS 2.0 or Atom")

// sourceFormat is one of the two supported feed dialects. Exactly one of the
// fields is set after decoding.
type sourceFormat struct {
	rss  *rss.Feed
	atom *atom.Feed
}

type Normalizer struct{}

func NewNormalizer() *Normalizer {
	return &Normalizer{}
}

func (n *Normalizer) Run(data []byte) (*ParsedFeed, error) {
	src, err := decode(data)
	if err != nil {
		return nil, err
	}

	switch {
	case src.rss != nil:
		return fromRSS(src.rss), nil
	case src.atom != nil:
		return fromAtom(src.atom), nil
	}
	return nil, ErrUnrecognizedFormat
}

func decode(data []byte) (sourceFormat, error) {
	root, err := rootElement(data)
	if err != nil {
		return sourceFormat{}, err
	}

	switch root {
	case "rss":
		// gofeed parsers keep per-document state, so a fresh one per call
		parsed, err := (&rss.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return sourceFormat{}, fmt.Errorf("failed to parse RSS feed: %w", err)
		}
		return sourceFormat{rss: parsed}, nil
	case "feed":
		parsed, err := (&atom.Parser{}).Parse(bytes.NewReader(data))
		if err != nil {
			return sourceFormat{}, fmt.Errorf("failed to parse Atom feed: %w", err)
		}
		return sourceFormat{atom: parsed}, nil
	}

	return sourceFormat{}, ErrUnrecognizedFormat
}

func rootElement(data []byte) (string, error) {
	p := xpp.NewXMLPullParser(bytes.NewReader(data), false, charset.NewReaderLabel)

	for {
		event, err := p.Next()
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnrecognizedFormat, err)
		}
		if event == xpp.EndDocument {
			return "", ErrUnrecognizedFormat
		}
		if event == xpp.StartTag {
			return strings.ToLower(p.Name), nil
		}
	}
}

func fromRSS(channel *rss.Feed) *ParsedFeed {
	parsed := &ParsedFeed{
		Title:       cmp.Or(text(channel.Title), UntitledFeed),
		SiteURL:     text(channel.Link),
		Description: text(channel.Description),
		Language:    canonicalLanguage(channel.Language),
		Items:       make([]ParsedFeedItem, 0, len(channel.Items)),
	}
	if channel.Image != nil {
		parsed.IconURL = text(channel.Image.URL)
	}

	for _, item := range channel.Items {
		if item == nil {
			continue
		}
		parsed.Items = append(parsed.Items, fromRSSItem(item))
	}

	return parsed
}

func fromRSSItem(item *rss.Item) ParsedFeedItem {
	parsed := ParsedFeedItem{
		Title:       cmp.Or(text(item.Title), UntitledItem),
		URL:         text(item.Link),
		Description: text(item.Description),
		Content:     cmp.Or(text(item.Content), extensionValue(item.Extensions, "content", "encoded")),
		Published:   text(item.PubDate),
		ImageURL:    rssImage(item),
	}

	var creator, date string
	if item.DublinCoreExt != nil {
		creator = first(item.DublinCoreExt.Creator)
		date = first(item.DublinCoreExt.Date)
	}
	parsed.Author = cmp.Or(creator, text(item.Author))
	if parsed.Published == "" {
		parsed.Published = date
	}

	if item.GUID != nil {
		parsed.GUID = text(item.GUID.Value)
	}

	return parsed
}

func rssImage(item *rss.Item) string {
	if item.Enclosure != nil && strings.HasPrefix(strings.ToLower(item.Enclosure.Type), "image/") {
		if url := text(item.Enclosure.URL); url != "" {
			return url
		}
	}
	return mediaImage(item.Extensions)
}

// mediaImage reads a Media RSS thumbnail, then an image-typed media:content.
func mediaImage(extensions ext.Extensions) string {
	media, ok := extensions["media"]
	if !ok {
		return ""
	}

	for _, thumb := range media["thumbnail"] {
		if url := text(thumb.Attrs["url"]); url != "" {
			return url
		}
	}

	for _, content := range media["content"] {
		medium := content.Attrs["medium"]
		mime := strings.ToLower(content.Attrs["type"])
		if medium == "image" || strings.HasPrefix(mime, "image/") || (medium == "" && mime == "") {
			if url := text(content.Attrs["url"]); url != "" {
				return url
			}
		}
	}

	return ""
}

func fromAtom(feed *atom.Feed) *ParsedFeed {
	parsed := &ParsedFeed{
		Title:       cmp.Or(text(feed.Title), UntitledFeed),
		SiteURL:     alternateLink(feed.Links),
		Description: text(feed.Subtitle),
		Language:    canonicalLanguage(feed.Language),
		IconURL:     cmp.Or(text(feed.Icon), text(feed.Logo)),
		Items:       make([]ParsedFeedItem, 0, len(feed.Entries)),
	}

	for _, entry := range feed.Entries {
		if entry == nil {
			continue
		}
		parsed.Items = append(parsed.Items, fromAtomEntry(entry))
	}

	return parsed
}

func fromAtomEntry(entry *atom.Entry) ParsedFeedItem {
	parsed := ParsedFeedItem{
		Title:       cmp.Or(text(entry.Title), UntitledItem),
		URL:         alternateLink(entry.Links),
		Description: text(entry.Summary),
		Published:   cmp.Or(text(entry.Published), text(entry.Updated)),
		GUID:        text(entry.ID),
		ImageURL:    mediaImage(entry.Extensions),
	}

	if entry.Content != nil {
		parsed.Content = text(entry.Content.Value)
	}

	for _, author := range entry.Authors {
		if author == nil {
			continue
		}
		if name := text(author.Name); name != "" {
			parsed.Author = name
			break
		}
	}

	return parsed
}

// alternateLink returns the href of the first link with rel="alternate" or no rel.
func alternateLink(links []*atom.Link) string {
	for _, link := range links {
		if link == nil {
			continue
		}
		rel := strings.TrimSpace(link.Rel)
		if rel == "" || rel == "alternate" {
			return text(link.Href)
		}
	}
	return ""
}

func extensionValue(extensions ext.Extensions, prefix, name string) string {
	for _, e := range extensions[prefix][name] {
		if value := text(e.Value); value != "" {
			return value
		}
	}
	return ""
}

func canonicalLanguage(raw string) string {
	raw = text(raw)
	if raw == "" {
		return ""
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return raw
	}
	return tag.String()
}

func first(values []string) string {
	for _, v := range values {
		if t := text(v); t != "" {
			return t
		}
	}
	return ""
}

func text(s string) string {
	return strings.TrimSpace(s)
}
