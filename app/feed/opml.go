package feed

import (
	"bytes"
	"cmp"
	"encoding/xml"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"github.com/canopy-reader/canopy/app/database"
	"golang.org/x/net/html/charset"
)

var ErrInvalidOPML = errors.New("invalid OPML")

type opmlDocument struct {
	XMLName xml.Name `xml:"opml"`
	Body    *opmlBody `xml:"body"`
}

type opmlBody struct {
	Outlines []opmlOutline `xml:"outline"`
}

type opmlOutline struct {
	Text     string        `xml:"text,attr"`
	Title    string        `xml:"title,attr"`
	Type     string        `xml:"type,attr"`
	XMLURL   string        `xml:"xmlUrl,attr"`
	HTMLURL  string        `xml:"htmlUrl,attr"`
	Outlines []opmlOutline `xml:"outline"`
}

// OPMLEntry is one feed outline with the nearest enclosing folder title.
type OPMLEntry struct {
	Title   string
	URL     string
	SiteURL string
	Folder  string
}

func ParseOPML(data []byte) ([]OPMLEntry, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: empty OPML content", ErrInvalidOPML)
	}

	var doc opmlDocument
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.CharsetReader = charset.NewReaderLabel
	decoder.Strict = false

	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOPML, err)
	}
	if doc.Body == nil {
		return nil, fmt.Errorf("%w: no body found", ErrInvalidOPML)
	}

	var entries []OPMLEntry
	var walk func(outlines []opmlOutline, folder string)
	walk = func(outlines []opmlOutline, folder string) {
		for _, o := range outlines {
			feedURL := strings.TrimSpace(o.XMLURL)
			if feedURL != "" {
				entries = append(entries, OPMLEntry{
					Title:   cmp.Or(strings.TrimSpace(o.Title), strings.TrimSpace(o.Text), feedURL),
					URL:     feedURL,
					SiteURL: strings.TrimSpace(o.HTMLURL),
					Folder:  folder,
				})
				continue
			}

			walk(o.Outlines, cmp.Or(strings.TrimSpace(o.Title), strings.TrimSpace(o.Text), folder))
		}
	}
	walk(doc.Body.Outlines, "")

	return entries, nil
}

type OPMLGenerator struct{}

func NewOPMLGenerator() *OPMLGenerator {
	return &OPMLGenerator{}
}

// Run renders feeds as an OPML 2.0 document, one outline per folder.
func (g *OPMLGenerator) Run(feeds []database.Feed, now time.Time) (string, error) {
	var buf bytes.Buffer

	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>`)
	buf.WriteString("\n")
	buf.WriteString(`<opml version="2.0">`)
	buf.WriteString("\n  <head>\n")
	g.writeElement(&buf, "title", "Canopy subscriptions", 4)
	g.writeElement(&buf, "dateCreated", now.Format(time.RFC1123Z), 4)
	buf.WriteString("  </head>\n  <body>\n")

	folders := make(map[string][]database.Feed)
	var names []string
	for _, f := range feeds {
		if f.Folder == "" {
			g.writeOutline(&buf, f, 4)
			continue
		}
		if _, ok := folders[f.Folder]; !ok {
			names = append(names, f.Folder)
		}
		folders[f.Folder] = append(folders[f.Folder], f)
	}

	sort.Strings(names)
	for _, name := range names {
		escaped := html.EscapeString(name)
		buf.WriteString(fmt.Sprintf("    <outline text=\"%s\" title=\"%s\">\n", escaped, escaped))
		for _, f := range folders[name] {
			g.writeOutline(&buf, f, 6)
		}
		buf.WriteString("    </outline>\n")
	}

	buf.WriteString("  </body>\n</opml>\n")

	return buf.String(), nil
}

func (g *OPMLGenerator) writeOutline(buf *bytes.Buffer, f database.Feed, indent int) {
	buf.WriteString(strings.Repeat(" ", indent))
	title := html.EscapeString(cmp.Or(f.Title, f.URL))
	buf.WriteString(fmt.Sprintf("<outline type=\"rss\" text=\"%s\" title=\"%s\" xmlUrl=\"%s\"",
		title, title, html.EscapeString(f.URL)))
	if f.SiteURL != "" {
		buf.WriteString(fmt.Sprintf(" htmlUrl=\"%s\"", html.EscapeString(f.SiteURL)))
	}
	buf.WriteString("/>\n")
}

func (g *OPMLGenerator) writeElement(buf *bytes.Buffer, tag, content string, indent int) {
	if content == "" {
		return
	}

	buf.WriteString(strings.Repeat(" ", indent))
	buf.WriteString("<")
	buf.WriteString(tag)
	buf.WriteString(">")
	xml.EscapeText(buf, []byte(content))
	buf.WriteString("</")
	buf.WriteString(tag)
	buf.WriteString(">\n")
}
