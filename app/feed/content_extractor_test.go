package feed

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func longArticleHTML(paragraphs int) string {
	var body []string
	for i := 0; i < paragraphs; i++ {
		body = append(body, fmt.Sprintf(`<p>This is paragraph number %d. It contains substantial content that should be extracted by the readability algorithm. The content is meaningful and provides value to readers who are interested in the topic being discussed.</p>`, i))
	}

	return `<!DOCTYPE html>
<html lang="en-gb">
<head>
	<title>Long Article</title>
	<meta property="og:image" content="/images/cover.png">
	<meta name="author" content="Jane Writer">
</head>
<body>
	<nav>Site Navigation</nav>
	<main>
		<article>
			<h1>Long Article Title</h1>
			` + strings.Join(body, "\n") + `
		</article>
	</main>
	<aside>
		<div>Advertisement</div>
	</aside>
	<footer>Copyright 2024</footer>
</body>
</html>`
}

func TestContentExtractor_Run_LongArticle(t *testing.T) {
	extractor := NewContentExtractor(nil)

	article, err := extractor.Run([]byte(longArticleHTML(10)), "https://blog.example.com/posts/long")
	if err != nil {
		t.Fatalf("Expected no error for long article, got: %v", err)
	}

	if !strings.Contains(article.Content, "paragraph number") {
		t.Errorf("Expected extracted content to contain article paragraphs")
	}
	if strings.Contains(article.Content, "Advertisement") {
		t.Errorf("Expected extracted content to exclude advertisement")
	}
	if article.WordCount < 200 {
		t.Errorf("Expected a substantial word count, got %d", article.WordCount)
	}
	if article.ImageURL != "https://blog.example.com/images/cover.png" {
		t.Errorf("Expected absolute og:image, got '%s'", article.ImageURL)
	}
	if article.Language != "en-GB" {
		t.Errorf("Expected language 'en-GB', got '%s'", article.Language)
	}
	if article.Domain != "blog.example.com" {
		t.Errorf("Expected domain 'blog.example.com', got '%s'", article.Domain)
	}
}

func TestContentExtractor_Run_EmptyData(t *testing.T) {
	extractor := NewContentExtractor(nil)

	article, err := extractor.Run(nil, "https://example.com")
	if err == nil {
		t.Fatal("Expected error for empty data")
	}
	if article != nil {
		t.Errorf("Expected nil article for empty data")
	}

	expectedError := "HTML data is empty"
	if err.Error() != expectedError {
		t.Errorf("Expected error message '%s', got '%s'", expectedError, err.Error())
	}
}

func TestContentExtractor_Extract(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Accept") != AcceptHTML {
			t.Errorf("Expected Accept '%s', got '%s'", AcceptHTML, r.Header.Get("Accept"))
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(longArticleHTML(8)))
	}))
	defer server.Close()

	extractor := NewContentExtractor(NewFetcher(server.Client(), "", 5*time.Second))

	article, err := extractor.Extract(context.Background(), server.URL+"/post")
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if !strings.Contains(article.Content, "paragraph number 7") {
		t.Errorf("Expected last paragraph in content")
	}
}

func TestContentExtractor_ExtractFetchFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	extractor := NewContentExtractor(NewFetcher(server.Client(), "", 5*time.Second))

	_, err := extractor.Extract(context.Background(), server.URL)
	if !errors.Is(err, ErrExtractionFailed) {
		t.Errorf("Expected ErrExtractionFailed, got: %v", err)
	}

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Errorf("Expected wrapped FetchError, got: %v", err)
	}
}
