package render

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	var html = HTML("# Rivers\n\nThe *longest* river.")
	if !strings.Contains(html, "<h1>Rivers</h1>") || !strings.Contains(html, "<em>longest</em>") {
		t.Fatalf("unexpected html %q", html)
	}
}

func TestHTMLEscapesRawHTML(t *testing.T) {
	var html = HTML(`<script>alert("x")</script>`)
	if strings.Contains(html, "<script>") {
		t.Fatalf("raw html has not been escaped: %q", html)
	}
}

func TestExcerpt(t *testing.T) {
	var html = Excerpt("First paragraph.\r\n\r\nSecond paragraph.")
	if !strings.Contains(html, "First paragraph.") || strings.Contains(html, "Second") {
		t.Fatalf("unexpected excerpt %q", html)
	}
}
