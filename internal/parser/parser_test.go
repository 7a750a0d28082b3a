package parser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePage = `<!doctype html>
<html><head>
  <title>  Plain
  Title </title>
  <meta name="description" content="A page about things.">
  <meta property="og:image" content="/img/cover.png">
  <link rel="stylesheet" href="/style.css">
  <link rel="shortcut icon" href="/static/icon.png">
</head><body><h1>Heading</h1></body></html>`

func serve(t *testing.T, contentType, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPreview_ExtractsMetadata(t *testing.T) {
	srv := serve(t, "text/html; charset=utf-8", samplePage)

	p, err := NewLinkPreviewer(time.Second).Preview(context.Background(), srv.URL+"/article")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/article", p.URL)
	assert.Equal(t, "Plain Title", p.Title)
	assert.Equal(t, "A page about things.", p.Description)
	assert.Equal(t, srv.URL+"/img/cover.png", p.Image)
	assert.Equal(t, srv.URL+"/static/icon.png", p.Favicon)
}

func TestPreview_OpenGraphWins(t *testing.T) {
	page := `<html><head><title>Plain</title>
<meta property="og:title" content="OG Title">
<meta property="og:description" content="OG description">
<meta name="description" content="meta description">
</head></html>`
	srv := serve(t, "text/html", page)

	p, err := NewLinkPreviewer(time.Second).Preview(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "OG Title", p.Title)
	assert.Equal(t, "OG description", p.Description)
	assert.Equal(t, srv.URL+"/favicon.ico", p.Favicon)
	assert.Empty(t, p.Image)
}

func TestPreview_FallsBackToHeadingThenBasename(t *testing.T) {
	srv := serve(t, "text/html", `<html><body><h1>Only Heading</h1></body></html>`)
	p, err := NewLinkPreviewer(time.Second).Preview(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Only Heading", p.Title)

	srv = serve(t, "text/html", `<html><body><p>nothing</p></body></html>`)
	p, err = NewLinkPreviewer(time.Second).Preview(context.Background(), srv.URL+"/notes/page.html")
	require.NoError(t, err)
	assert.Equal(t, "page.html", p.Title)
}

func TestPreview_NonHTML(t *testing.T) {
	srv := serve(t, "application/pdf", "%PDF-1.4")
	p, err := NewLinkPreviewer(time.Second).Preview(context.Background(), srv.URL+"/paper.pdf")
	require.NoError(t, err)
	assert.Equal(t, "paper.pdf", p.Title)
	assert.Equal(t, srv.URL+"/favicon.ico", p.Favicon)
}

func TestPreview_Errors(t *testing.T) {
	srv := serve(t, "text/html", samplePage)
	lp := NewLinkPreviewer(time.Second)

	_, err := lp.Preview(context.Background(), srv.URL+"/missing")
	assert.Error(t, err)

	_, err = lp.Preview(context.Background(), "ftp://example.com/file")
	assert.Error(t, err)

	_, err = lp.Preview(context.Background(), "https://")
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = lp.Preview(ctx, srv.URL)
	assert.Error(t, err)
}

func TestPreview_SizeCap(t *testing.T) {
	page := "<html><head><title>Big</title></head><body>" + strings.Repeat("x", 4096) + "</body></html>"
	srv := serve(t, "text/html", page)
	lp := NewLinkPreviewer(time.Second)
	lp.maxBytes = 64

	p, err := lp.Preview(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "Big", p.Title)
}

func TestBasenameFromURL(t *testing.T) {
	tests := map[string]string{
		"https://example.com/a/b.html?x=1#y": "b.html",
		"https://example.com/":               "example.com",
		"https://example.com":                "example.com",
		"not a url":                          "Untitled",
	}
	for in, want := range tests {
		assert.Equal(t, want, basenameFromURL(in), in)
	}
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "hello...", truncate("hello world", 8))
	assert.Equal(t, "abcde...", truncate("abcdefgh", 5))
}

func TestIsHTML(t *testing.T) {
	assert.True(t, isHTML(""))
	assert.True(t, isHTML("text/html; charset=utf-8"))
	assert.True(t, isHTML("application/xhtml+xml"))
	assert.False(t, isHTML("image/png"))
}
