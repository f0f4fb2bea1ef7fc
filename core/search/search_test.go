package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

type scriptedFetcher struct {
	text string
	err  error
}

func (f scriptedFetcher) FetchContext(context.Context, string, []string) (string, error) {
	return f.text, f.err
}

func TestMultiFallsThroughToNextEngine(t *testing.T) {
	multi := NewMulti(
		scriptedFetcher{err: errors.New("down")},
		scriptedFetcher{text: ""},
		scriptedFetcher{text: "from the third engine"},
	)

	got, err := multi.FetchContext(context.Background(), "topic", nil)
	if err != nil {
		t.Fatalf("expected success from the third engine, got %v", err)
	}
	if got != "from the third engine" {
		t.Fatalf("unexpected context: %q", got)
	}
}

func TestMultiAllFailing(t *testing.T) {
	multi := NewMulti(
		scriptedFetcher{err: errors.New("down")},
		scriptedFetcher{err: errors.New("also down")},
	)

	got, err := multi.FetchContext(context.Background(), "topic", nil)
	if err == nil || got != "" {
		t.Fatalf("expected the last failure to surface, got %q / %v", got, err)
	}
}

func TestSearXNGParsesResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("expected json format, got %q", got)
		}
		if got := r.URL.Query().Get("q"); !strings.Contains(got, "carbon tax") || !strings.Contains(got, "economics") {
			t.Errorf("expected topic and skill hints in query, got %q", got)
		}
		w.Write([]byte(`{"results": [
			{"title": "A", "content": "first snippet"},
			{"title": "B", "content": ""},
			{"title": "C", "content": "second snippet"}
		]}`))
	}))
	defer server.Close()

	engine := NewSearXNG(server.URL, "", 0)
	got, err := engine.FetchContext(context.Background(), "carbon tax", []string{"economics"})
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	if !strings.Contains(got, "first snippet") || !strings.Contains(got, "second snippet") {
		t.Fatalf("expected both non-empty snippets, got %q", got)
	}
	if strings.Contains(got, "B:") {
		t.Fatalf("expected empty-content result to be dropped, got %q", got)
	}
}

func TestSearXNGSnippetCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"results": [
			{"title": "1", "content": "s1"}, {"title": "2", "content": "s2"},
			{"title": "3", "content": "s3"}, {"title": "4", "content": "s4"},
			{"title": "5", "content": "s5"}, {"title": "6", "content": "s6"},
			{"title": "7", "content": "s7"}
		]}`))
	}))
	defer server.Close()

	engine := NewSearXNG(server.URL, "", 0)
	got, err := engine.FetchContext(context.Background(), "t", nil)
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	if strings.Contains(got, "s6") || strings.Contains(got, "s7") {
		t.Fatalf("expected snippets beyond the cap to be dropped, got %q", got)
	}
}

func TestTavilyParsesAnswerAndResults(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"answer": "the short answer", "results": [{"title": "R", "content": "supporting detail"}]}`))
	}))
	defer server.Close()

	engine := NewTavily("key")
	engine.http = server.Client()

	// Point the request at the test server by rewriting the transport.
	engine.http.Transport = rewriteHost(server.URL)

	got, err := engine.FetchContext(context.Background(), "topic", nil)
	if err != nil {
		t.Fatalf("expected fetch to succeed, got %v", err)
	}
	if !strings.Contains(got, "the short answer") || !strings.Contains(got, "supporting detail") {
		t.Fatalf("expected answer and result snippet, got %q", got)
	}
}

func TestTavilyWithoutKeyFails(t *testing.T) {
	engine := NewTavily("")
	if _, err := engine.FetchContext(context.Background(), "topic", nil); err == nil {
		t.Fatalf("expected missing key to fail")
	}
}

type hostRewriter struct {
	target string
}

func (h hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	rewritten := req.Clone(req.Context())
	rewritten.URL.Scheme = "http"
	rewritten.URL.Host = strings.TrimPrefix(h.target, "http://")
	return http.DefaultTransport.RoundTrip(rewritten)
}

func rewriteHost(target string) http.RoundTripper {
	return hostRewriter{target: target}
}
