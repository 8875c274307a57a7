package wordpress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestClient_FetchPage_QueryParameters(t *testing.T) {
	var gotPath string
	var gotQuery map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = map[string]string{}
		for k := range r.URL.Query() {
			gotQuery[k] = r.URL.Query().Get(k)
		}
		w.Header().Set("X-WP-TotalPages", "7")
		w.Write([]byte(`[{"id":1},{"id":2}]`))
	}))
	defer server.Close()

	client := NewClient(time.Second, "test-agent")
	page := client.FetchPage(context.Background(), Query{
		BaseURL:  server.URL + "/",
		PostType: "pages",
		Page:     3,
		After:    "2024-01-15T00:00:00",
	})

	if gotPath != "/wp-json/wp/v2/pages" {
		t.Errorf("Expected path /wp-json/wp/v2/pages, got %s", gotPath)
	}

	expected := map[string]string{
		"per_page": "100",
		"page":     "3",
		"status":   "publish",
		"orderby":  "date",
		"order":    "desc",
		"after":    "2024-01-15T00:00:00",
	}
	for k, v := range expected {
		if gotQuery[k] != v {
			t.Errorf("Expected query %s=%s, got %q", k, v, gotQuery[k])
		}
	}

	if len(page.Items) != 2 {
		t.Errorf("Expected 2 items, got %d", len(page.Items))
	}
	if page.TotalPages != 7 {
		t.Errorf("Expected 7 total pages, got %d", page.TotalPages)
	}
}

func TestClient_FetchPage_OmitsEmptyAfter(t *testing.T) {
	hasAfter := true
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasAfter = r.URL.Query()["after"]
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	NewClient(time.Second, "").FetchPage(context.Background(), Query{BaseURL: server.URL, PostType: "posts", Page: 1})

	if hasAfter {
		t.Error("Expected no after parameter when After is empty")
	}
}

func TestClient_FetchPage_MissingHeaderDefaultsToOnePage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id":1}]`))
	}))
	defer server.Close()

	page := NewClient(time.Second, "").FetchPage(context.Background(), Query{BaseURL: server.URL, PostType: "posts", Page: 1})
	if page.TotalPages != 1 {
		t.Errorf("Expected 1 total page, got %d", page.TotalPages)
	}
}

func TestClient_FetchPage_FailuresLookLikeExhaustion(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-WP-TotalPages", "5")
			w.WriteHeader(http.StatusInternalServerError)
		}},
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"code":"rest_post_invalid_page_number"}`))
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-WP-TotalPages", "5")
			w.Write([]byte(`<html>maintenance</html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			page := NewClient(time.Second, "").FetchPage(context.Background(), Query{BaseURL: server.URL, PostType: "posts", Page: 1})
			if len(page.Items) != 0 || page.TotalPages != 0 {
				t.Errorf("Expected empty page with 0 total pages, got %d items and %d pages", len(page.Items), page.TotalPages)
			}
		})
	}
}

func TestClient_FetchPage_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	page := NewClient(time.Second, "").FetchPage(context.Background(), Query{BaseURL: url, PostType: "posts", Page: 1})
	if len(page.Items) != 0 || page.TotalPages != 0 {
		t.Errorf("Expected empty page with 0 total pages, got %d items and %d pages", len(page.Items), page.TotalPages)
	}
}

func TestDecodePost_MissingFields(t *testing.T) {
	tests := map[string]string{
		"id":      `{"date":"2024-01-15T10:00:00","title":{"rendered":"t"},"content":{"rendered":"c"}}`,
		"date":    `{"id":1,"title":{"rendered":"t"},"content":{"rendered":"c"}}`,
		"title":   `{"id":1,"date":"2024-01-15T10:00:00","content":{"rendered":"c"}}`,
		"content": `{"id":1,"date":"2024-01-15T10:00:00","title":{"rendered":"t"},"content":{}}`,
		"json":    `"not an object"`,
	}

	for name, raw := range tests {
		if _, err := DecodePost([]byte(raw)); err == nil {
			t.Errorf("Expected error for post missing %s", name)
		}
	}

	post, err := DecodePost([]byte(`{"id":42,"date":"2024-01-15T10:00:00","title":{"rendered":"t"},"content":{"rendered":"c"}}`))
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}
	if *post.ID != 42 {
		t.Errorf("Expected id 42, got %d", *post.ID)
	}
}

func TestParseDate(t *testing.T) {
	tests := map[string]string{
		"2024-01-15T10:30:00":        "2024-01-15T10:30:00",
		"2024-01-15T10:30:00Z":       "2024-01-15T10:30:00",
		"2024-01-15T10:30:00.123456": "2024-01-15T10:30:00",
		"2024-01-15T10:30:00+02:00":  "2024-01-15T10:30:00",
	}

	for input, expected := range tests {
		parsed, err := ParseDate(input)
		if err != nil {
			t.Errorf("Expected %s to parse, got: %v", input, err)
			continue
		}
		if got := parsed.Format("2006-01-02T15:04:05"); got != expected {
			t.Errorf("Expected %s, got %s", expected, got)
		}
	}

	if _, err := ParseDate("15/01/2024"); err == nil {
		t.Error("Expected error for unsupported date format")
	}
}
