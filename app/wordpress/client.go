package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	DefaultPerPage = 100
	DefaultTimeout = 30 * time.Second

	totalPagesHeader = "X-WP-TotalPages"
)

type Client struct {
	http *resty.Client
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("Accept", "application/json")
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}

	return &Client{http: client}
}

// FetchPage reads one page of a collection. Transport errors, non-2xx
// statuses and undecodable bodies are logged and reported as an empty page
// with TotalPages 0, which callers treat the same as running out of pages.
func (c *Client) FetchPage(ctx context.Context, q Query) Page {
	endpoint := q.Endpoint()
	perPage := q.PerPage
	if perPage <= 0 {
		perPage = DefaultPerPage
	}

	params := map[string]string{
		"per_page": strconv.Itoa(perPage),
		"page":     strconv.Itoa(q.Page),
		"status":   "publish",
		"orderby":  "date",
		"order":    "desc",
	}
	if q.After != "" {
		params["after"] = q.After
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(endpoint)
	if err != nil {
		slog.Error("Error fetching posts", "url", endpoint, "page", q.Page, "error", err)
		return Page{}
	}

	if resp.IsError() {
		slog.Error("Error fetching posts", "url", endpoint, "page", q.Page, "status", resp.StatusCode())
		return Page{}
	}

	var items []json.RawMessage
	if err := json.Unmarshal(resp.Body(), &items); err != nil {
		slog.Error("Error decoding posts", "url", endpoint, "page", q.Page, "error", err)
		return Page{}
	}

	return Page{
		Items:      items,
		TotalPages: totalPages(resp.Header().Get(totalPagesHeader)),
	}
}

func totalPages(header string) int {
	header = strings.TrimSpace(header)
	if header == "" {
		return 1
	}

	n, err := strconv.Atoi(header)
	if err != nil {
		slog.Warn("Invalid total pages header, assuming a single page", "header", totalPagesHeader, "value", header)
		return 1
	}
	return n
}

// Endpoint returns the collection URL for the query.
func (q Query) Endpoint() string {
	return fmt.Sprintf("%s/wp-json/wp/v2/%s", strings.TrimRight(q.BaseURL, "/"), strings.Trim(q.PostType, "/"))
}
