package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lysyi3m/wp-extractor/app/jobs"
	"github.com/lysyi3m/wp-extractor/app/sites"
)

const maxBodyBytes = 1 << 20

var (
	errEmptyRequest    = errors.New("Request is Empty")
	errMissingPostType = errors.New("Missing 'postType' parameter")
	errMissingBaseURL  = errors.New("Missing 'baseUrl' parameter")
)

// afterDateLayouts are tried in order; RFC 3339 accepts a fraction and Z or an offset.
var afterDateLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// bindRequest binds and validates an extraction request. An empty body, null
// and an object without any known field count as empty.
func bindRequest(c *gin.Context, registry *sites.Registry, defaultPerPage int) (jobs.Request, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)

	var raw ExtractRequest
	if err := c.ShouldBindJSON(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			return jobs.Request{}, errEmptyRequest
		}
		return jobs.Request{}, fmt.Errorf("Invalid JSON body: %w", err)
	}

	return resolveRequest(raw, registry, defaultPerPage)
}

// resolveRequest applies the site preset, then the explicit fields.
func resolveRequest(raw ExtractRequest, registry *sites.Registry, defaultPerPage int) (jobs.Request, error) {
	if raw.empty() {
		return jobs.Request{}, errEmptyRequest
	}

	req := jobs.Request{PerPage: defaultPerPage}

	if raw.Site != nil && *raw.Site != "" {
		if registry == nil {
			return jobs.Request{}, fmt.Errorf("unknown site '%s'", *raw.Site)
		}
		site, err := registry.GetSite(*raw.Site)
		if err != nil {
			return jobs.Request{}, err
		}
		req.BaseURL = site.BaseURL
		req.PostType = site.PostType
		req.PerPage = site.PerPage
	}
	if raw.BaseURL != nil {
		req.BaseURL = *raw.BaseURL
	}
	if raw.PostType != nil {
		req.PostType = *raw.PostType
	}

	if req.PostType == "" {
		return jobs.Request{}, errMissingPostType
	}
	if req.BaseURL == "" {
		return jobs.Request{}, errMissingBaseURL
	}

	if raw.AfterDate != nil && *raw.AfterDate != "" {
		after, err := normalizeAfterDate(*raw.AfterDate)
		if err != nil {
			return jobs.Request{}, err
		}
		req.After = after
	}

	return req, nil
}

// normalizeAfterDate keeps only the calendar date: the time of day and any
// offset are discarded.
func normalizeAfterDate(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, layout := range afterDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02") + "T00:00:00", nil
		}
	}
	return "", fmt.Errorf("Invalid 'afterDate' parameter: %q is not an ISO date", value)
}
