package extract

import (
	"context"
	"fmt"

	"github.com/lysyi3m/wp-extractor/app/wordpress"
)

// DateLayout is the format of Post.Date: seconds precision, no offset.
const DateLayout = "2006-01-02T15:04:05"

// ProgressEvery is how many processed posts pass between progress reports.
const ProgressEvery = 10

type Post struct {
	ID      int64  `json:"id"`
	Date    string `json:"date"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

type Params struct {
	BaseURL  string
	PostType string
	After    string
	PerPage  int
}

type Outcome struct {
	Posts      []Post
	TotalPages int
}

// Progress is a checkpoint of a running extraction. TotalPages is 0 until
// the first page has been fetched.
type Progress struct {
	CurrentPage    int
	TotalPages     int
	ProcessedPosts int
	Status         string
}

type Fetcher interface {
	FetchPage(ctx context.Context, q wordpress.Query) wordpress.Page
}

var _ Fetcher = (*wordpress.Client)(nil)

// Reporter receives checkpoints: before each page fetch and after every
// ProgressEvery posts. A returned error aborts the extraction.
type Reporter interface {
	Report(ctx context.Context, p Progress) error
}

type ReporterFunc func(ctx context.Context, p Progress) error

func (f ReporterFunc) Report(ctx context.Context, p Progress) error {
	return f(ctx, p)
}

var discard = ReporterFunc(func(context.Context, Progress) error { return nil })

func pageStatus(page, totalPages int) string {
	if totalPages <= 0 {
		return fmt.Sprintf("Processing page %d...", page)
	}
	return fmt.Sprintf("Processing page %d of %d...", page, totalPages)
}

func postsStatus(processed int) string {
	return fmt.Sprintf("Processed %d posts...", processed)
}
