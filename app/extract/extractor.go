package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/lysyi3m/wp-extractor/app/text"
	"github.com/lysyi3m/wp-extractor/app/wordpress"
)

type Extractor struct {
	fetcher Fetcher
}

func NewExtractor(fetcher Fetcher) *Extractor {
	return &Extractor{fetcher: fetcher}
}

// Run walks every page of the collection in order and returns the normalized
// posts. Pages are fetched one at a time; a page that cannot be fetched ends
// the walk like an empty page does. Only a done context or a reporter error
// makes Run fail.
func (e *Extractor) Run(ctx context.Context, params Params, reporter Reporter) (*Outcome, error) {
	if reporter == nil {
		reporter = discard
	}

	posts := make([]Post, 0)
	totalPages := 0

	for page := 1; ; page++ {
		err := reporter.Report(ctx, Progress{
			CurrentPage:    page,
			TotalPages:     totalPages,
			ProcessedPosts: len(posts),
			Status:         pageStatus(page, totalPages),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to report progress: %w", err)
		}

		result := e.fetcher.FetchPage(ctx, wordpress.Query{
			BaseURL:  params.BaseURL,
			PostType: params.PostType,
			Page:     page,
			PerPage:  params.PerPage,
			After:    params.After,
		})
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("extraction interrupted on page %d: %w", page, err)
		}

		totalPages = result.TotalPages
		if len(result.Items) == 0 {
			break
		}

		for _, raw := range result.Items {
			post, err := buildPost(raw)
			if err != nil {
				slog.Warn("Error processing post", "id", rawID(raw), "page", page, "error", err)
				continue
			}
			posts = append(posts, *post)

			if len(posts)%ProgressEvery == 0 {
				err := reporter.Report(ctx, Progress{
					CurrentPage:    page,
					TotalPages:     totalPages,
					ProcessedPosts: len(posts),
					Status:         postsStatus(len(posts)),
				})
				if err != nil {
					return nil, fmt.Errorf("failed to report progress: %w", err)
				}
			}
		}

		slog.Debug("Processed page", "page", page, "total_pages", totalPages, "posts", len(posts))

		if page >= totalPages {
			break
		}
	}

	return &Outcome{Posts: posts, TotalPages: totalPages}, nil
}

func buildPost(raw json.RawMessage) (*Post, error) {
	wp, err := wordpress.DecodePost(raw)
	if err != nil {
		return nil, err
	}

	published, err := wordpress.ParseDate(*wp.Date)
	if err != nil {
		return nil, err
	}

	return &Post{
		ID:      *wp.ID,
		Date:    published.Format(DateLayout),
		Title:   text.Flatten(*wp.Title.Rendered),
		Content: text.WithLineBreaks(*wp.Content.Rendered),
	}, nil
}

func rawID(raw json.RawMessage) string {
	var probe struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil || len(probe.ID) == 0 {
		return "unknown"
	}
	return string(probe.ID)
}
