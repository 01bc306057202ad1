// Package source collects video batches from the catalog API, trending pages and channel feeds.
package source

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/elonfeng/vidradar/internal/logger"
	"github.com/elonfeng/vidradar/pkg/video"
)

var (
	ErrNoAPIKey      = errors.New("source: api key required")
	ErrQuotaExceeded = errors.New("source: api quota exceeded")
)

const defaultUserAgent = "vidradar/1.0"

// Query is what a collector is asked for.
type Query struct {
	Text   string `json:"query"`
	Region string `json:"region"`
	// Limit caps the records per batch; zero uses the collector default.
	Limit int `json:"limit,omitempty"`
}

// Collector is the interface every video source must implement.
type Collector interface {
	Name() string
	Collect(ctx context.Context, q Query) ([]video.Batch, error)
}

// CollectError records which collector failed for which query.
type CollectError struct {
	Source string
	Query  string
	Err    error
}

func (e *CollectError) Error() string {
	return fmt.Sprintf("%s: collect %q: %v", e.Source, e.Query, e.Err)
}

func (e *CollectError) Unwrap() error {
	return e.Err
}

// CollectAll runs every collector in order. Failures are logged and returned, and the
// batches of the remaining collectors are still collected.
func CollectAll(ctx context.Context, collectors []Collector, q Query, log logger.Logger) ([]video.Batch, []error) {
	log = logger.OrNop(log)

	var (
		batches []video.Batch
		errs    []error
	)
	for _, c := range collectors {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		start := time.Now()
		got, err := c.Collect(ctx, q)
		if err != nil {
			var ce *CollectError
			if !errors.As(err, &ce) {
				err = &CollectError{Source: c.Name(), Query: q.Text, Err: err}
			}
			log.Warn("collector failed",
				logger.String("source", c.Name()),
				logger.String("query", q.Text),
				logger.Error(err),
			)
			errs = append(errs, err)
		}

		n := 0
		for _, b := range got {
			n += len(b.Videos)
		}
		log.Info("collected",
			logger.String("source", c.Name()),
			logger.String("region", q.Region),
			logger.Int("batches", len(got)),
			logger.Int("videos", n),
			logger.Duration("took", time.Since(start)),
		)
		batches = append(batches, got...)
	}
	return batches, errs
}

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &http.Client{Timeout: timeout}
}
