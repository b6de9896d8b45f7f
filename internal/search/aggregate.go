package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/sourcegraph/conc"

	"github.com/user/arthub/internal/db"
	"github.com/user/arthub/internal/sources"
)

var (
	ErrQueryTooShort    = errors.New("query too short")
	ErrAllSourcesFailed = errors.New("all sources failed")
)

// Result is the outcome of one aggregate call.
type Result struct {
	Token   uint64       `json:"token"`
	Term    string       `json:"term"`
	Records []db.Artwork `json:"results"`
	Failed  []string     `json:"failedSources"`
}

// Coordinator fans a query out to every registered source.
type Coordinator struct {
	sources  []sources.Source
	minQuery int
	log      *slog.Logger

	latest atomic.Uint64
}

type Option func(*Coordinator)

// WithMinQueryLength sets the shortest term Search accepts.
func WithMinQueryLength(n int) Option {
	return func(c *Coordinator) { c.minQuery = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

func NewCoordinator(srcs []sources.Source, opts ...Option) *Coordinator {
	c := &Coordinator{sources: srcs, minQuery: 3, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Sources returns the registered sources in registration order.
func (c *Coordinator) Sources() []sources.Source {
	return c.sources
}

// Aggregate queries every source concurrently and waits for all of them to
// settle. Records keep registration order; a failed source contributes
// nothing and is listed in Failed.
func (c *Coordinator) Aggregate(ctx context.Context, term string) Result {
	res, _ := c.aggregate(ctx, term)
	return res
}

func (c *Coordinator) aggregate(ctx context.Context, term string) (Result, []error) {
	token := c.latest.Add(1)

	outputs := make([][]db.Artwork, len(c.sources))
	errs := make([]error, len(c.sources))

	var wg conc.WaitGroup
	for i, src := range c.sources {
		wg.Go(func() {
			// A panicking adapter is treated like a failed one.
			defer func() {
				if r := recover(); r != nil {
					errs[i] = fmt.Errorf("panic: %v", r)
				}
			}()
			outputs[i], errs[i] = src.Search(ctx, term)
		})
	}
	wg.Wait()

	res := Result{Token: token, Term: term, Records: []db.Artwork{}, Failed: []string{}}
	var failures []error
	for i, src := range c.sources {
		if errs[i] != nil {
			c.log.Warn("source unavailable", "source", src.Name(), "term", term, "err", errs[i])
			res.Failed = append(res.Failed, src.Name())
			failures = append(failures, fmt.Errorf("%s: %w", src.Name(), errs[i]))
			continue
		}
		res.Records = append(res.Records, outputs[i]...)
	}
	return res, failures
}

// Search validates the term, aggregates and ranks. No matches is an empty
// result, not an error. ErrAllSourcesFailed is returned only when every
// registered source failed.
func (c *Coordinator) Search(ctx context.Context, term string) (Result, error) {
	term = strings.TrimSpace(term)
	if len([]rune(term)) < c.minQuery {
		return Result{Term: term, Records: []db.Artwork{}, Failed: []string{}},
			fmt.Errorf("%w: need at least %d characters", ErrQueryTooShort, c.minQuery)
	}

	res, failures := c.aggregate(ctx, term)
	if len(c.sources) > 0 && len(failures) == len(c.sources) {
		return res, fmt.Errorf("%w: %w", ErrAllSourcesFailed, errors.Join(failures...))
	}

	res.Records = Rank(term, res.Records)
	c.log.Debug("search complete", "term", term, "token", res.Token, "results", len(res.Records), "failed", len(res.Failed))
	return res, nil
}

// Current reports whether token belongs to the most recently issued call.
// Results of superseded calls should be discarded rather than displayed.
func (c *Coordinator) Current(token uint64) bool {
	return c.latest.Load() == token
}

// Invalidate supersedes every call issued so far, so none of them is
// current any more.
func (c *Coordinator) Invalidate() {
	c.latest.Add(1)
}
