// Package preview derives link previews for chat messages: specialized
// extractors first, then a bounded metadata fetch of the linked page.
package preview

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"chathub/internal/metrics"
	"chathub/internal/models"
)

var urlPattern = regexp.MustCompile(`https?://\S+`)

// FirstURL returns the first http(s) URL in text, without trailing sentence
// punctuation or an unbalanced closing bracket.
func FirstURL(text string) string {
	raw := urlPattern.FindString(text)
	for raw != "" {
		last := raw[len(raw)-1]
		switch {
		case strings.IndexByte(".,;:!?'\"", last) >= 0:
			raw = raw[:len(raw)-1]
		case last == ')' && strings.Count(raw, "(") < strings.Count(raw, ")"):
			raw = raw[:len(raw)-1]
		case last == ']' && strings.Count(raw, "[") < strings.Count(raw, "]"):
			raw = raw[:len(raw)-1]
		default:
			return raw
		}
	}
	return ""
}

// Fetcher loads page metadata. Errors wrap models.ErrFetch.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (Metadata, error)
}

// Cache remembers generic fetch outcomes per URL. A nil preview with found set
// is a remembered "no preview".
type Cache interface {
	Get(ctx context.Context, rawURL string) (p *models.LinkPreview, found bool, err error)
	Set(ctx context.Context, rawURL string, p *models.LinkPreview) error
}

type Enricher struct {
	fetcher    Fetcher
	cache      Cache
	extractors []Extractor
	timeout    time.Duration
	log        *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Enricher)

func WithCache(c Cache) Option { return func(e *Enricher) { e.cache = c } }

func WithTimeout(d time.Duration) Option { return func(e *Enricher) { e.timeout = d } }

func WithLogger(l *slog.Logger) Option { return func(e *Enricher) { e.log = l } }

func WithMetrics(m *metrics.Metrics) Option { return func(e *Enricher) { e.metrics = m } }

// WithExtractors replaces the specialized extractors. Order is priority.
func WithExtractors(ex ...Extractor) Option { return func(e *Enricher) { e.extractors = ex } }

func New(fetcher Fetcher, opts ...Option) *Enricher {
	e := &Enricher{
		fetcher:    fetcher,
		extractors: []Extractor{YouTube},
		timeout:    3 * time.Second,
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich returns the preview for the first URL in text, or nil. It never
// fails and never waits longer than the configured timeout.
func (e *Enricher) Enrich(ctx context.Context, text string) *models.LinkPreview {
	raw := FirstURL(text)
	if raw == "" {
		e.count(metrics.PreviewNoURL)
		return nil
	}

	for _, extract := range e.extractors {
		if p, ok := extract(raw); ok {
			e.count(metrics.PreviewVideo)
			return &p
		}
	}

	if e.fetcher == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if e.cache != nil {
		p, found, err := e.cache.Get(ctx, raw)
		if err != nil {
			e.log.Warn("Preview cache read failed", "url", raw, "error", err)
		} else if found {
			e.count(metrics.PreviewCached)
			return p
		}
	}

	md, err := e.fetch(ctx, raw)
	if err != nil {
		e.log.Info("Link preview unavailable", "url", raw, "error", err)
		e.count(metrics.PreviewFailed)
		return nil
	}

	p := build(raw, md)
	if p == nil {
		e.count(metrics.PreviewNoImage)
	} else {
		e.count(metrics.PreviewFetched)
	}
	if e.cache != nil {
		if err := e.cache.Set(ctx, raw, p); err != nil {
			e.log.Warn("Preview cache write failed", "url", raw, "error", err)
		}
	}
	return p
}

// fetch runs the fetcher but gives up when ctx expires, even if the fetcher
// itself ignores ctx.
func (e *Enricher) fetch(ctx context.Context, raw string) (Metadata, error) {
	type result struct {
		md  Metadata
		err error
	}
	done := make(chan result, 1)
	go func() {
		md, err := e.fetcher.Fetch(ctx, raw)
		done <- result{md, err}
	}()

	select {
	case r := <-done:
		return r.md, r.err
	case <-ctx.Done():
		return Metadata{}, errors.Join(models.ErrFetch, ctx.Err())
	}
}

func (e *Enricher) count(outcome string) {
	if e.metrics != nil {
		e.metrics.Previews.WithLabelValues(outcome).Inc()
	}
}

// build applies the suppression rule: no usable image, no preview.
func build(pageURL string, md Metadata) *models.LinkPreview {
	image := resolveImage(pageURL, md.Image)
	if image == "" {
		return nil
	}
	title := md.Title
	if title == "" {
		if u, err := url.Parse(pageURL); err == nil {
			title = u.Host
		}
	}
	return &models.LinkPreview{
		Title:       title,
		Description: md.Description,
		Image:       image,
		URL:         pageURL,
	}
}

func resolveImage(pageURL, image string) string {
	image = strings.TrimSpace(image)
	if image == "" {
		return ""
	}
	ref, err := url.Parse(image)
	if err != nil {
		return ""
	}
	if !ref.IsAbs() {
		base, err := url.Parse(pageURL)
		if err != nil {
			return ""
		}
		ref = base.ResolveReference(ref)
	}
	switch ref.Scheme {
	case "https":
	case "http":
		ref.Scheme = "https"
	default:
		return ""
	}
	if ref.Host == "" {
		return ""
	}
	return ref.String()
}
