package preview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"chathub/internal/metrics"
	"chathub/internal/models"

	"github.com/google/go-cmp/cmp"
	"github.com/neilotoole/slogt"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type testfetcher struct {
	mu    sync.Mutex
	calls []string
	fetch func(ctx context.Context, rawURL string) (Metadata, error)
}

func (f *testfetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	f.mu.Lock()
	f.calls = append(f.calls, rawURL)
	f.mu.Unlock()
	return f.fetch(ctx, rawURL)
}

func (f *testfetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type testcache struct {
	entries map[string]*models.LinkPreview
	getErr  error
}

func (c *testcache) Get(_ context.Context, rawURL string) (*models.LinkPreview, bool, error) {
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	p, ok := c.entries[rawURL]
	return p, ok, nil
}

func (c *testcache) Set(_ context.Context, rawURL string, p *models.LinkPreview) error {
	c.entries[rawURL] = p
	return nil
}

func staticFetcher(md Metadata, err error) *testfetcher {
	return &testfetcher{fetch: func(context.Context, string) (Metadata, error) { return md, err }}
}

func TestFirstURL(t *testing.T) {
	tests := []struct {
		text, want string
	}{
		{"no links here", ""},
		{"see https://example.com/a?b=c now", "https://example.com/a?b=c"},
		{"http://one.example and https://two.example", "http://one.example"},
		{"look: https://example.com.", "https://example.com"},
		{"(https://en.wikipedia.org/wiki/Go_(programming_language))", "https://en.wikipedia.org/wiki/Go_(programming_language)"},
		{"wow https://example.com/x!?", "https://example.com/x"},
		{"ftp://example.com", ""},
	}
	for _, tt := range tests {
		if got := FirstURL(tt.text); got != tt.want {
			t.Errorf("FirstURL(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEnrich(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		fetcher   *testfetcher
		want      *models.LinkPreview
		wantCalls int
	}{
		{
			name:    "NoURL",
			text:    "hello there",
			fetcher: staticFetcher(Metadata{}, nil),
		},
		{
			name:    "VideoWithoutNetwork",
			text:    "watch https://youtu.be/abc123",
			fetcher: staticFetcher(Metadata{}, errors.New("must not be called")),
			want: &models.LinkPreview{
				Title:       "YouTube video",
				Description: "Watch this video on YouTube",
				Image:       "https://img.youtube.com/vi/abc123/hqdefault.jpg",
				URL:         "https://youtu.be/abc123",
			},
		},
		{
			name:      "Fetched",
			text:      "read https://blog.example/post",
			fetcher:   staticFetcher(Metadata{Title: "Post", Description: "About", Image: "http://cdn.example/p.png"}, nil),
			want:      &models.LinkPreview{Title: "Post", Description: "About", Image: "https://cdn.example/p.png", URL: "https://blog.example/post"},
			wantCalls: 1,
		},
		{
			name:      "RelativeImage",
			text:      "https://blog.example/posts/1",
			fetcher:   staticFetcher(Metadata{Image: "../img/cover.jpg"}, nil),
			want:      &models.LinkPreview{Title: "blog.example", Image: "https://blog.example/img/cover.jpg", URL: "https://blog.example/posts/1"},
			wantCalls: 1,
		},
		{
			name:      "SuppressedWithoutImage",
			text:      "https://blog.example/post",
			fetcher:   staticFetcher(Metadata{Title: "Post", Description: "About"}, nil),
			wantCalls: 1,
		},
		{
			name:      "FetchError",
			text:      "https://down.example",
			fetcher:   staticFetcher(Metadata{}, fmt.Errorf("%w: connection refused", models.ErrFetch)),
			wantCalls: 1,
		},
		{
			name:      "UnsupportedImageScheme",
			text:      "https://blog.example",
			fetcher:   staticFetcher(Metadata{Image: "data:image/png;base64,AAAA"}, nil),
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := New(tt.fetcher, WithLogger(slogt.New(t)))
			got := e.Enrich(context.Background(), tt.text)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Enrich() mismatch (-want +got):\n%s", diff)
			}
			if n := tt.fetcher.count(); n != tt.wantCalls {
				t.Errorf("fetcher called %d times, want %d", n, tt.wantCalls)
			}
		})
	}
}

func TestEnrichSlowFetchIsNoPreview(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	fetcher := &testfetcher{fetch: func(ctx context.Context, _ string) (Metadata, error) {
		// Ignores ctx on purpose: the enricher must not wait anyway.
		<-release
		return Metadata{Image: "https://late.example/i.png"}, nil
	}}
	e := New(fetcher, WithTimeout(50*time.Millisecond), WithLogger(slogt.New(t)))

	start := time.Now()
	got := e.Enrich(context.Background(), "https://slow.example")
	if got != nil {
		t.Errorf("Enrich() = %+v, want nil", got)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Enrich() took %v, want about the 50ms timeout", elapsed)
	}
}

func TestEnrichCache(t *testing.T) {
	cached := &models.LinkPreview{Title: "cached", Image: "https://c.example/i.png", URL: "https://c.example"}
	cache := &testcache{entries: map[string]*models.LinkPreview{
		"https://c.example":    cached,
		"https://none.example": nil,
	}}
	fetcher := staticFetcher(Metadata{Image: "https://fresh.example/i.png"}, nil)
	m := metrics.New(false)
	e := New(fetcher, WithCache(cache), WithMetrics(m), WithLogger(slogt.New(t)))

	if got := e.Enrich(context.Background(), "https://c.example"); got != cached {
		t.Errorf("cache hit = %+v, want cached preview", got)
	}
	if got := e.Enrich(context.Background(), "https://none.example"); got != nil {
		t.Errorf("negative cache hit = %+v, want nil", got)
	}
	if n := fetcher.count(); n != 0 {
		t.Errorf("fetcher called %d times on cache hits", n)
	}

	got := e.Enrich(context.Background(), "https://fresh.example")
	if got == nil || got.Image != "https://fresh.example/i.png" {
		t.Fatalf("cache miss = %+v", got)
	}
	if cache.entries["https://fresh.example"] != got {
		t.Error("fetched preview was not written to the cache")
	}
	if v := testutil.ToFloat64(m.Previews.WithLabelValues(metrics.PreviewCached)); v != 2 {
		t.Errorf("cached outcome counted %v times, want 2", v)
	}
}

func TestEnrichCacheErrorFallsBackToFetch(t *testing.T) {
	cache := &testcache{entries: map[string]*models.LinkPreview{}, getErr: errors.New("redis down")}
	fetcher := staticFetcher(Metadata{Image: "https://x.example/i.png"}, nil)
	e := New(fetcher, WithCache(cache), WithLogger(slogt.New(t)))

	if got := e.Enrich(context.Background(), "https://x.example"); got == nil {
		t.Error("Enrich() = nil, want fetched preview")
	}
}

func TestEnrichFetchErrorNotCached(t *testing.T) {
	cache := &testcache{entries: map[string]*models.LinkPreview{}}
	e := New(staticFetcher(Metadata{}, models.ErrFetch), WithCache(cache), WithLogger(slogt.New(t)))
	e.Enrich(context.Background(), "https://flaky.example")
	if _, ok := cache.entries["https://flaky.example"]; ok {
		t.Error("transient fetch failure was cached")
	}
}
