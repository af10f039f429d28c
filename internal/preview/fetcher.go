package preview

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"chathub/internal/models"

	"github.com/valyala/fasthttp"
)

const (
	defaultUserAgent = "chathub-linkpreview/1.0 (+https://ogp.me)"
	maxRedirects     = 3
	maxBodyBytes     = 2 << 20
)

// HTTPFetcher fetches pages with fasthttp. Redirects are followed manually so
// every hop respects the caller's deadline.
type HTTPFetcher struct {
	client *fasthttp.Client
}

type FetcherConfig struct {
	// AllowPrivate permits loopback and private network targets.
	AllowPrivate bool
	UserAgent    string
}

func NewHTTPFetcher(cfg FetcherConfig) *HTTPFetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUserAgent
	}
	client := &fasthttp.Client{
		Name:                   cfg.UserAgent,
		ReadTimeout:            5 * time.Second,
		WriteTimeout:           5 * time.Second,
		MaxResponseBodySize:    maxBodyBytes,
		ReadBufferSize:         16 * 1024,
		MaxConnsPerHost:        32,
		MaxIdleConnDuration:    30 * time.Second,
		DisablePathNormalizing: true,
	}
	if !cfg.AllowPrivate {
		client.Dial = publicDial
	}
	return &HTTPFetcher{client: client}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (Metadata, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(5 * time.Second)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	target := rawURL
	for hop := 0; ; hop++ {
		req.SetRequestURI(target)
		req.Header.SetMethod(fasthttp.MethodGet)
		req.Header.Set(fasthttp.HeaderAccept, "text/html,application/xhtml+xml")

		if err := f.client.DoDeadline(req, resp, deadline); err != nil {
			return Metadata{}, fmt.Errorf("%w: get %s: %v", models.ErrFetch, target, err)
		}
		if err := ctx.Err(); err != nil {
			return Metadata{}, fmt.Errorf("%w: %v", models.ErrFetch, err)
		}

		status := resp.StatusCode()
		if isRedirect(status) {
			if hop >= maxRedirects {
				return Metadata{}, fmt.Errorf("%w: too many redirects from %s", models.ErrFetch, rawURL)
			}
			next, err := resolveLocation(target, string(resp.Header.Peek(fasthttp.HeaderLocation)))
			if err != nil {
				return Metadata{}, fmt.Errorf("%w: %v", models.ErrFetch, err)
			}
			target = next
			resp.Reset()
			continue
		}
		if status != fasthttp.StatusOK {
			return Metadata{}, fmt.Errorf("%w: %s returned %d", models.ErrFetch, target, status)
		}
		if ct := resp.Header.ContentType(); !bytes.Contains(bytes.ToLower(ct), []byte("html")) {
			return Metadata{}, fmt.Errorf("%w: %s is %q, not HTML", models.ErrFetch, target, ct)
		}

		md, err := ParseMetadata(bytes.NewReader(resp.Body()))
		if err != nil {
			return Metadata{}, fmt.Errorf("%w: parse %s: %v", models.ErrFetch, target, err)
		}
		return md, nil
	}
}

func isRedirect(status int) bool {
	switch status {
	case fasthttp.StatusMovedPermanently, fasthttp.StatusFound, fasthttp.StatusSeeOther,
		fasthttp.StatusTemporaryRedirect, fasthttp.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(current, location string) (string, error) {
	if location == "" {
		return "", fmt.Errorf("redirect from %s without Location", current)
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", err
	}
	ref, err := url.Parse(location)
	if err != nil {
		return "", err
	}
	next := base.ResolveReference(ref)
	if next.Scheme != "http" && next.Scheme != "https" {
		return "", fmt.Errorf("redirect to unsupported scheme %q", next.Scheme)
	}
	return next.String(), nil
}

// publicDial refuses targets that resolve to loopback, private or link-local
// addresses, so user-posted links cannot probe the internal network.
func publicDial(addr string) (net.Conn, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, err
	}
	ips, err := net.LookupIP(host)
	if err != nil {
		return nil, err
	}
	for _, ip := range ips {
		if !isPublic(ip) {
			continue
		}
		return net.DialTimeout("tcp", net.JoinHostPort(ip.String(), port), 3*time.Second)
	}
	return nil, fmt.Errorf("%s does not resolve to a public address", host)
}

func isPublic(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() ||
		ip.IsLinkLocalMulticast() || ip.IsUnspecified() || ip.IsMulticast())
}
