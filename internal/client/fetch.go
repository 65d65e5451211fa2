package client

/*
subenum — passive subdomain enumeration in Go
Copyright (C) 2025  Pepijn van der Stap <rxtls@vanderstap.info>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/x-stp/subenum/internal/metrics"

	"golang.org/x/time/rate"
)

const (
	// DefaultUserAgent identifies the tool to upstream sources.
	DefaultUserAgent = "Mozilla/5.0 (compatible; SubEnum/1.0)"
	// DefaultMaxBodyBytes caps a single response body. crt.sh answers for large
	// domains run into tens of megabytes.
	DefaultMaxBodyBytes int64 = 128 << 20
)

// Request describes one outbound call to a passive source.
type Request struct {
	Source  string        // Source name, used for errors and metrics.
	URL     string        // Fully built request URL.
	Header  http.Header   // Extra headers; User-Agent is set by the Fetcher.
	Timeout time.Duration // Per-source override; zero means use the run timeout.
}

// EffectiveTimeout returns the request's own timeout when set, def otherwise.
func (r Request) EffectiveTimeout(def time.Duration) time.Duration {
	if r.Timeout > 0 {
		return r.Timeout
	}
	return def
}

// FetcherConfig configures a Fetcher. A zero value is usable.
type FetcherConfig struct {
	// HTTPClient overrides the shared client (tests inject httptest clients).
	HTTPClient *http.Client
	// UserAgent is sent with every request.
	UserAgent string
	// RateLimit is a politeness cap in requests per second shared by all
	// sources. Zero or negative disables it.
	RateLimit float64
	// MaxBodyBytes caps the response body size.
	MaxBodyBytes int64
}

// Fetcher performs single-attempt GET requests with a bounded deadline.
// It never retries. It is safe for concurrent use.
type Fetcher struct {
	client       *http.Client
	userAgent    string
	limiter      *rate.Limiter
	maxBodyBytes int64
}

// NewFetcher builds a Fetcher from cfg, filling defaults for zero fields.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	f := &Fetcher{
		client:       cfg.HTTPClient,
		userAgent:    cfg.UserAgent,
		maxBodyBytes: cfg.MaxBodyBytes,
		limiter:      rate.NewLimiter(rate.Inf, 1),
	}
	if f.client == nil {
		f.client = GetHTTPClient()
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxBodyBytes <= 0 {
		f.maxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.RateLimit > 0 {
		f.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}
	return f
}

// Fetch performs one GET for req and returns the raw body.
// The timeout bounds the whole call: limiter wait, connect, headers and body.
// Every failure is a *FetchError.
func (f *Fetcher) Fetch(ctx context.Context, req Request, timeout time.Duration) ([]byte, error) {
	m := metrics.GetMetrics()
	start := time.Now()

	fctx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	body, err := f.do(ctx, fctx, req)
	status := "ok"
	if err != nil {
		status = string(KindOf(err))
		m.RecordSourceError(req.Source, status)
	}
	m.ObserveSourceRequest(req.Source, status, time.Since(start))
	return body, err
}

func (f *Fetcher) do(parent, ctx context.Context, req Request) ([]byte, error) {
	waitStart := time.Now()
	if err := f.limiter.Wait(ctx); err != nil {
		// Wait fails early when the delay would overrun the deadline.
		return nil, &FetchError{Source: req.Source, Kind: classify(parent, ctx), Err: err}
	}
	metrics.GetMetrics().ObserveRateLimitDelay(req.Source, time.Since(waitStart))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, nil)
	if err != nil {
		return nil, &FetchError{Source: req.Source, Kind: KindConnection, Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(httpReq)
	if err != nil {
		kind := KindConnection
		if ctx.Err() != nil {
			kind = classify(parent, ctx)
		}
		return nil, &FetchError{Source: req.Source, Kind: kind, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a little so the connection can be reused.
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		return nil, &FetchError{Source: req.Source, Kind: KindStatus, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodyBytes+1))
	if err != nil {
		kind := KindBody
		if ctx.Err() != nil {
			kind = classify(parent, ctx)
		}
		return nil, &FetchError{Source: req.Source, Kind: kind, Err: err}
	}
	if int64(len(body)) > f.maxBodyBytes {
		return nil, &FetchError{
			Source: req.Source,
			Kind:   KindBody,
			Err:    fmt.Errorf("response larger than %d bytes", f.maxBodyBytes),
		}
	}
	return body, nil
}

// classify tells a per-source deadline apart from a canceled run.
func classify(parent, ctx context.Context) ErrorKind {
	if parent.Err() != nil {
		return KindCanceled
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return KindTimeout
	}
	// The limiter refuses to wait past the deadline before it expires.
	if _, ok := ctx.Deadline(); ok {
		return KindTimeout
	}
	return KindConnection
}
