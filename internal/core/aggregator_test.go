package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/x-stp/subenum/internal/client"
	"github.com/x-stp/subenum/internal/sources"
)

type respondFunc func(ctx context.Context) ([]byte, error)

// fakeFetcher answers by source name and records the timeout each source got.
type fakeFetcher struct {
	mu        sync.Mutex
	responses map[string]respondFunc
	timeouts  map[string]time.Duration
}

func newFakeFetcher(responses map[string]respondFunc) *fakeFetcher {
	return &fakeFetcher{responses: responses, timeouts: make(map[string]time.Duration)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, req client.Request, timeout time.Duration) ([]byte, error) {
	f.mu.Lock()
	f.timeouts[req.Source] = timeout
	respond := f.responses[req.Source]
	f.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return respond(ctx)
}

func (f *fakeFetcher) timeoutFor(source string) time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.timeouts[source]
}

func body(s string) respondFunc {
	return func(context.Context) ([]byte, error) { return []byte(s), nil }
}

func delayed(d time.Duration, s string) respondFunc {
	return func(ctx context.Context) ([]byte, error) {
		select {
		case <-time.After(d):
			return []byte(s), nil
		case <-ctx.Done():
			return nil, &client.FetchError{Source: "delayed", Kind: client.KindTimeout, Err: ctx.Err()}
		}
	}
}

func hang(source string) respondFunc {
	return func(ctx context.Context) ([]byte, error) {
		<-ctx.Done()
		return nil, &client.FetchError{Source: source, Kind: client.KindTimeout, Err: ctx.Err()}
	}
}

// lineSource parses one hostname per line.
func lineSource(name string) sources.Source {
	return sources.Source{
		Name:     name,
		Endpoint: "http://" + name + ".test/?q=" + sources.DomainPlaceholder,
		Parse: func(_ string, body []byte) ([]string, error) {
			return strings.Fields(string(body)), nil
		},
	}
}

// jsonSource expects a JSON array of strings.
func jsonSource(name string) sources.Source {
	return sources.Source{
		Name:     name,
		Endpoint: "http://" + name + ".test/?q=" + sources.DomainPlaceholder,
		Parse: func(_ string, body []byte) ([]string, error) {
			var names []string
			if err := json.Unmarshal(body, &names); err != nil {
				return nil, fmt.Errorf("%w: %v", sources.ErrMalformed, err)
			}
			return names, nil
		},
	}
}

func newTestAggregator(t *testing.T, srcs []sources.Source, f Fetcher, timeout time.Duration) *Aggregator {
	t.Helper()
	agg, err := NewAggregator(&Config{
		Sources: srcs,
		Fetcher: f,
		Timeout: timeout,
		Now:     func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	return agg
}

func TestRunMergesAndIsolatesFailures(t *testing.T) {
	t.Parallel()

	srcs := []sources.Source{lineSource("a"), lineSource("b"), lineSource("c"), jsonSource("d")}
	f := newFakeFetcher(map[string]respondFunc{
		"a": body("www.example.com\nAPI.example.com"),
		"b": body("*.cdn.example.com"),
		"c": hang("c"),
		"d": body("<html>oops</html>"),
	})
	agg := newTestAggregator(t, srcs, f, 200*time.Millisecond)

	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	want := []string{"api.example.com", "cdn.example.com", "www.example.com"}
	if !slices.Equal(res.Hostnames, want) {
		t.Fatalf("hostnames = %v, want %v", res.Hostnames, want)
	}
	st := res.Stats
	if st.Domain != "example.com" || st.TotalSubdomains != 3 {
		t.Fatalf("unexpected totals: domain=%s total=%d", st.Domain, st.TotalSubdomains)
	}
	if len(st.Sources) != 4 {
		t.Fatalf("expected 4 source stats, got %d", len(st.Sources))
	}

	expect := []struct {
		name    string
		count   int
		success bool
		errPart string
	}{
		{"a", 2, true, ""},
		{"b", 1, true, ""},
		{"c", 0, false, "timeout"},
		{"d", 0, false, "malformed"},
	}
	for i, e := range expect {
		got := st.Sources[i]
		if got.Name != e.name || got.Count != e.count || got.Success != e.success {
			t.Fatalf("source %d: got %+v, want name=%s count=%d success=%v", i, got, e.name, e.count, e.success)
		}
		if e.errPart == "" && got.Error != "" {
			t.Fatalf("source %s: unexpected error %q", got.Name, got.Error)
		}
		if e.errPart != "" && !strings.Contains(got.Error, e.errPart) {
			t.Fatalf("source %s: expected error containing %q, got %q", got.Name, e.errPart, got.Error)
		}
	}
	if st.Succeeded() != 2 {
		t.Fatalf("expected 2 successful sources, got %d", st.Succeeded())
	}
	if !st.Timestamp.Equal(time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected timestamp %s", st.Timestamp)
	}
	if st.Digest != HostnamesDigest(want) {
		t.Fatalf("digest mismatch: %s", st.Digest)
	}
}

func TestRunWallTimeBoundedBySlowestSource(t *testing.T) {
	t.Parallel()

	var srcs []sources.Source
	responses := map[string]respondFunc{}
	for i := 0; i < 4; i++ {
		name := fmt.Sprintf("s%d", i)
		srcs = append(srcs, lineSource(name))
		responses[name] = delayed(200*time.Millisecond, name+".example.com")
	}
	agg := newTestAggregator(t, srcs, newFakeFetcher(responses), 2*time.Second)

	start := time.Now()
	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed >= 700*time.Millisecond {
		t.Fatalf("sources did not run concurrently: %s", elapsed)
	}
	if res.Stats.TotalSubdomains != 4 {
		t.Fatalf("expected 4 hostnames, got %v", res.Hostnames)
	}
}

func TestRunTimeoutDoesNotDelayOthers(t *testing.T) {
	t.Parallel()

	srcs := []sources.Source{lineSource("fast"), lineSource("stuck")}
	f := newFakeFetcher(map[string]respondFunc{
		"fast":  body("fast.example.com"),
		"stuck": hang("stuck"),
	})
	agg := newTestAggregator(t, srcs, f, 100*time.Millisecond)

	start := time.Now()
	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("run took %s, expected about the timeout", elapsed)
	}
	if !slices.Equal(res.Hostnames, []string{"fast.example.com"}) {
		t.Fatalf("unexpected hostnames %v", res.Hostnames)
	}
	if res.Stats.Sources[1].Success {
		t.Fatalf("expected stuck source to fail")
	}
}

func TestRunUsesPerSourceTimeout(t *testing.T) {
	t.Parallel()

	slow := lineSource("slow")
	slow.Timeout = 3 * time.Second
	srcs := []sources.Source{lineSource("default"), slow}
	f := newFakeFetcher(map[string]respondFunc{
		"default": body(""),
		"slow":    body("x.example.com"),
	})
	agg := newTestAggregator(t, srcs, f, time.Second)

	if agg.MaxTimeout() != 3*time.Second {
		t.Fatalf("expected MaxTimeout 3s, got %s", agg.MaxTimeout())
	}
	if _, err := agg.Run(context.Background(), "example.com"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := f.timeoutFor("default"); got != time.Second {
		t.Fatalf("default source got timeout %s", got)
	}
	if got := f.timeoutFor("slow"); got != 3*time.Second {
		t.Fatalf("overridden source got timeout %s", got)
	}
}

func TestRunEmptyBodyIsFailure(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(t, []sources.Source{lineSource("empty")}, newFakeFetcher(map[string]respondFunc{
		"empty": body("   \n"),
	}), time.Second)

	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := res.Stats.Sources[0]
	if st.Success || st.Count != 0 || !strings.Contains(st.Error, "empty") {
		t.Fatalf("expected empty-body failure, got %+v", st)
	}
	if len(res.Hostnames) != 0 || res.Stats.TotalSubdomains != 0 {
		t.Fatalf("expected no hostnames, got %v", res.Hostnames)
	}
}

func TestRunDropsOutOfScopeNames(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(t, []sources.Source{lineSource("a")}, newFakeFetcher(map[string]respondFunc{
		"a": body("www.example.com example.com badexample.com evil.org mail.example.com.evil.org user@example.com"),
	}), time.Second)

	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := []string{"example.com", "www.example.com"}
	if !slices.Equal(res.Hostnames, want) {
		t.Fatalf("hostnames = %v, want %v", res.Hostnames, want)
	}
	if res.Stats.Sources[0].Count != 2 {
		t.Fatalf("expected count 2, got %d", res.Stats.Sources[0].Count)
	}
}

func TestRunDeduplicatesAcrossSources(t *testing.T) {
	t.Parallel()

	srcs := []sources.Source{lineSource("a"), lineSource("b")}
	agg := newTestAggregator(t, srcs, newFakeFetcher(map[string]respondFunc{
		"a": body("www.example.com\nmail.example.com"),
		"b": body("WWW.EXAMPLE.COM\n*.mail.example.com"),
	}), time.Second)

	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(res.Hostnames, []string{"mail.example.com", "www.example.com"}) {
		t.Fatalf("unexpected hostnames %v", res.Hostnames)
	}
	// Per-source counts are before the cross-source merge.
	if res.Stats.Sources[0].Count != 2 || res.Stats.Sources[1].Count != 2 {
		t.Fatalf("unexpected counts %+v", res.Stats.Sources)
	}
}

func TestRunRecoversFromParserPanic(t *testing.T) {
	t.Parallel()

	bad := sources.Source{
		Name:     "bad",
		Endpoint: "http://bad.test/" + sources.DomainPlaceholder,
		Parse: func(string, []byte) ([]string, error) {
			panic("index out of range")
		},
	}
	agg := newTestAggregator(t, []sources.Source{bad, lineSource("good")}, newFakeFetcher(map[string]respondFunc{
		"bad":  body("anything"),
		"good": body("ok.example.com"),
	}), time.Second)

	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Sources[0].Success || !strings.Contains(res.Stats.Sources[0].Error, "panic") {
		t.Fatalf("expected panic to be recorded, got %+v", res.Stats.Sources[0])
	}
	if !slices.Equal(res.Hostnames, []string{"ok.example.com"}) {
		t.Fatalf("unexpected hostnames %v", res.Hostnames)
	}
}

func TestRunAbandonsTaskIgnoringCancellation(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	defer close(release)

	agg, err := NewAggregator(&Config{
		Sources:      []sources.Source{lineSource("deaf"), lineSource("ok")},
		Timeout:      50 * time.Millisecond,
		AbandonGrace: 50 * time.Millisecond,
		Fetcher: newFakeFetcher(map[string]respondFunc{
			"deaf": func(context.Context) ([]byte, error) {
				<-release
				return nil, errors.New("released")
			},
			"ok": body("ok.example.com"),
		}),
	})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}

	start := time.Now()
	res, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("abandon guard did not fire: %s", elapsed)
	}
	deaf := res.Stats.Sources[0]
	if deaf.Success || !strings.Contains(deaf.Error, ErrAbandoned.Error()) {
		t.Fatalf("expected abandoned source, got %+v", deaf)
	}
	if !res.Stats.Sources[1].Success {
		t.Fatalf("expected healthy source to succeed")
	}
}

func TestRunCanceledContextStillReturnsResult(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	agg := newTestAggregator(t, []sources.Source{lineSource("a"), lineSource("b")}, newFakeFetcher(map[string]respondFunc{
		"a": hang("a"),
		"b": hang("b"),
	}), time.Second)

	res, err := agg.Run(ctx, "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Stats.Succeeded() != 0 || len(res.Hostnames) != 0 {
		t.Fatalf("expected every source to fail, got %+v", res.Stats.Sources)
	}
}

func TestRunOnSourceDone(t *testing.T) {
	t.Parallel()

	var seen []string
	agg, err := NewAggregator(&Config{
		Sources: []sources.Source{lineSource("a"), lineSource("b"), lineSource("c")},
		Fetcher: newFakeFetcher(map[string]respondFunc{
			"a": body("a.example.com"),
			"b": body(""),
			"c": body("c.example.com"),
		}),
		// Called on the Run goroutine; no locking needed.
		OnSourceDone: func(s SourceStat) { seen = append(seen, s.Name) },
	})
	if err != nil {
		t.Fatalf("NewAggregator: %v", err)
	}
	if _, err := agg.Run(context.Background(), "example.com"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	slices.Sort(seen)
	if !slices.Equal(seen, []string{"a", "b", "c"}) {
		t.Fatalf("OnSourceDone saw %v", seen)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	t.Parallel()

	srcs := []sources.Source{lineSource("a"), lineSource("b")}
	f := newFakeFetcher(map[string]respondFunc{
		"a": body("z.example.com\nb.example.com"),
		"b": body("a.example.com\nb.example.com"),
	})
	agg := newTestAggregator(t, srcs, f, time.Second)

	first, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	second, err := agg.Run(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !slices.Equal(first.Hostnames, second.Hostnames) || first.Stats.Digest != second.Stats.Digest {
		t.Fatalf("runs differ: %v vs %v", first.Hostnames, second.Hostnames)
	}
}

func TestRunRejectsInvalidDomain(t *testing.T) {
	t.Parallel()

	agg := newTestAggregator(t, []sources.Source{lineSource("a")}, newFakeFetcher(map[string]respondFunc{
		"a": body(""),
	}), time.Second)
	if _, err := agg.Run(context.Background(), "not a domain"); !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("expected ErrInvalidDomain, got %v", err)
	}
}

func TestNewAggregatorValidatesConfig(t *testing.T) {
	t.Parallel()

	f := newFakeFetcher(nil)
	cases := []struct {
		name string
		cfg  *Config
	}{
		{"nil config", nil},
		{"no sources", &Config{Fetcher: f}},
		{"nil fetcher", &Config{Sources: []sources.Source{lineSource("a")}}},
		{"nil parser", &Config{Sources: []sources.Source{{Name: "x"}}, Fetcher: f}},
	}
	for _, tc := range cases {
		if _, err := NewAggregator(tc.cfg); err == nil {
			t.Fatalf("%s: expected error", tc.name)
		}
	}
}

func TestHostnamesDigestMatchesFileLayout(t *testing.T) {
	t.Parallel()

	if HostnamesDigest(nil) == HostnamesDigest([]string{""}) {
		t.Fatalf("empty list and one empty line must hash differently")
	}
	if HostnamesDigest([]string{"a.example.com", "b.example.com"}) == HostnamesDigest([]string{"a.example.comb.example.com"}) {
		t.Fatalf("line terminators must be part of the digest")
	}
	if len(HostnamesDigest([]string{"x"})) != 16 {
		t.Fatalf("expected 16 hex digits")
	}
}
