package core

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
	"log"
	"sort"
	"time"

	"github.com/samber/lo"

	"github.com/x-stp/subenum/internal/client"
	"github.com/x-stp/subenum/internal/metrics"
	"github.com/x-stp/subenum/internal/sources"
)

const (
	// DefaultTimeout is the per-source timeout when none is configured.
	DefaultTimeout = 10 * time.Second
	// DefaultAbandonGrace is how long past the longest source timeout the
	// aggregator waits before giving up on a task that ignores cancellation.
	DefaultAbandonGrace = 2 * time.Second
)

// ErrAbandoned is recorded for a source whose task never settled.
var ErrAbandoned = errors.New("abandoned after timeout")

// Fetcher is the network side of a source. *client.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, req client.Request, timeout time.Duration) ([]byte, error)
}

// Config holds the aggregator's collaborators and tuning.
type Config struct {
	Sources []sources.Source
	Fetcher Fetcher
	// Timeout applies to every source without its own override.
	Timeout time.Duration
	// AbandonGrace defaults to DefaultAbandonGrace.
	AbandonGrace time.Duration
	// OnSourceDone, when set, is called on the Run goroutine as each source settles.
	OnSourceDone func(SourceStat)
	// Now supplies the run timestamp; defaults to time.Now.
	Now func() time.Time
}

// Aggregator queries every source concurrently and merges the results.
// Goal: one source's failure or slowness never affects the others.
// Concurrency: one goroutine per source; the result set is owned by the
// goroutine calling Run, workers only send on a buffered channel.
type Aggregator struct {
	sources      []sources.Source
	fetcher      Fetcher
	timeout      time.Duration
	abandonGrace time.Duration
	onSourceDone func(SourceStat)
	now          func() time.Time
}

// outcome is what a source task sends back to Run.
type outcome struct {
	index     int
	stat      SourceStat
	hostnames []string
}

// NewAggregator validates cfg and returns a ready Aggregator.
func NewAggregator(cfg *Config) (*Aggregator, error) {
	if cfg == nil {
		return nil, errors.New("aggregator: nil config")
	}
	if len(cfg.Sources) == 0 {
		return nil, errors.New("aggregator: no sources configured")
	}
	if cfg.Fetcher == nil {
		return nil, errors.New("aggregator: nil fetcher")
	}
	for _, s := range cfg.Sources {
		if s.Parse == nil {
			return nil, fmt.Errorf("aggregator: source %q has no parser", s.Name)
		}
	}
	a := &Aggregator{
		sources:      cfg.Sources,
		fetcher:      cfg.Fetcher,
		timeout:      cfg.Timeout,
		abandonGrace: cfg.AbandonGrace,
		onSourceDone: cfg.OnSourceDone,
		now:          cfg.Now,
	}
	if a.timeout <= 0 {
		a.timeout = DefaultTimeout
	}
	if a.abandonGrace <= 0 {
		a.abandonGrace = DefaultAbandonGrace
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a, nil
}

// MaxTimeout is the longest effective per-source timeout, which bounds the
// wall time of a run.
func (a *Aggregator) MaxTimeout() time.Duration {
	return lo.Max(lo.Map(a.sources, func(s sources.Source, _ int) time.Duration {
		if s.Timeout > 0 {
			return s.Timeout
		}
		return a.timeout
	}))
}

// Run queries all sources for domain and returns the merged, sorted hostnames
// and run statistics. Source failures never make Run fail; they are recorded
// in the returned stats. Run returns an error only for an invalid domain.
func (a *Aggregator) Run(ctx context.Context, domain string) (*Result, error) {
	domain, err := ParseDomain(domain)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	timestamp := a.now().UTC()
	log.Printf("Querying %d sources for %s (timeout %s)", len(a.sources), domain, a.timeout)

	// Buffered so a late task never blocks after Run has returned.
	outcomes := make(chan outcome, len(a.sources))
	for i, src := range a.sources {
		go a.runSource(ctx, i, src, domain, outcomes)
	}

	guard := time.NewTimer(a.MaxTimeout() + a.abandonGrace)
	defer guard.Stop()

	stats := make([]SourceStat, len(a.sources))
	settled := make([]bool, len(a.sources))
	set := make(map[string]struct{})
	m := metrics.GetMetrics()

	for pending := len(a.sources); pending > 0; {
		select {
		case o := <-outcomes:
			pending--
			settled[o.index] = true
			for _, h := range o.hostnames {
				h = sources.NormalizeHostname(h)
				if h != "" && sources.InScope(h, domain) {
					set[h] = struct{}{}
				}
			}
			stats[o.index] = o.stat
			m.AddSourceHostnames(o.stat.Name, o.stat.Count)
			a.report(o.stat)
		case <-guard.C:
			for i, done := range settled {
				if done {
					continue
				}
				elapsed := time.Since(start)
				stats[i] = SourceStat{
					Name:           a.sources[i].Name,
					Elapsed:        elapsed,
					ElapsedSeconds: seconds(elapsed),
					Error:          fmt.Sprintf("%s: %v", a.sources[i].Name, ErrAbandoned),
				}
				m.RecordSourceError(a.sources[i].Name, "abandoned")
				a.report(stats[i])
			}
			pending = 0
		}
	}

	hostnames := lo.Keys(set)
	sort.Strings(hostnames)

	elapsed := time.Since(start)
	run := &RunStats{
		Domain:          domain,
		TotalSubdomains: len(hostnames),
		Sources:         stats,
		Elapsed:         elapsed,
		ElapsedSeconds:  seconds(elapsed),
		Timestamp:       timestamp,
		Digest:          HostnamesDigest(hostnames),
	}
	m.ObserveRun(len(hostnames), elapsed)
	log.Printf("Run for %s finished in %s: %d unique hostnames, %d/%d sources succeeded",
		domain, elapsed.Round(time.Millisecond), len(hostnames), run.Succeeded(), len(stats))

	return &Result{Hostnames: hostnames, Stats: run}, nil
}

// runSource fetches and parses one source and always sends exactly one outcome.
func (a *Aggregator) runSource(ctx context.Context, index int, src sources.Source, domain string, out chan<- outcome) {
	start := time.Now()
	o := outcome{index: index, stat: SourceStat{Name: src.Name}}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic recovered in source %s: %v", src.Name, r)
			o.hostnames = nil
			o.stat.Count = 0
			o.stat.Success = false
			o.stat.Error = fmt.Sprintf("%s: panic: %v", src.Name, r)
			metrics.GetMetrics().RecordSourceError(src.Name, "panic")
		}
		o.stat.Elapsed = time.Since(start)
		o.stat.ElapsedSeconds = seconds(o.stat.Elapsed)
		out <- o
	}()

	req := src.Request(domain)
	body, err := a.fetcher.Fetch(ctx, req, req.EffectiveTimeout(a.timeout))
	if err != nil {
		o.stat.Error = err.Error()
		return
	}

	hostnames, err := src.Extract(domain, body)
	if err != nil {
		metrics.GetMetrics().RecordSourceError(src.Name, "parse")
		o.stat.Error = err.Error()
		return
	}
	o.hostnames = hostnames
	o.stat.Count = len(hostnames)
	o.stat.Success = true
}

func (a *Aggregator) report(stat SourceStat) {
	if stat.Success {
		log.Printf("[%s] %d hostnames in %s", stat.Name, stat.Count, stat.Elapsed.Round(time.Millisecond))
	} else {
		log.Printf("[%s] failed after %s: %s", stat.Name, stat.Elapsed.Round(time.Millisecond), stat.Error)
	}
	if a.onSourceDone != nil {
		a.onSourceDone(stat)
	}
}
