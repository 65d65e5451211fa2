package main

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
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"

	"github.com/x-stp/subenum/internal/core"
	"github.com/x-stp/subenum/internal/sources"
)

var (
	info    = color.New(color.FgCyan, color.Bold)
	success = color.New(color.FgGreen)
	warn    = color.New(color.FgYellow, color.Bold)
	failure = color.New(color.FgRed)
	host    = color.New(color.FgMagenta)
)

// newProgress returns a per-source progress bar on stderr.
func newProgress(total int, visible bool) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Looking for subdomains..."),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(20),
		progressbar.OptionClearOnFinish(),
		progressbar.OptionSetVisibility(visible),
	)
}

func printBanner(w io.Writer, domain string, n int, timeout time.Duration) {
	info.Fprintf(w, "[*] Enumerating subdomains for %s (%d sources, %s timeout)\n", domain, n, timeout)
}

// printResults lists every hostname followed by the per-source breakdown.
func printResults(w io.Writer, res *core.Result) {
	if len(res.Hostnames) == 0 {
		warn.Fprintf(w, "[!] No subdomains found for %s\n", res.Stats.Domain)
	} else {
		info.Fprintf(w, "\nSubdomains found for %s\n", res.Stats.Domain)
		for _, h := range res.Hostnames {
			host.Fprintf(w, "  %s\n", h)
		}
	}

	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SOURCE\tSTATUS\tFOUND\tTIME\tERROR")
	for _, s := range res.Stats.Sources {
		status := success.Sprint("ok")
		if !s.Success {
			status = failure.Sprint("failed")
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n", s.Name, status, s.Count, s.Elapsed.Round(time.Millisecond), s.Error)
	}
	tw.Flush()
}

func printSummary(w io.Writer, stats *core.RunStats, hostnamesPath, statsPath string) {
	failed := lo.Filter(stats.Sources, func(s core.SourceStat, _ int) bool { return !s.Success })

	info.Fprintln(w, "\nSummary")
	fmt.Fprintf(w, "  Target domain:    %s\n", stats.Domain)
	fmt.Fprintf(w, "  Subdomains found: %d\n", stats.TotalSubdomains)
	if len(failed) > 0 {
		names := lo.Map(failed, func(s core.SourceStat, _ int) string { return s.Name })
		warn.Fprintf(w, "  Sources ok:       %d/%d (failed: %v)\n", stats.Succeeded(), len(stats.Sources), names)
	} else {
		fmt.Fprintf(w, "  Sources ok:       %d/%d\n", stats.Succeeded(), len(stats.Sources))
	}
	fmt.Fprintf(w, "  Elapsed:          %s\n", stats.Elapsed.Round(time.Millisecond))
	success.Fprintf(w, "  Results:          %s\n", hostnamesPath)
	success.Fprintf(w, "  Stats:            %s\n", statsPath)
}

// printSources renders the source table for the `sources` command.
func printSources(w io.Writer, table []sources.Source, defaultTimeout time.Duration) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tTIMEOUT\tDESCRIPTION\tENDPOINT")
	for _, s := range table {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, s.Request("").EffectiveTimeout(defaultTimeout), s.Description, s.Endpoint)
	}
	tw.Flush()
}
