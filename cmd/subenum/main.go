/*
Package main is the entry point for the subenum command-line application.

subenum enumerates subdomains of a target domain using only passive public data
sources: certificate transparency search (crt.sh), passive DNS aggregators
(AlienVault OTX, HackerTarget) and a threat intelligence aggregator
(ThreatMiner). The target itself is never contacted.

All sources are queried concurrently with a per-source timeout. Their results
are normalized, merged and written to two files in the output directory:

  - subenum_<domain>.txt: one hostname per line, sorted, unique.
  - subenum_<domain>_stats.json: per-source counts, timings and outcomes.

A source that fails, times out or returns garbage is recorded in the stats and
does not fail the run. The process exits non-zero only for an invalid domain,
an invalid configuration or an output directory that cannot be written.

The application uses the Cobra library for command-line interface structure and flag parsing.
It leverages several internal packages:
  - `internal/sources`: the passive source table and response parsers.
  - `internal/client`: the shared HTTP client and the single-attempt Fetcher.
  - `internal/core`: domain validation and the concurrent Aggregator.
  - `internal/output`: atomic writers for the result files.
  - `internal/config`: defaults, YAML config file and flag layering.
  - `internal/metrics`: optional Prometheus metrics.
*/
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
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/x-stp/subenum/internal/client"
	"github.com/x-stp/subenum/internal/config"
	"github.com/x-stp/subenum/internal/core"
	"github.com/x-stp/subenum/internal/metrics"
	"github.com/x-stp/subenum/internal/output"
)

// Global flags (persistent across commands)
var (
	configFile      string
	timeoutSeconds  float64
	outputDir       string
	onlySources     []string
	rateLimit       float64
	userAgent       string
	metricsAddr     string
	metricsTextfile string
	quiet           bool
	noColor         bool
	verbose         bool
)

var rootCmd = &cobra.Command{
	Use:   "subenum <domain>",
	Short: "subenum - passive subdomain enumeration without touching the target",
	Long: `Queries certificate transparency and passive DNS sources for subdomains of <domain>
and writes subenum_<domain>.txt and subenum_<domain>_stats.json to the output directory.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// Log lines would tear through the progress bar, so they are opt-in.
		log.SetOutput(io.Discard)
		if verbose {
			log.SetOutput(os.Stderr)
		}
		if noColor {
			color.NoColor = true
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runEnumerate(cmd, args[0])
	},
}

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "List the passive sources and their effective settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		table, err := cfg.SourceTable()
		if err != nil {
			return err
		}
		printSources(cmd.OutOrStdout(), table, cfg.Timeout)
		return nil
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		data, err := cfg.YAML()
		if err != nil {
			return fmt.Errorf("failed to encode config: %w", err)
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&configFile, "config", "c", "", "YAML config file")
	pf.Float64VarP(&timeoutSeconds, "timeout", "t", core.DefaultTimeout.Seconds(), "Timeout per source request (seconds)")
	pf.StringVarP(&outputDir, "output-dir", "o", ".", "Directory for result files (created if missing)")
	pf.StringSliceVarP(&onlySources, "sources", "s", nil, "Only query these sources (comma separated)")
	pf.Float64Var(&rateLimit, "rate-limit", 0, "Maximum outbound requests per second (0 for unlimited)")
	pf.StringVar(&userAgent, "user-agent", client.DefaultUserAgent, "User-Agent sent to sources")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address during the run (e.g. :9090)")
	pf.StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file when the run ends")
	pf.BoolVarP(&quiet, "quiet", "q", false, "Only print errors")
	pf.BoolVar(&noColor, "no-color", false, "Disable colored output")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log per-source progress to stderr")

	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig layers the config file and explicitly set flags over the defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("timeout") {
		cfg.Timeout = time.Duration(timeoutSeconds * float64(time.Second))
	}
	if flags.Changed("output-dir") {
		cfg.OutputDir = outputDir
	}
	if flags.Changed("sources") {
		cfg.Only = onlySources
	}
	if flags.Changed("rate-limit") {
		cfg.RateLimit = rateLimit
	}
	if flags.Changed("user-agent") {
		cfg.UserAgent = userAgent
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if flags.Changed("metrics-textfile") {
		cfg.MetricsTextfile = metricsTextfile
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// runEnumerate is the handler for the root command.
func runEnumerate(cmd *cobra.Command, arg string) error {
	// Input errors are reported before anything touches the network or disk.
	domain, err := core.ParseDomain(arg)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Setup signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			log.Printf("Received signal %v, canceling in-flight sources...", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if cfg.MetricsEnabled() {
		metrics.EnableMetrics()
		if err := metrics.StartMetricsServer(cfg.MetricsAddr); err != nil {
			log.Printf("Failed to start metrics server: %v", err)
		}
		defer func() {
			shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancelShutdown()
			_ = metrics.ShutdownMetricsServer(shutdownCtx)
		}()
	}

	out := cmd.OutOrStdout()
	if quiet {
		out = io.Discard
	}
	_, err = enumerate(ctx, cfg, domain, out, !quiet)
	return err
}

// enumerate runs one complete enumeration: preflight, fan-out, write, report.
func enumerate(ctx context.Context, cfg *config.Config, domain string, out io.Writer, showProgress bool) (*core.Result, error) {
	if err := output.CheckWritable(cfg.OutputDir); err != nil {
		return nil, err
	}
	table, err := cfg.SourceTable()
	if err != nil {
		return nil, err
	}

	printBanner(out, domain, len(table), cfg.Timeout)
	bar := newProgress(len(table), showProgress)

	agg, err := core.NewAggregator(&core.Config{
		Sources: table,
		Fetcher: client.NewFetcher(cfg.FetcherConfig()),
		Timeout: cfg.Timeout,
		OnSourceDone: func(core.SourceStat) {
			_ = bar.Add(1)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create aggregator: %w", err)
	}

	res, err := agg.Run(ctx, domain)
	_ = bar.Finish()
	client.CloseIdleConnections()
	if err != nil {
		return nil, err
	}

	writer, err := output.NewWriter(cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	hostnamesPath, statsPath, err := writer.WriteResult(res)
	if err != nil {
		return nil, err
	}

	printResults(out, res)
	printSummary(out, res.Stats, hostnamesPath, statsPath)

	if err := metrics.WriteTextfile(cfg.MetricsTextfile); err != nil {
		// Metrics are auxiliary; the results are already on disk.
		log.Printf("Failed to write metrics textfile '%s': %v", cfg.MetricsTextfile, err)
	}
	return res, nil
}
