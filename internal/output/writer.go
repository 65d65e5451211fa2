/*
Package output persists the results of a run: the sorted hostname list and the
JSON statistics record. Files are written to a temporary name in the target
directory and renamed into place, so readers never see a partial file.
*/
package output

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
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/x-stp/subenum/internal/core"
	"github.com/x-stp/subenum/internal/metrics"
	"github.com/x-stp/subenum/internal/util"
)

const (
	// DefaultDiskBufferSize is the bufio.Writer size for output files.
	DefaultDiskBufferSize = 64 * 1024

	hostnamesSuffix = ".txt"
	statsSuffix     = "_stats.json"
)

// Writer writes run outputs into one directory.
type Writer struct {
	dir string
}

// NewWriter returns a Writer for dir, creating the directory if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory '%s': %w", dir, err)
	}
	return &Writer{dir: dir}, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string {
	return w.dir
}

// HostnamesPath is the path of the hostname list for domain.
func (w *Writer) HostnamesPath(domain string) string {
	return filepath.Join(w.dir, util.OutputBase(domain)+hostnamesSuffix)
}

// StatsPath is the path of the stats record for domain.
func (w *Writer) StatsPath(domain string) string {
	return filepath.Join(w.dir, util.OutputBase(domain)+statsSuffix)
}

// WriteHostnames writes hostnames one per line, sorted and deduplicated,
// and returns the final path. The input slice is not modified.
func (w *Writer) WriteHostnames(domain string, hostnames []string) (string, error) {
	lines := make([]string, len(hostnames))
	copy(lines, hostnames)
	sort.Strings(lines)

	path := w.HostnamesPath(domain)
	err := w.writeAtomic(path, "hostnames", func(bw *bufio.Writer) error {
		prev := ""
		for i, line := range lines {
			if i > 0 && line == prev {
				continue
			}
			prev = line
			if _, err := bw.WriteString(line); err != nil {
				return err
			}
			if err := bw.WriteByte('\n'); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteStats writes stats as indented JSON and returns the final path.
func (w *Writer) WriteStats(stats *core.RunStats) (string, error) {
	if stats == nil {
		return "", errors.New("nil run stats")
	}
	data, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode stats: %w", err)
	}
	data = append(data, '\n')

	path := w.StatsPath(stats.Domain)
	err = w.writeAtomic(path, "stats", func(bw *bufio.Writer) error {
		_, err := bw.Write(data)
		return err
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// WriteResult writes both files for a run.
func (w *Writer) WriteResult(res *core.Result) (hostnamesPath, statsPath string, err error) {
	if res == nil || res.Stats == nil {
		return "", "", errors.New("nil result")
	}
	if hostnamesPath, err = w.WriteHostnames(res.Stats.Domain, res.Hostnames); err != nil {
		return "", "", err
	}
	if statsPath, err = w.WriteStats(res.Stats); err != nil {
		return hostnamesPath, "", err
	}
	return hostnamesPath, statsPath, nil
}

// writeAtomic writes through a buffered temp file in the same directory,
// then renames it to finalPath.
func (w *Writer) writeAtomic(finalPath, operation string, fill func(*bufio.Writer) error) (err error) {
	m := metrics.GetMetrics()
	done := metrics.MeasureDuration(m.DiskWriteDuration, prometheus.Labels{"operation": operation})
	defer done()
	defer func() {
		if err != nil {
			m.RecordDiskError(operation)
		}
	}()

	f, err := os.CreateTemp(w.dir, "."+filepath.Base(finalPath)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file for '%s': %w", finalPath, err)
	}
	tmpPath := f.Name()
	defer func() {
		if err != nil {
			f.Close()
			os.Remove(tmpPath)
		}
	}()

	bw := bufio.NewWriterSize(f, DefaultDiskBufferSize)
	if err = fill(bw); err != nil {
		return fmt.Errorf("failed to write '%s': %w", finalPath, err)
	}
	if err = bw.Flush(); err != nil {
		return fmt.Errorf("failed to flush '%s': %w", finalPath, err)
	}
	if err = f.Sync(); err != nil {
		return fmt.Errorf("failed to sync '%s': %w", finalPath, err)
	}
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat '%s': %w", tmpPath, err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("failed to close '%s': %w", finalPath, err)
	}
	// CreateTemp uses 0600; results are meant to be shared like any other file.
	if err = os.Chmod(tmpPath, 0644); err != nil {
		return fmt.Errorf("failed to chmod '%s': %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename '%s' to '%s': %w", tmpPath, finalPath, err)
	}
	m.RecordDiskWrite(operation, int(info.Size()))
	return nil
}
