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
	"fmt"
	"time"

	"github.com/zeebo/xxh3"
)

// SourceStat is the outcome of one source in one run. It is created once the
// source's task settles and is not modified afterwards.
type SourceStat struct {
	Name    string        `json:"name"`
	Count   int           `json:"count"`
	Elapsed time.Duration `json:"-"`
	// ElapsedSeconds mirrors Elapsed for the JSON record.
	ElapsedSeconds float64 `json:"elapsed_seconds"`
	Success        bool    `json:"success"`
	Error          string  `json:"error,omitempty"`
}

// RunStats summarizes a complete run. It is written next to the hostname list.
type RunStats struct {
	Domain          string        `json:"domain"`
	TotalSubdomains int           `json:"total_subdomains"`
	Sources         []SourceStat  `json:"sources"`
	Elapsed         time.Duration `json:"-"`
	ElapsedSeconds  float64       `json:"elapsed_seconds"`
	Timestamp       time.Time     `json:"timestamp"`
	// Digest is the xxh3-64 of the hostname file contents.
	Digest string `json:"digest"`
}

// Succeeded returns how many sources completed successfully.
func (s *RunStats) Succeeded() int {
	n := 0
	for _, st := range s.Sources {
		if st.Success {
			n++
		}
	}
	return n
}

// Result is what the Aggregator hands to the writer.
type Result struct {
	Hostnames []string // Sorted ascending, unique.
	Stats     *RunStats
}

// HostnamesDigest hashes hostnames exactly as they appear in the output file:
// one per line, each terminated by '\n'.
func HostnamesDigest(hostnames []string) string {
	h := xxh3.New()
	for _, name := range hostnames {
		_, _ = h.WriteString(name)
		_, _ = h.WriteString("\n")
	}
	return fmt.Sprintf("%016x", h.Sum64())
}

func seconds(d time.Duration) float64 {
	// Millisecond resolution keeps the JSON readable.
	return float64(d.Round(time.Millisecond)) / float64(time.Second)
}
