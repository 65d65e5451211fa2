package sources

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
	"strings"
)

// HackerTarget queries the HackerTarget host search.
func HackerTarget() Source {
	return Source{
		Name:        "hackertarget",
		Description: "HackerTarget host search",
		Endpoint:    "https://api.hackertarget.com/hostsearch/?q=" + DomainPlaceholder,
		Parse:       parseHackerTarget,
	}
}

// parseHackerTarget reads "host,ip" lines. The API reports problems as a
// single plain-text line with status 200.
func parseHackerTarget(_ string, body []byte) ([]string, error) {
	text := strings.TrimSpace(string(body))
	lower := strings.ToLower(text)
	switch {
	case strings.HasPrefix(lower, "no results"):
		return nil, nil
	case strings.HasPrefix(lower, "error"), strings.Contains(lower, "api count exceeded"):
		first, _, _ := strings.Cut(text, "\n")
		return nil, fmt.Errorf("%w: %s", ErrUpstream, first)
	}

	var names []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		host, _, ok := strings.Cut(line, ",")
		if !ok {
			continue
		}
		names = append(names, host)
	}
	if names == nil {
		return nil, fmt.Errorf("%w: no host,ip lines", ErrMalformed)
	}
	return names, nil
}
