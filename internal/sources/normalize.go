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

import "strings"

// NormalizeHostname lowercases and trims a raw name, strips leading "*."
// wildcard labels and surrounding dots. It returns "" for anything that is
// not a plausible hostname (emails, inner wildcards, spaces, URLs).
func NormalizeHostname(raw string) string {
	name := strings.ToLower(strings.TrimSpace(raw))
	for strings.HasPrefix(name, "*.") {
		name = name[2:]
	}
	name = strings.Trim(name, ".")
	if name == "" {
		return ""
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9', c == '-', c == '_', c == '.':
		default:
			return ""
		}
	}
	if strings.Contains(name, "..") {
		return ""
	}
	return name
}

// InScope reports whether host is domain itself or one of its subdomains.
// Both arguments must already be normalized.
func InScope(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// collect normalizes names, drops out-of-scope ones and deduplicates,
// keeping first-seen order.
func collect(domain string, names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		h := NormalizeHostname(n)
		if h == "" || !InScope(h, domain) {
			continue
		}
		if _, dup := seen[h]; dup {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
