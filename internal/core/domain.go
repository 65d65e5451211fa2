/*
Package core provides the central logic for subenum: target domain validation,
the concurrent aggregator that fans out to every passive source, and the run
statistics it produces.
*/
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
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidDomain is wrapped by every error returned from ParseDomain.
var ErrInvalidDomain = errors.New("invalid domain")

// maxDomainLength is the DNS limit for a presentation-format name.
const maxDomainLength = 253

// ParseDomain normalizes user input into a root domain and validates its shape.
// It accepts a pasted URL ("https://example.com/path") and a trailing dot.
func ParseDomain(input string) (string, error) {
	d := strings.ToLower(strings.TrimSpace(input))
	if strings.Contains(d, "://") {
		u, err := url.Parse(d)
		if err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, input, err)
		}
		d = u.Hostname()
	}
	d = strings.TrimSuffix(d, ".")

	if d == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidDomain)
	}
	if len(d) > maxDomainLength {
		return "", fmt.Errorf("%w: %q is longer than %d characters", ErrInvalidDomain, input, maxDomainLength)
	}
	labels := strings.Split(d, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: %q needs at least two labels", ErrInvalidDomain, input)
	}
	for _, label := range labels {
		if err := checkLabel(label); err != nil {
			return "", fmt.Errorf("%w: %q: %v", ErrInvalidDomain, input, err)
		}
	}
	return d, nil
}

func checkLabel(label string) error {
	if label == "" {
		return errors.New("empty label")
	}
	if len(label) > 63 {
		return fmt.Errorf("label %q longer than 63 characters", label)
	}
	if strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
		return fmt.Errorf("label %q starts or ends with '-'", label)
	}
	for _, r := range label {
		if !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-') {
			return fmt.Errorf("label %q contains %q", label, r)
		}
	}
	return nil
}
