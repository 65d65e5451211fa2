/*
Package sources defines the passive data sources queried by subenum.

Each source is a plain table entry: a name, an endpoint template, an optional
timeout override and a parse function that turns a raw response body into
normalized hostnames. The set is closed; there is no plugin mechanism.
*/
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
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/x-stp/subenum/internal/client"
)

// DomainPlaceholder is replaced by the escaped target domain in an endpoint.
const DomainPlaceholder = "{domain}"

// Parse errors. All of them mean "this source contributed nothing".
var (
	// ErrEmptyBody is returned for an empty or whitespace-only response.
	ErrEmptyBody = errors.New("empty response body")
	// ErrMalformed is returned when the body does not have the expected shape.
	ErrMalformed = errors.New("malformed response")
	// ErrUpstream is returned when the source answers with an in-band error message.
	ErrUpstream = errors.New("upstream error")
)

// ParseFunc extracts hostnames belonging to domain from a response body.
type ParseFunc func(domain string, body []byte) ([]string, error)

// Source is one passive data provider.
type Source struct {
	Name        string
	Description string
	// Endpoint is a URL template containing DomainPlaceholder.
	Endpoint string
	// Timeout overrides the run timeout when non-zero.
	Timeout time.Duration
	// Accept is sent as the Accept header when set.
	Accept string
	Parse  ParseFunc
}

// Request builds the outbound request for domain.
func (s Source) Request(domain string) client.Request {
	h := http.Header{}
	if s.Accept != "" {
		h.Set("Accept", s.Accept)
	}
	return client.Request{
		Source:  s.Name,
		URL:     strings.ReplaceAll(s.Endpoint, DomainPlaceholder, url.PathEscape(domain)),
		Header:  h,
		Timeout: s.Timeout,
	}
}

// Extract parses body and returns the source's hostnames, deduplicated and
// in scope. Parse errors are wrapped with the source name.
func (s Source) Extract(domain string, body []byte) ([]string, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("%s: %w", s.Name, ErrEmptyBody)
	}
	names, err := s.Parse(domain, body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.Name, err)
	}
	return collect(domain, names), nil
}

// All returns the default source table in its fixed order.
func All() []Source {
	return []Source{
		CrtSh(),
		AlienVault(),
		HackerTarget(),
		ThreatMiner(),
	}
}

// Names returns the names of the default sources in order.
func Names() []string {
	all := All()
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	return names
}

// Lookup returns the default source called name.
func Lookup(name string) (Source, bool) {
	for _, s := range All() {
		if s.Name == name {
			return s, true
		}
	}
	return Source{}, false
}
