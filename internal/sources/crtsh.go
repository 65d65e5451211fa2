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
	"encoding/json"
	"fmt"
	"strings"
)

// crtShEntry is one certificate row of the crt.sh JSON output.
type crtShEntry struct {
	CommonName string `json:"common_name"`
	NameValue  string `json:"name_value"`
}

// CrtSh queries the crt.sh certificate transparency search.
func CrtSh() Source {
	return Source{
		Name:        "crtsh",
		Description: "crt.sh certificate transparency search",
		Endpoint:    "https://crt.sh/?q=%25." + DomainPlaceholder + "&output=json",
		Accept:      "application/json",
		Parse:       parseCrtSh,
	}
}

// parseCrtSh expects a JSON array. crt.sh serves an HTML error page under
// load, which lands here as ErrMalformed.
func parseCrtSh(_ string, body []byte) ([]string, error) {
	var entries []crtShEntry
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var names []string
	for _, e := range entries {
		// name_value holds every SAN of the certificate, newline separated.
		names = append(names, strings.Split(e.NameValue, "\n")...)
		if e.CommonName != "" {
			names = append(names, e.CommonName)
		}
	}
	return names, nil
}
