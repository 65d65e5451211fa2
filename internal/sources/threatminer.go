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
)

// ThreatMiner queries the ThreatMiner domain API (rt=5: subdomains).
func ThreatMiner() Source {
	return Source{
		Name:        "threatminer",
		Description: "ThreatMiner threat intelligence",
		Endpoint:    "https://api.threatminer.org/v2/domain.php?q=" + DomainPlaceholder + "&rt=5",
		Accept:      "application/json",
		Parse:       parseThreatMiner,
	}
}

// parseThreatMiner accepts results as plain strings or as objects with a
// "hostname" field; the API has served both.
func parseThreatMiner(_ string, body []byte) ([]string, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	var status string
	if raw, ok := obj["status_code"]; ok {
		// Usually a string, occasionally a number.
		var n json.Number
		if json.Unmarshal(raw, &status) != nil && json.Unmarshal(raw, &n) == nil {
			status = n.String()
		}
	}
	if status == "404" {
		return nil, nil
	}

	raw, ok := obj["results"]
	if !ok {
		return nil, fmt.Errorf("%w: missing results", ErrMalformed)
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: results: %v", ErrMalformed, err)
	}

	names := make([]string, 0, len(items))
	for _, item := range items {
		var s string
		if json.Unmarshal(item, &s) == nil {
			names = append(names, s)
			continue
		}
		var rec struct {
			Hostname string `json:"hostname"`
		}
		if json.Unmarshal(item, &rec) == nil && rec.Hostname != "" {
			names = append(names, rec.Hostname)
		}
	}
	return names, nil
}
