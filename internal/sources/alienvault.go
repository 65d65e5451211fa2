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

type alienVaultRecord struct {
	Hostname string `json:"hostname"`
}

// AlienVault queries the AlienVault OTX passive DNS endpoint.
func AlienVault() Source {
	return Source{
		Name:        "alienvault",
		Description: "AlienVault OTX passive DNS",
		Endpoint:    "https://otx.alienvault.com/api/v1/indicators/domain/" + DomainPlaceholder + "/passive_dns",
		Accept:      "application/json",
		Parse:       parseAlienVault,
	}
}

// parseAlienVault requires the "passive_dns" wrapper key. OTX answers errors
// with {"detail": "..."} which is reported as malformed.
func parseAlienVault(_ string, body []byte) ([]string, error) {
	obj, err := decodeObject(body)
	if err != nil {
		return nil, err
	}
	raw, ok := obj["passive_dns"]
	if !ok {
		return nil, fmt.Errorf("%w: missing passive_dns", ErrMalformed)
	}
	var records []alienVaultRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("%w: passive_dns: %v", ErrMalformed, err)
	}
	names := make([]string, 0, len(records))
	for _, r := range records {
		names = append(names, r.Hostname)
	}
	return names, nil
}

// decodeObject decodes body as a JSON object, keeping values raw.
func decodeObject(body []byte) (map[string]json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if obj == nil {
		// Literal "null".
		return nil, fmt.Errorf("%w: null document", ErrMalformed)
	}
	return obj, nil
}
