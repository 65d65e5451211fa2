package util

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

// OutputPrefix starts every output file name.
const OutputPrefix = "subenum_"

// maxFilenameLength keeps generated names under common filesystem limits,
// leaving room for the prefix and suffixes.
const maxFilenameLength = 200

// SanitizeFilename creates a filesystem-safe filename component from a domain
// or other string. Path separators and shell-hostile characters become
// underscores.
func SanitizeFilename(input string) string {
	replaced := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ', '\t', '\n', '\r', 0:
			return '_'
		}
		return r
	}, input)
	// A bare ".." would still walk out of the output directory.
	if strings.Trim(replaced, ".") == "" {
		replaced = strings.Repeat("_", len(replaced))
	}
	if len(replaced) > maxFilenameLength {
		return replaced[:maxFilenameLength]
	}
	return replaced
}

// OutputBase returns the shared base name of a run's output files,
// e.g. "subenum_example.com".
func OutputBase(domain string) string {
	return OutputPrefix + SanitizeFilename(domain)
}
