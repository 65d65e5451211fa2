//go:build !unix

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

// Platforms without access(2) probe by creating and removing a file.

package output

import (
	"fmt"
	"os"
)

// CheckWritable fails fast when dir cannot receive output files. The
// directory is created if missing.
func CheckWritable(dir string) error {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("output directory '%s': %w", dir, err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("output directory '%s': %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("output directory '%s': not a directory", dir)
	}
	f, err := os.CreateTemp(dir, ".subenum-probe-*")
	if err != nil {
		return fmt.Errorf("output directory '%s' is not writable: %w", dir, err)
	}
	name := f.Name()
	f.Close()
	os.Remove(name)
	return nil
}
