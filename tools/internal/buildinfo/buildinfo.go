// seehuhn.de/go/pdfcore - support for reading and writing PDF files
// Copyright (C) 2025  Jochen Voss <voss@seehuhn.de>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.
// Package buildinfo reports the version of the command line tools.
package buildinfo

import (
	"runtime/debug"
)

// Short returns a version string for a tool, for example
// "pdf-xref (seehuhn.de/go/pdfcore v0.1.0)".  For development builds the
// VCS revision is shown instead of the module version.
func Short(toolName string) string {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return toolName
	}

	version := info.Main.Version
	if version == "" || version == "(devel)" {
		version = revision(info.Settings)
	}
	if version == "" {
		return toolName
	}
	return toolName + " (" + info.Main.Path + " " + version + ")"
}

// revision returns the abbreviated VCS revision, marked if the working tree
// had local modifications.
func revision(settings []debug.BuildSetting) string {
	var rev, suffix string
	for _, s := range settings {
		switch s.Key {
		case "vcs.revision":
			rev = s.Value
		case "vcs.modified":
			if s.Value == "true" {
				suffix = "+dirty"
			}
		}
	}
	if rev == "" {
		return ""
	}
	return rev[:min(len(rev), 8)] + suffix
}
