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
// Package pdfcore implements the object layer of PDF files.
//
// This package treats PDF files as containers holding a collection of
// numbered objects (typically dictionaries and streams), located through a
// cross-reference index.  It does not interpret pages, fonts or any other
// document-level structure.
//
// A [Reader] gives access to the objects of an existing file:
//
//	r, err := pdfcore.Open("in.pdf", &pdfcore.ReaderOptions{
//	    Security: crypt.Open,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer r.Close()
//	catalog, err := r.Catalog()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	... use catalog to locate objects in the file ...
//
// With [ErrorHandlingRecover], damaged files are repaired where possible by
// scanning the file for object headers.
//
// A [Writer] writes objects to a new file, or appends an incremental update
// to an existing one:
//
//	w, err := pdfcore.Create("out.pdf", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	catalogRef := w.Alloc()
//	... write objects using w.WriteObject ...
//	err = w.Close(pdfcore.Dict{"Root": catalogRef})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
// The following types implement the native PDF object types.
// All of these implement the [Object] interface:
//
//	Array
//	Bool
//	Dict
//	HexString
//	Integer
//	Name
//	Real
//	Reference
//	*Stream
//	String
//
// The PDF null object is represented by nil.
//
// The standard security handler for encrypted files is implemented in the
// subpackage crypt.
package pdfcore
