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
// Pdf-xref shows the cross-reference information of a PDF file: the file
// version, the trailer, the incremental updates, and the location of every
// object.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/exp/slices"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/tools/internal/buildinfo"
	"seehuhn.de/go/pdfcore/tools/internal/open"
	"seehuhn.de/go/pdfcore/tools/internal/profile"
)

func main() {
	passwd := flag.String("p", "", "PDF password")
	repair := flag.Bool("r", false, "repair damaged files")
	listObjects := flag.Bool("x", false, "list all cross-reference entries")
	showObject := flag.String("o", "", "print the given object, e.g. \"12\" or \"12.1\"")
	verbose := flag.Bool("v", false, "show debug messages")
	showVersion := flag.Bool("version", false, "print version information and exit")
	cpuprofile := flag.String("cpuprofile", "", "write CPU profile to file")
	memprofile := flag.String("memprofile", "", "write memory profile to file")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [options] file.pdf\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Short("pdf-xref"))
		return
	}
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	stop, err := profile.Start(*cpuprofile, *memprofile)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	err = run(flag.Arg(0), *passwd, *repair, *listObjects, *showObject, *verbose)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(fname, passwd string, repair, listObjects bool, showObject string, verbose bool) error {
	r, err := open.File(fname, passwd, repair, open.Logger(verbose))
	if err != nil {
		return err
	}
	defer r.Close()

	if showObject != "" {
		ref, err := parseRef(showObject)
		if err != nil {
			return err
		}
		obj, err := r.Get(ref)
		if err != nil {
			return err
		}
		return printObject(os.Stdout, obj)
	}

	err = showSummary(os.Stdout, r)
	if err != nil {
		return err
	}
	if listObjects {
		fmt.Println()
		showXRef(os.Stdout, r)
	}
	return nil
}

func showSummary(w io.Writer, r *pdfcore.Reader) error {
	version, err := r.Version().ToString()
	if err != nil {
		version = "unknown"
	}
	fmt.Fprintf(w, "version: %s\n", version)
	fmt.Fprintf(w, "startxref: %d\n", r.StartXRef())
	fmt.Fprintf(w, "xref sections: %d\n", r.IncrementalUpdates())
	fmt.Fprintf(w, "size: %d\n", r.Size())

	if lin := r.Linearization(); lin != nil {
		fmt.Fprintf(w, "linearized: yes (%s)\n", formatDict(lin))
	} else {
		fmt.Fprintln(w, "linearized: no")
	}

	trailer := r.Trailer()
	if _, isEncrypted := trailer["Encrypt"]; isEncrypted {
		fmt.Fprintf(w, "encrypted: yes, user permissions %s\n", r.Permissions())
	} else {
		fmt.Fprintln(w, "encrypted: no")
	}

	counts := make(map[pdfcore.XRefType]int)
	for _, n := range r.XRefNumbers() {
		e, _ := r.XRefEntry(n)
		counts[e.Type]++
	}
	fmt.Fprintf(w, "objects: %d in use, %d compressed, %d free\n",
		counts[pdfcore.XRefInUse], counts[pdfcore.XRefCompressed], counts[pdfcore.XRefFree])

	fmt.Fprintf(w, "trailer: %s\n", formatDict(trailer))
	return nil
}

func showXRef(w io.Writer, r *pdfcore.Reader) {
	for _, n := range r.XRefNumbers() {
		e, _ := r.XRefEntry(n)
		switch e.Type {
		case pdfcore.XRefInUse:
			fmt.Fprintf(w, "%6d %5d  offset %d\n", n, e.Generation, e.Offset)
		case pdfcore.XRefCompressed:
			fmt.Fprintf(w, "%6d %5d  in stream %d, index %d\n", n, 0, e.Stream, e.Index)
		default:
			fmt.Fprintf(w, "%6d %5d  free, next %d\n", n, e.Generation, e.Next)
		}
	}
}

// formatDict shows a dictionary on a single line.  Direct values are
// abbreviated.
func formatDict(dict pdfcore.Dict) string {
	keys := make([]pdfcore.Name, 0, len(dict))
	for key := range dict {
		keys = append(keys, key)
	}
	slices.Sort(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		val := dict[key]
		var s string
		switch val := val.(type) {
		case pdfcore.Array:
			s = val.String()
		case pdfcore.Dict:
			s = val.String()
		case pdfcore.String, pdfcore.HexString:
			buf, _ := pdfcore.AsBytes(val)
			s = fmt.Sprintf("<%x>", buf)
		default:
			s = pdfcore.Format(val)
		}
		parts = append(parts, "/"+string(key)+" "+s)
	}
	return strings.Join(parts, " ")
}

func printObject(w io.Writer, obj pdfcore.Object) error {
	stm, isStream := obj.(*pdfcore.Stream)
	if !isStream {
		_, err := fmt.Fprintln(w, pdfcore.Format(obj))
		return err
	}

	_, err := fmt.Fprintln(w, pdfcore.Format(stm.Dict))
	if err != nil {
		return err
	}
	data, err := stm.Decode()
	if errors.Is(err, pdfcore.ErrUnsupportedFilter) {
		fmt.Fprintf(w, "%% %d bytes of encoded data\n", len(stm.Data))
		return nil
	} else if err != nil {
		return err
	}
	fmt.Fprintf(w, "%% %d bytes of decoded data\n", len(data))
	_, err = w.Write(data)
	return err
}

// parseRef parses an object number, optionally followed by a dot and a
// generation number.
func parseRef(s string) (pdfcore.Reference, error) {
	numStr, genStr, hasGen := strings.Cut(s, ".")
	number, err := strconv.ParseUint(numStr, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid object number %q", numStr)
	}
	var gen uint64
	if hasGen {
		gen, err = strconv.ParseUint(genStr, 10, 16)
		if err != nil {
			return 0, fmt.Errorf("invalid generation number %q", genStr)
		}
	}
	return pdfcore.NewReference(uint32(number), uint16(gen)), nil
}
