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

package pdfcore

import (
	"regexp"
	"strconv"
)

var (
	whiteSpacePat = `[\000\011\014 ]`
	eolPat        = `(?:\r\n|\r|\n)`
	objectPat     = `([0-9]{1,10})` + whiteSpacePat + `+([0-9]{1,5})` + whiteSpacePat + `+obj`
	markerPat     = eolPat + whiteSpacePat + `*(` + objectPat + `|trailer)\b`
	markerRegexp  = regexp.MustCompile(markerPat)
)

const (
	scanChunk   = 1 << 20
	scanOverlap = 256
)

type scannedObject struct {
	ref Reference
	pos int64
}

// scanResult describes the objects and trailers found by a linear scan
// through the file.
type scanResult struct {
	objects  []scannedObject
	trailers []int64
	catalog  Reference
	objStms  []Reference
}

// scanFile searches the whole file for "N G obj" and "trailer" keywords.
// Objects are parsed to find the catalog, xref streams and object streams.
func (r *Reader) scanFile() (*scanResult, error) {
	res := &scanResult{}

	buf := make([]byte, scanChunk+scanOverlap)
	for base := int64(0); base < r.size; base += scanChunk {
		n := min(int64(len(buf)), r.size-base)
		k, err := r.r.ReadAt(buf[:n], base)
		if int64(k) < n {
			return nil, err
		}
		last := base+n >= r.size

		for _, m := range markerRegexp.FindAllSubmatchIndex(buf[:n], -1) {
			if m[0] >= scanChunk && !last {
				// will be found again in the next chunk
				continue
			}
			pos := base + int64(m[2])
			if m[4] < 0 {
				res.trailers = append(res.trailers, pos)
				continue
			}
			number, err1 := strconv.ParseUint(string(buf[m[4]:m[5]]), 10, 32)
			gen, err2 := strconv.ParseUint(string(buf[m[6]:m[7]]), 10, 16)
			if err1 != nil || err2 != nil || number == 0 {
				continue
			}
			res.objects = append(res.objects, scannedObject{
				ref: NewReference(uint32(number), uint16(gen)),
				pos: pos,
			})
		}
		if last {
			break
		}
	}

	for _, obj := range res.objects {
		val, _, err := r.readObjectAt(obj.pos, obj.ref, false)
		if err != nil {
			continue
		}
		var dict Dict
		switch x := val.(type) {
		case Dict:
			dict = x
		case *Stream:
			dict = x.Dict
		}
		switch dict["Type"] {
		case Name("Catalog"):
			res.catalog = obj.ref
		case Name("XRef"):
			if _, isStream := val.(*Stream); isStream {
				r.xrefStreams[obj.ref] = true
				res.trailers = append(res.trailers, -obj.pos)
			}
		case Name("ObjStm"):
			if _, isStream := val.(*Stream); isStream {
				res.objStms = append(res.objStms, obj.ref)
			}
		}
	}

	return res, nil
}

// repair rebuilds the cross-reference index and the trailer from a linear
// scan of the file.  Later definitions of an object take precedence.
func (r *Reader) repair() error {
	scan, err := r.scanFile()
	if err != nil {
		return err
	}
	if len(scan.objects) == 0 {
		return &MalformedFileError{
			Err: ErrNoXRef,
			Loc: []string{"no objects found while rebuilding the xref table"},
		}
	}

	xref := xrefMap{}
	for _, obj := range scan.objects {
		xref[obj.ref.Number()] = &XRefEntry{
			Type:       XRefInUse,
			Offset:     obj.pos,
			Generation: obj.ref.Generation(),
		}
	}
	r.xref = xref

	// Collect the trailers, newest first.
	trailer := Dict{}
	updates := 0
	for i := len(scan.trailers) - 1; i >= 0; i-- {
		dict := r.readTrailerAt(scan.trailers[i])
		if dict == nil {
			continue
		}
		updates++
		for key, val := range dict {
			if _, ok := trailer[key]; !ok {
				trailer[key] = val
			}
		}
	}
	delete(trailer, "Prev")
	delete(trailer, "XRefStm")
	if _, hasRoot := trailer["Root"].(Reference); !hasRoot && scan.catalog != 0 {
		trailer["Root"] = scan.catalog
	}
	r.trailer = trailer
	r.updates = max(updates, 1)

	// Object streams of encrypted files can only be read after the file
	// has been unlocked, so their members cannot be listed here.
	if _, encrypted := trailer["Encrypt"]; !encrypted {
		for _, ref := range scan.objStms {
			r.addObjStmMembers(ref)
		}
	}

	r.recovered("rebuilt cross-reference index from a file scan",
		"objects", len(r.xref), "trailers", updates)
	return nil
}

// readTrailerAt reads a trailer dictionary.  Positive positions point to
// the "trailer" keyword, negative positions to an xref stream.
func (r *Reader) readTrailerAt(pos int64) Dict {
	if pos < 0 {
		obj, _, err := r.readObjectAt(-pos, 0, false)
		stm, ok := obj.(*Stream)
		if err != nil || !ok {
			return nil
		}
		dict := Dict{}
		for key, val := range stm.Dict {
			if !xrefStreamKeys[key] {
				dict[key] = val
			}
		}
		return dict
	}

	t := NewTokenizer(r.r, r.size)
	t.SeekTo(pos + int64(len("trailer")))
	obj, err := NewDecoder(t).ReadObject()
	if err != nil {
		return nil
	}
	dict, _ := obj.(Dict)
	return dict
}

// addObjStmMembers adds xref entries for the members of an object stream,
// unless the objects are also stored outside of object streams.
func (r *Reader) addObjStmMembers(ref Reference) {
	s, err := r.getObjStm(ref.Number())
	if err != nil {
		r.recovered("cannot read object stream", "ref", ref, "error", err)
		return
	}
	for i, m := range s.members {
		if m.number == 0 {
			continue
		}
		if e, ok := r.xref[m.number]; ok && e.Type == XRefInUse {
			continue
		}
		r.xref[m.number] = &XRefEntry{
			Type:   XRefCompressed,
			Stream: ref.Number(),
			Index:  i,
		}
	}
}
