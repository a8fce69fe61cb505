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
	"bytes"
	"fmt"
	"io"

	"golang.org/x/exp/maps"

	"seehuhn.de/go/pdfcore/internal/filter/ascii85"
	"seehuhn.de/go/pdfcore/internal/filter/asciihex"
	"seehuhn.de/go/pdfcore/internal/filter/flate"
	"seehuhn.de/go/pdfcore/internal/filter/predict"
	"seehuhn.de/go/pdfcore/internal/filter/runlength"
)

// Filter represents a PDF stream filter.
type Filter interface {
	// Info returns the name and the parameters of the filter, as used in
	// the /Filter and /DecodeParms entries of a stream dictionary.
	Info() (Name, Dict)

	// Decode returns a reader for the decoded data.
	Decode(r io.Reader) (io.Reader, error)

	// Encode returns a writer which encodes data and writes the result to
	// w.  Closing the returned writer must close w.
	Encode(w io.WriteCloser) (io.WriteCloser, error)
}

// MakeFilter returns the filter with the given name and parameters.
// For unknown filters, an error wrapping [ErrUnsupportedFilter] is returned.
func MakeFilter(name Name, parms Dict) (Filter, error) {
	switch name {
	case "FlateDecode", "Fl":
		return FilterFlate(parms), nil
	case "ASCIIHexDecode", "AHx":
		return FilterASCIIHex{}, nil
	case "ASCII85Decode", "A85":
		return FilterASCII85{}, nil
	case "RunLengthDecode", "RL":
		return FilterRunLength{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFilter, name)
	}
}

// FilterFlate is the FlateDecode filter.  The map holds the filter
// parameters.
type FilterFlate Dict

// Info implements the [Filter] interface.
func (f FilterFlate) Info() (Name, Dict) {
	if len(f) == 0 {
		return "FlateDecode", nil
	}
	return "FlateDecode", maps.Clone(Dict(f))
}

func (f FilterFlate) params() (*predict.Params, error) {
	p := &predict.Params{
		Predictor:        1,
		Colors:           1,
		BitsPerComponent: 8,
		Columns:          1,
	}
	for key, dst := range map[Name]*int{
		"Predictor":        &p.Predictor,
		"Colors":           &p.Colors,
		"BitsPerComponent": &p.BitsPerComponent,
		"Columns":          &p.Columns,
	} {
		switch val := f[key].(type) {
		case Integer:
			*dst = int(val)
		case nil:
			// use the default
		default:
			return nil, fmt.Errorf("FlateDecode: invalid /%s %s", key, Format(val))
		}
	}
	if p.Predictor == 1 {
		return nil, nil
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

// Decode implements the [Filter] interface.
func (f FilterFlate) Decode(r io.Reader) (io.Reader, error) {
	p, err := f.params()
	if err != nil {
		return nil, err
	}
	return flate.Decode(r, p)
}

// Encode implements the [Filter] interface.
func (f FilterFlate) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	p, err := f.params()
	if err != nil {
		return nil, err
	}
	return flate.Encode(w, p)
}

// FilterASCIIHex is the ASCIIHexDecode filter.
type FilterASCIIHex struct{}

// Info implements the [Filter] interface.
func (FilterASCIIHex) Info() (Name, Dict) {
	return "ASCIIHexDecode", nil
}

// Decode implements the [Filter] interface.
func (FilterASCIIHex) Decode(r io.Reader) (io.Reader, error) {
	return asciihex.Decode(r), nil
}

// Encode implements the [Filter] interface.
func (FilterASCIIHex) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return asciihex.Encode(w), nil
}

// FilterASCII85 is the ASCII85Decode filter.
type FilterASCII85 struct{}

// Info implements the [Filter] interface.
func (FilterASCII85) Info() (Name, Dict) {
	return "ASCII85Decode", nil
}

// Decode implements the [Filter] interface.
func (FilterASCII85) Decode(r io.Reader) (io.Reader, error) {
	return ascii85.Decode(r), nil
}

// Encode implements the [Filter] interface.
func (FilterASCII85) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return ascii85.Encode(w), nil
}

// FilterRunLength is the RunLengthDecode filter.
type FilterRunLength struct{}

// Info implements the [Filter] interface.
func (FilterRunLength) Info() (Name, Dict) {
	return "RunLengthDecode", nil
}

// Decode implements the [Filter] interface.
func (FilterRunLength) Decode(r io.Reader) (io.Reader, error) {
	return runlength.Decode(r), nil
}

// Encode implements the [Filter] interface.
func (FilterRunLength) Encode(w io.WriteCloser) (io.WriteCloser, error) {
	return runlength.Encode(w), nil
}

// Filters returns the filters of the stream, in the order in which they
// must be applied for decoding.
func (x *Stream) Filters() ([]Filter, error) {
	var res []Filter
	parms := x.Dict["DecodeParms"]
	switch f := x.Dict["Filter"].(type) {
	case nil:
		// pass
	case Name:
		pDict, _ := parms.(Dict)
		filter, err := MakeFilter(f, pDict)
		if err != nil {
			return nil, err
		}
		res = append(res, filter)
	case Array:
		pa, _ := parms.(Array)
		for i, fi := range f {
			name, ok := fi.(Name)
			if !ok {
				return nil, fmt.Errorf("%w: filter name %s", ErrInvalidDataType, Format(fi))
			}
			var pDict Dict
			if i < len(pa) {
				pDict, _ = pa[i].(Dict)
			}
			filter, err := MakeFilter(name, pDict)
			if err != nil {
				return nil, err
			}
			res = append(res, filter)
		}
	default:
		return nil, fmt.Errorf("%w: /Filter %s", ErrInvalidDataType, Format(f))
	}
	return res, nil
}

// Decode applies all filters of the stream and returns the decoded data.
func (x *Stream) Decode() ([]byte, error) {
	filters, err := x.Filters()
	if err != nil {
		return nil, err
	}
	var r io.Reader = bytes.NewReader(x.Data)
	for _, f := range filters {
		r, err = f.Decode(r)
		if err != nil {
			return nil, err
		}
	}
	return io.ReadAll(r)
}

// NewStream creates a stream object with the given dictionary, holding data
// encoded with the given filters.  The filters are listed in decoding order.
// The /Filter and /DecodeParms entries of the dictionary are set to match
// the filters.
func NewStream(dict Dict, data []byte, filters ...Filter) (*Stream, error) {
	dict = maps.Clone(dict)
	if dict == nil {
		dict = Dict{}
	}
	delete(dict, "Filter")
	delete(dict, "DecodeParms")

	buf := &bytes.Buffer{}
	var w io.WriteCloser = nopCloser{buf}
	// filters[0] is the first decoder, so it is applied last when encoding
	for _, f := range filters {
		var err error
		w, err = f.Encode(w)
		if err != nil {
			return nil, err
		}
	}
	_, err := w.Write(data)
	if err != nil {
		return nil, err
	}
	err = w.Close()
	if err != nil {
		return nil, err
	}

	if len(filters) == 1 {
		name, parms := filters[0].Info()
		dict["Filter"] = name
		if parms != nil {
			dict["DecodeParms"] = parms
		}
	} else if len(filters) > 1 {
		names := make(Array, len(filters))
		parmsArray := make(Array, len(filters))
		needParms := false
		for i, f := range filters {
			name, parms := f.Info()
			names[i] = name
			if parms != nil {
				parmsArray[i] = parms
				needParms = true
			}
		}
		dict["Filter"] = names
		if needParms {
			dict["DecodeParms"] = parmsArray
		}
	}

	return &Stream{Dict: dict, Data: buf.Bytes()}, nil
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }
