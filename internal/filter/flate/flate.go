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

// Package flate implements the FlateDecode filter, optionally combined with
// a predictor.
package flate

import (
	"io"

	"github.com/klauspost/compress/zlib"

	"seehuhn.de/go/pdfcore/internal/filter/predict"
)

// Decode returns a reader which decompresses the zlib data read from r and
// then undoes the prediction.  If p is nil, no predictor is used.
func Decode(r io.Reader, p *predict.Params) (io.Reader, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, err
	}
	res := &reader{zr: zr}
	if p == nil {
		return res, nil
	}
	return predict.NewReader(res, p)
}

// reader stops at the end of the compressed data and treats a truncated
// stream as ending early.  Many PDF writers omit the final checksum.
type reader struct {
	zr  io.ReadCloser
	err error
}

func (r *reader) Read(p []byte) (int, error) {
	if r.err != nil {
		return 0, r.err
	}
	n, err := r.zr.Read(p)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}
	if err != nil {
		r.err = err
		r.zr.Close()
	}
	return n, err
}

// Encode returns a writer which applies the predictor and compresses the
// result.  Closing the returned writer flushes all data and closes w.
func Encode(w io.WriteCloser, p *predict.Params) (io.WriteCloser, error) {
	zw, err := zlib.NewWriterLevel(w, zlib.BestCompression)
	if err != nil {
		return nil, err
	}
	var res io.WriteCloser = &writer{zw: zw, w: w}
	if p != nil {
		res, err = predict.NewWriter(res, p)
		if err != nil {
			return nil, err
		}
	}
	return res, nil
}

type writer struct {
	zw *zlib.Writer
	w  io.WriteCloser
}

func (w *writer) Write(p []byte) (int, error) {
	return w.zw.Write(p)
}

func (w *writer) Close() error {
	err := w.zw.Close()
	if err != nil {
		return err
	}
	return w.w.Close()
}
