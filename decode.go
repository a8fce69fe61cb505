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
	"errors"
	"fmt"
	"math"
	"strconv"
)

// Kind classifies the first token of an object.
type Kind int

// These are the possible results of [Decoder.DetermineKind].
const (
	KindNull Kind = iota
	KindBool
	KindInteger
	KindReal
	KindReference
	KindDict
	KindArray
	KindString
	KindHexString
	KindName
	KindUnknown
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInteger:
		return "integer"
	case KindReal:
		return "real"
	case KindReference:
		return "reference"
	case KindDict:
		return "dict"
	case KindArray:
		return "array"
	case KindString:
		return "string"
	case KindHexString:
		return "hex string"
	case KindName:
		return "name"
	default:
		return "unknown"
	}
}

// maxNesting limits how deeply arrays and dictionaries can be nested.
const maxNesting = 256

// Decoder builds PDF objects from the tokens of a [Tokenizer].
type Decoder struct {
	tok *Tokenizer

	// Ref is the reference of the enclosing indirect object.  It is passed
	// to Decrypt.
	Ref Reference

	// Decrypt, if set, is applied to the contents of every string before
	// the string is returned.
	Decrypt func(ref Reference, buf []byte) ([]byte, error)

	depth int
}

// NewDecoder returns a decoder which reads tokens from t.
func NewDecoder(t *Tokenizer) *Decoder {
	return &Decoder{tok: t}
}

// ParseObject decodes a single object from buf.
func ParseObject(buf []byte) (Object, error) {
	t := NewTokenizer(bytes.NewReader(buf), int64(len(buf)))
	return NewDecoder(t).ReadObject()
}

// ReadObject reads the next complete object.
func (d *Decoder) ReadObject() (Object, error) {
	tok, err := d.tok.NextToken()
	if err != nil {
		return nil, err
	}
	kind, err := d.DetermineKind(tok)
	if err != nil {
		return nil, err
	}
	return d.Decode(kind, tok)
}

// DetermineKind classifies the object starting with tok.  For integers, up
// to two further tokens are read ahead to check for a "N G R" reference.
// Tokens read ahead stay queued in the tokenizer.
func (d *Decoder) DetermineKind(tok Token) (Kind, error) {
	if tok.Kind == TokenDelimiter {
		switch string(tok.Text) {
		case "<<":
			return KindDict, nil
		case "[":
			return KindArray, nil
		case "(":
			return KindString, nil
		case "<":
			return KindHexString, nil
		case "/":
			return KindName, nil
		default:
			return KindUnknown, nil
		}
	}

	switch string(tok.Text) {
	case "null":
		return KindNull, nil
	case "true", "false":
		return KindBool, nil
	}

	switch classifyNumber(tok.Text) {
	case KindReal:
		return KindReal, nil
	case KindInteger:
		// fall through to the reference check below
	default:
		return KindUnknown, nil
	}

	t1, err := d.tok.PeekToken(0)
	if errors.Is(err, ErrUnexpectedEOF) {
		return KindInteger, nil
	} else if err != nil {
		return 0, err
	}
	if t1.Kind != TokenRegular || classifyNumber(t1.Text) != KindInteger {
		return KindInteger, nil
	}
	t2, err := d.tok.PeekToken(1)
	if errors.Is(err, ErrUnexpectedEOF) {
		return KindInteger, nil
	} else if err != nil {
		return 0, err
	}
	if t2.is(TokenRegular, "R") {
		return KindReference, nil
	}
	return KindInteger, nil
}

// Decode builds the object of the given kind, starting with tok.
func (d *Decoder) Decode(kind Kind, tok Token) (Object, error) {
	switch kind {
	case KindNull:
		return nil, nil
	case KindBool:
		return Bool(string(tok.Text) == "true"), nil
	case KindInteger:
		x, err := strconv.ParseInt(string(tok.Text), 10, 64)
		if err != nil {
			return nil, errorAt(tok.Pos, fmt.Errorf("%w: %q", ErrNoNumber, tok.Text))
		}
		return Integer(x), nil
	case KindReal:
		x, err := strconv.ParseFloat(string(tok.Text), 64)
		if err != nil {
			return nil, errorAt(tok.Pos, fmt.Errorf("%w: %q", ErrNoNumber, tok.Text))
		}
		return Real(x), nil
	case KindReference:
		return d.decodeReference(tok)
	case KindDict:
		return d.decodeDict(tok)
	case KindArray:
		return d.decodeArray(tok)
	case KindString:
		buf, err := d.tok.ReadLiteralString()
		if err != nil {
			return nil, err
		}
		buf, err = d.decrypt(buf)
		if err != nil {
			return nil, err
		}
		return String(buf), nil
	case KindHexString:
		buf, err := d.tok.ReadHexString()
		if err != nil {
			return nil, err
		}
		buf, err = d.decrypt(buf)
		if err != nil {
			return nil, err
		}
		return HexString(buf), nil
	case KindName:
		name, err := d.tok.ReadName()
		if err != nil {
			return nil, err
		}
		return name, nil
	default:
		return nil, errorAt(tok.Pos,
			fmt.Errorf("%w: unexpected token %q", ErrInvalidDataType, tok.Text))
	}
}

func (d *Decoder) decrypt(buf []byte) ([]byte, error) {
	if d.Decrypt == nil {
		return buf, nil
	}
	return d.Decrypt(d.Ref, buf)
}

func (d *Decoder) decodeReference(tok Token) (Object, error) {
	genTok, err := d.tok.NextToken()
	if err != nil {
		return nil, err
	}
	_, err = d.tok.NextToken() // "R"
	if err != nil {
		return nil, err
	}

	number, err := strconv.ParseInt(string(tok.Text), 10, 64)
	if err != nil {
		return nil, errorAt(tok.Pos, fmt.Errorf("%w: %q", ErrNoNumber, tok.Text))
	}
	gen, err := strconv.ParseInt(string(genTok.Text), 10, 64)
	if err != nil {
		return nil, errorAt(genTok.Pos, fmt.Errorf("%w: %q", ErrNoNumber, genTok.Text))
	}
	if number < 0 || number > math.MaxUint32 || gen < 0 || gen > math.MaxUint16 {
		return nil, errorAt(tok.Pos,
			fmt.Errorf("%w: reference %d %d R", ErrOutOfRange, number, gen))
	}
	return NewReference(uint32(number), uint16(gen)), nil
}

func (d *Decoder) decodeArray(start Token) (Object, error) {
	if d.depth >= maxNesting {
		return nil, errorAt(start.Pos, fmt.Errorf("%w: nesting too deep", ErrOutOfRange))
	}
	d.depth++
	defer func() { d.depth-- }()

	res := Array{}
	for {
		tok, err := d.tok.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.is(TokenDelimiter, "]") {
			return res, nil
		}
		kind, err := d.DetermineKind(tok)
		if err != nil {
			return nil, err
		}
		obj, err := d.Decode(kind, tok)
		if err != nil {
			return nil, err
		}
		res = append(res, obj)
	}
}

func (d *Decoder) decodeDict(start Token) (Object, error) {
	if d.depth >= maxNesting {
		return nil, errorAt(start.Pos, fmt.Errorf("%w: nesting too deep", ErrOutOfRange))
	}
	d.depth++
	defer func() { d.depth-- }()

	res := Dict{}
	for {
		tok, err := d.tok.NextToken()
		if err != nil {
			return nil, err
		}
		if tok.is(TokenDelimiter, ">>") {
			return res, nil
		}
		if !tok.is(TokenDelimiter, "/") {
			return nil, errorAt(tok.Pos,
				fmt.Errorf("%w: dictionary key %q is not a name", ErrInvalidDataType, tok.Text))
		}
		key, err := d.tok.ReadName()
		if err != nil {
			return nil, err
		}

		val, err := d.ReadObject()
		if err != nil {
			return nil, err
		}
		if val != nil {
			res[key] = val
		} else {
			delete(res, key)
		}
	}
}

// classifyNumber returns KindInteger or KindReal if buf is a valid number,
// and KindUnknown otherwise.
func classifyNumber(buf []byte) Kind {
	if len(buf) > 0 && (buf[0] == '+' || buf[0] == '-') {
		buf = buf[1:]
	}
	digits := 0
	dots := 0
	for _, c := range buf {
		switch {
		case c >= '0' && c <= '9':
			digits++
		case c == '.':
			dots++
		default:
			return KindUnknown
		}
	}
	switch {
	case digits == 0 || dots > 1:
		return KindUnknown
	case dots == 1:
		return KindReal
	default:
		return KindInteger
	}
}
