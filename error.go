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
	"encoding/hex"
	"errors"
	"strconv"
	"strings"
)

// These errors describe the different ways in which reading or writing a PDF
// file can fail.  Errors returned by this package wrap one of these values,
// so that callers can use [errors.Is] to classify a failure.
var (
	// ErrInvalidFormatMarker indicates that the "%PDF-x.y" header is missing.
	ErrInvalidFormatMarker = errors.New("PDF header not found")

	// ErrUnexpectedEOF indicates that the input ended in the middle of a
	// construct.
	ErrUnexpectedEOF = errors.New("unexpected end of input")

	// ErrNoNumber indicates that a number was expected but not found.
	ErrNoNumber = errors.New("number expected")

	// ErrInvalidDataType indicates a token or object of the wrong kind, for
	// example a dictionary key which is not a name.
	ErrInvalidDataType = errors.New("invalid data type")

	// ErrNoXRef indicates that a cross-reference section could not be read.
	ErrNoXRef = errors.New("cross-reference section unreadable")

	// ErrNoObject indicates that a reference could not be resolved to a
	// well-formed object.
	ErrNoObject = errors.New("object not found")

	// ErrInvalidPassword indicates that the supplied password did not unlock
	// an encrypted document.  The caller may retry with a different
	// password.
	ErrInvalidPassword = errors.New("invalid password")

	// ErrPrevChainCycle indicates that the /Prev entries of the trailers form
	// a loop.
	ErrPrevChainCycle = errors.New("cycle in /Prev chain")

	// ErrOutOfRange indicates an index or file offset outside the valid
	// range.
	ErrOutOfRange = errors.New("value out of range")

	// ErrNothingToWrite indicates that a cross-reference section without any
	// entries was about to be written.
	ErrNothingToWrite = errors.New("empty cross-reference section")

	// ErrUnsupportedFilter indicates a stream filter which is not
	// implemented.
	ErrUnsupportedFilter = errors.New("unsupported filter")
)

// MalformedFileError indicates that a PDF file could not be parsed.
type MalformedFileError struct {
	// Pos is the byte offset where the problem was detected, or 0 if the
	// position is not known.
	Pos int64

	// Err is the underlying error.  This is normally one of the ErrXXX
	// values defined in this package.
	Err error

	// Loc gives additional context, outermost first.
	Loc []string
}

func (err *MalformedFileError) Error() string {
	parts := append([]string{"malformed PDF"}, err.Loc...)
	msg := strings.Join(parts, ": ")
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	if err.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return msg
}

func (err *MalformedFileError) Unwrap() error {
	return err.Err
}

// wrap adds context to an error.  If err is a MalformedFileError, the
// location is prepended to the existing context.
func wrap(err error, loc string) error {
	if err == nil {
		return nil
	}
	var mf *MalformedFileError
	if errors.As(err, &mf) {
		res := &MalformedFileError{
			Pos: mf.Pos,
			Err: mf.Err,
			Loc: append([]string{loc}, mf.Loc...),
		}
		return res
	}
	return &MalformedFileError{Err: err, Loc: []string{loc}}
}

func errorAt(pos int64, err error) error {
	return &MalformedFileError{Pos: pos, Err: err}
}

// AuthenticationError is returned when the password supplied for an
// encrypted document is wrong, or when an encrypted object is accessed before
// a password was supplied.
type AuthenticationError struct {
	ID []byte
}

func (err *AuthenticationError) Error() string {
	if len(err.ID) == 0 {
		return "authentication failed"
	}
	return "authentication failed for document ID " + hex.EncodeToString(err.ID)
}

// Is makes AuthenticationError match [ErrInvalidPassword].
func (err *AuthenticationError) Is(target error) bool {
	return target == ErrInvalidPassword
}
