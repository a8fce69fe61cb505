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
	"io"
)

// TokenKind distinguishes regular tokens from delimiter tokens.
type TokenKind int

// These are the possible token kinds.
const (
	TokenRegular TokenKind = iota
	TokenDelimiter
)

func (k TokenKind) String() string {
	switch k {
	case TokenRegular:
		return "regular"
	case TokenDelimiter:
		return "delimiter"
	default:
		return fmt.Sprintf("TokenKind(%d)", int(k))
	}
}

// Token is a lexical unit of a PDF file.
type Token struct {
	Kind TokenKind
	Text []byte

	// Pos is the file offset of the first byte of the token.
	Pos int64
}

func (tok Token) is(kind TokenKind, text string) bool {
	return tok.Kind == kind && string(tok.Text) == text
}

func (tok Token) String() string {
	return fmt.Sprintf("%s %q", tok.Kind, tok.Text)
}

// Tokenizer splits the contents of a PDF file into tokens.
//
// Tokens which have been read ahead are kept in a FIFO queue, which is
// drained before any new input is read.  Literal strings, hex strings and
// names are read by the raw readers [Tokenizer.ReadLiteralString],
// [Tokenizer.ReadHexString] and [Tokenizer.ReadName] after the opening
// delimiter has been returned as a token.
type Tokenizer struct {
	src   *source
	queue []Token
}

// NewTokenizer returns a tokenizer which reads from the first size bytes of
// r, starting at offset 0.
func NewTokenizer(r io.ReaderAt, size int64) *Tokenizer {
	return &Tokenizer{
		src: newSource(r, size),
	}
}

// SeekTo discards all queued tokens and moves the read position to pos.
func (t *Tokenizer) SeekTo(pos int64) {
	t.queue = t.queue[:0]
	t.src.seek(pos)
}

// Tell returns the file offset of the next token to be returned, or of the
// next unread byte if no tokens are queued.
func (t *Tokenizer) Tell() int64 {
	if len(t.queue) > 0 {
		return t.queue[0].Pos
	}
	return t.src.tell()
}

// Len returns the total length of the input.
func (t *Tokenizer) Len() int64 {
	return t.src.length()
}

// NextToken returns the next token.  At the end of input, the error
// [ErrUnexpectedEOF] is returned.
func (t *Tokenizer) NextToken() (Token, error) {
	if len(t.queue) > 0 {
		tok := t.queue[0]
		t.queue = t.queue[1:]
		return tok, nil
	}
	return t.scan()
}

// QueueToken appends tok to the queue of tokens to be returned before any
// new input is read.
func (t *Tokenizer) QueueToken(tok Token) {
	t.queue = append(t.queue, tok)
}

// PeekToken returns the token i positions ahead, without consuming it.
// PeekToken(0) returns the token the next call to NextToken will return.
func (t *Tokenizer) PeekToken(i int) (Token, error) {
	for len(t.queue) <= i {
		tok, err := t.scan()
		if err != nil {
			return Token{}, err
		}
		t.queue = append(t.queue, tok)
	}
	return t.queue[i], nil
}

func (t *Tokenizer) scan() (Token, error) {
	err := t.skipWhiteSpace()
	if err != nil {
		return Token{}, err
	}

	pos := t.src.tell()
	c, err := t.src.readByte()
	if err == io.EOF {
		return Token{}, errorAt(pos, ErrUnexpectedEOF)
	} else if err != nil {
		return Token{}, err
	}

	if isDelimiter[c] {
		if c == '<' || c == '>' {
			next, err := t.src.peekByte()
			if err != nil && err != io.EOF {
				return Token{}, err
			}
			if err == nil && next == c {
				t.src.pos++
				return Token{Kind: TokenDelimiter, Text: []byte{c, c}, Pos: pos}, nil
			}
		}
		return Token{Kind: TokenDelimiter, Text: []byte{c}, Pos: pos}, nil
	}

	text := []byte{c}
	for {
		c, err := t.src.peekByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return Token{}, err
		}
		if isSpace[c] || isDelimiter[c] {
			break
		}
		text = append(text, c)
		t.src.pos++
	}
	return Token{Kind: TokenRegular, Text: text, Pos: pos}, nil
}

// skipWhiteSpace skips white space and comments.
func (t *Tokenizer) skipWhiteSpace() error {
	isComment := false
	for {
		c, err := t.src.peekByte()
		if err == io.EOF {
			return nil
		} else if err != nil {
			return err
		}
		if isComment {
			if c == '\r' || c == '\n' {
				isComment = false
			}
		} else if c == '%' {
			isComment = true
		} else if !isSpace[c] {
			return nil
		}
		t.src.pos++
	}
}

var errQueueNotEmpty = errors.New("raw read with queued tokens")

func (t *Tokenizer) readRaw() (byte, error) {
	c, err := t.src.readByte()
	if err == io.EOF {
		return 0, errorAt(t.src.tell(), ErrUnexpectedEOF)
	}
	return c, err
}

// ReadLiteralString reads a ()-delimited string, starting after the opening
// parenthesis.  Escape sequences are resolved, and end-of-line markers are
// normalised to a single line feed.
func (t *Tokenizer) ReadLiteralString() ([]byte, error) {
	if len(t.queue) > 0 {
		return nil, errQueueNotEmpty
	}

	var res []byte
	level := 0
	for {
		c, err := t.readRaw()
		if err != nil {
			return nil, err
		}

		switch c {
		case '(':
			level++
		case ')':
			if level == 0 {
				return res, nil
			}
			level--
		case '\r':
			c = '\n'
			next, err := t.src.peekByte()
			if err == nil && next == '\n' {
				t.src.pos++
			}
		case '\\':
			c, err = t.readRaw()
			if err != nil {
				return nil, err
			}
			switch c {
			case 'n':
				c = '\n'
			case 'r':
				c = '\r'
			case 't':
				c = '\t'
			case 'b':
				c = '\b'
			case 'f':
				c = '\f'
			case '\r':
				next, err := t.src.peekByte()
				if err == nil && next == '\n' {
					t.src.pos++
				}
				continue
			case '\n':
				continue
			case '0', '1', '2', '3', '4', '5', '6', '7':
				val := c - '0'
				for i := 0; i < 2; i++ {
					next, err := t.src.peekByte()
					if err != nil || next < '0' || next > '7' {
						break
					}
					val = val*8 + (next - '0')
					t.src.pos++
				}
				c = val
			}
			// All other escaped characters, including "(", ")" and "\",
			// stand for themselves.
		}
		res = append(res, c)
	}
}

// ReadHexString reads a <>-delimited string, starting after the opening
// angle bracket.  Characters other than hex digits are ignored.  If the
// number of digits is odd, a final 0 is assumed.
func (t *Tokenizer) ReadHexString() ([]byte, error) {
	if len(t.queue) > 0 {
		return nil, errQueueNotEmpty
	}

	var res []byte
	var hexVal byte
	first := true
	for {
		c, err := t.readRaw()
		if err != nil {
			return nil, err
		}

		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c == '>':
			if !first {
				res = append(res, 16*hexVal)
			}
			return res, nil
		default:
			continue
		}
		if first {
			hexVal = d
		} else {
			res = append(res, 16*hexVal+d)
		}
		first = !first
	}
}

// ReadName reads the characters of a name, starting after the leading slash.
// The #xx escapes are resolved.  A slash followed by a delimiter or white
// space gives the empty name.
func (t *Tokenizer) ReadName() (Name, error) {
	if len(t.queue) > 0 {
		return "", errQueueNotEmpty
	}

	pos := t.src.tell()
	var raw []byte
	for {
		c, err := t.src.peekByte()
		if err == io.EOF {
			break
		} else if err != nil {
			return "", err
		}
		if isSpace[c] || isDelimiter[c] {
			break
		}
		raw = append(raw, c)
		t.src.pos++
	}

	if bytes.IndexByte(raw, '#') < 0 {
		return Name(raw), nil
	}
	res := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		if c == '#' {
			if i+2 >= len(raw) || !isHex(raw[i+1]) || !isHex(raw[i+2]) {
				return "", errorAt(pos+int64(i),
					fmt.Errorf("%w: invalid escape in name", ErrInvalidDataType))
			}
			c = unhex(raw[i+1])<<4 | unhex(raw[i+2])
			i += 2
		}
		res = append(res, c)
	}
	return Name(res), nil
}

func isHex(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'A' && c <= 'F' || c >= 'a' && c <= 'f'
}

func unhex(c byte) byte {
	switch {
	case c >= '0' && c <= '9':
		return c - '0'
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10
	default:
		return c - 'a' + 10
	}
}

// skipEOL consumes a single end-of-line marker, if present.
func (t *Tokenizer) skipEOL() error {
	c, err := t.src.peekByte()
	if err == io.EOF {
		return nil
	} else if err != nil {
		return err
	}
	switch c {
	case '\n':
		t.src.pos++
	case '\r':
		t.src.pos++
		c, err = t.src.peekByte()
		if err == nil && c == '\n' {
			t.src.pos++
		}
	}
	return nil
}
