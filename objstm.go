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
)

// objStmCacheSize is the number of decoded object streams kept in memory.
const objStmCacheSize = 8

// objStm is the decoded contents of an object stream.
type objStm struct {
	data    []byte
	first   int64
	members []objStmMember
}

type objStmMember struct {
	number uint32
	offset int64
}

// parseObjStm decodes an object stream and reads its header.
func (r *Reader) parseObjStm(stm *Stream) (*objStm, error) {
	N, ok := stm.Dict["N"].(Integer)
	if !ok || N < 0 {
		return nil, errors.New("invalid /N in object stream")
	}
	first, ok := stm.Dict["First"].(Integer)
	if !ok || first < 0 {
		return nil, errors.New("invalid /First in object stream")
	}

	data, err := stm.Decode()
	if err != nil {
		return nil, err
	}
	r.decodeCount++

	size := int64(len(data))
	if int64(first) > size || int64(N) > size {
		return nil, fmt.Errorf("%w: object stream header", ErrOutOfRange)
	}

	t := NewTokenizer(bytes.NewReader(data), size)
	members := make([]objStmMember, N)
	for i := range members {
		numTok, err := t.NextToken()
		if err != nil {
			return nil, err
		}
		offsTok, err := t.NextToken()
		if err != nil {
			return nil, err
		}
		number, err1 := parseUint(numTok, 32)
		offset, err2 := parseUint(offsTok, 32)
		if err1 != nil || err2 != nil {
			return nil, errorAt(numTok.Pos,
				fmt.Errorf("%w: invalid object stream header", ErrNoNumber))
		}
		members[i] = objStmMember{number: uint32(number), offset: int64(offset)}
	}

	return &objStm{data: data, first: int64(first), members: members}, nil
}

// getObjStm returns the decoded object stream with the given number.
// Recently used object streams are cached.
func (r *Reader) getObjStm(number uint32) (*objStm, error) {
	e := r.xref[number]
	if e == nil || e.Type != XRefInUse {
		return nil, fmt.Errorf("%w: object stream %d", ErrNoObject, number)
	}
	ref := NewReference(number, e.Generation)
	if s, ok := r.objStms.Get(ref); ok {
		return s, nil
	}

	obj, _, err := r.readObjectAt(e.Offset, ref, true)
	if err != nil {
		return nil, err
	}
	stm, ok := obj.(*Stream)
	if !ok {
		return nil, fmt.Errorf("%w: object stream %d is %s", ErrInvalidDataType, number, Format(obj))
	}
	s, err := r.parseObjStm(stm)
	if err != nil {
		return nil, wrap(err, "object stream "+ref.String())
	}
	r.objStms.Put(ref, s)
	return s, nil
}

// member decodes the i-th object of the stream.
func (s *objStm) member(i int) (Object, error) {
	pos := s.first + s.members[i].offset
	size := int64(len(s.data))
	if pos >= size {
		return nil, fmt.Errorf("%w: object offset %d", ErrOutOfRange, pos)
	}
	t := NewTokenizer(bytes.NewReader(s.data), size)
	t.SeekTo(pos)
	return NewDecoder(t).ReadObject()
}

// loadCompressed loads an object from an object stream.  The object is
// located using the index from the xref entry, falling back to a search by
// object number if the index is wrong.  All other members
// of the stream, which are still current according to the xref index, are
// added to the store at the same time.
func (r *Reader) loadCompressed(ref Reference, e *XRefEntry) (Object, error) {
	s, err := r.getObjStm(e.Stream)
	if err != nil {
		return nil, err
	}

	target := -1
	if e.Index >= 0 && e.Index < len(s.members) && s.members[e.Index].number == ref.Number() {
		target = e.Index
	} else {
		for i, m := range s.members {
			if m.number == ref.Number() {
				target = i
				break
			}
		}
	}
	if target < 0 {
		return nil, fmt.Errorf("%s missing from object stream %d", ref, e.Stream)
	}
	res, err := s.member(target)
	if err != nil {
		return nil, err
	}

	for i, m := range s.members {
		if i == target || m.number == ref.Number() {
			continue
		}
		me := r.xref[m.number]
		if me == nil || me.Type != XRefCompressed || me.Stream != e.Stream || me.Index != i {
			// superseded by a later update, or a duplicate
			continue
		}
		if obj, err := s.member(i); err == nil {
			r.store.setLoaded(NewReference(m.number, 0), obj)
		}
	}
	return res, nil
}
