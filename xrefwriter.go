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
	"cmp"
	"fmt"
	"io"
	"math/bits"

	"golang.org/x/exp/slices"
)

// XRefBlock describes one subsection of a cross-reference section: the
// object numbers First, First+1, ..., First+Count-1.
type XRefBlock struct {
	First uint32
	Count uint32
}

// XRefWriter collects the cross-reference entries of the objects written
// to a file and serializes them, either as a classic table or as the data of
// a cross-reference stream.
//
// The entries are kept in contiguous blocks, sorted by their first object
// number.  Within each block, in-use and free entries are kept in separate
// sorted sequences.
type XRefWriter struct {
	blocks []*xrefBlock
}

type xrefBlock struct {
	first uint32
	count uint32
	inUse []xrefRecord
	free  []xrefRecord
}

type xrefRecord struct {
	number uint32
	gen    uint16
	offset int64
}

// NewXRefWriter returns an empty cross-reference writer.
func NewXRefWriter() *XRefWriter {
	return &XRefWriter{}
}

// AddObject records the entry for the object ref.  For objects in use,
// offset is the byte offset of the "N G obj" line.  For free objects,
// the offset is ignored and the generation of ref is the generation
// to be used when the number is reused.
//
// If an entry for the same object number exists already, it is replaced.
// Otherwise the entry extends an existing block at its tail or its head,
// or starts a new block.
func (x *XRefWriter) AddObject(ref Reference, offset int64, inUse bool) {
	rec := xrefRecord{number: ref.Number(), gen: ref.Generation(), offset: offset}
	n := rec.number

	for _, b := range x.blocks {
		if n >= b.first && n < b.first+b.count {
			b.remove(n)
			b.add(rec, inUse)
			return
		}
	}
	for _, b := range x.blocks {
		if uint64(n) == uint64(b.first)+uint64(b.count) {
			b.count++
			b.add(rec, inUse)
			return
		}
		if b.first > 0 && n == b.first-1 {
			b.first--
			b.count++
			b.add(rec, inUse)
			return
		}
	}

	b := &xrefBlock{first: n, count: 1}
	b.add(rec, inUse)
	idx, _ := slices.BinarySearchFunc(x.blocks, n, func(b *xrefBlock, n uint32) int {
		return cmp.Compare(b.first, n)
	})
	x.blocks = slices.Insert(x.blocks, idx, b)
}

func (b *xrefBlock) add(rec xrefRecord, inUse bool) {
	seq := &b.free
	if inUse {
		seq = &b.inUse
	}
	idx, _ := slices.BinarySearchFunc(*seq, rec.number, func(r xrefRecord, n uint32) int {
		return cmp.Compare(r.number, n)
	})
	*seq = slices.Insert(*seq, idx, rec)
}

func (b *xrefBlock) remove(number uint32) {
	b.inUse = slices.DeleteFunc(b.inUse, func(r xrefRecord) bool { return r.number == number })
	b.free = slices.DeleteFunc(b.free, func(r xrefRecord) bool { return r.number == number })
}

// MergeBlocks joins blocks whose ranges of object numbers are contiguous.
func (x *XRefWriter) MergeBlocks() {
	if len(x.blocks) < 2 {
		return
	}
	slices.SortFunc(x.blocks, func(a, b *xrefBlock) int {
		return cmp.Compare(a.first, b.first)
	})

	merged := x.blocks[:1]
	for _, b := range x.blocks[1:] {
		last := merged[len(merged)-1]
		if uint64(last.first)+uint64(last.count) != uint64(b.first) {
			merged = append(merged, b)
			continue
		}
		last.count += b.count
		last.inUse = append(last.inUse, b.inUse...)
		last.free = append(last.free, b.free...)
	}
	clear(x.blocks[len(merged):])
	x.blocks = merged
}

// Blocks returns the current subsections, in order of increasing object
// numbers.
func (x *XRefWriter) Blocks() []XRefBlock {
	res := make([]XRefBlock, len(x.blocks))
	for i, b := range x.blocks {
		res[i] = XRefBlock{First: b.first, Count: b.count}
	}
	return res
}

// Size returns one more than the largest object number recorded, or 0 if
// no entries have been recorded.  This is the value for the /Size entry of
// the trailer.
func (x *XRefWriter) Size() uint32 {
	if len(x.blocks) == 0 {
		return 0
	}
	var size uint32
	for _, b := range x.blocks {
		size = max(size, b.first+b.count)
	}
	return size
}

// xrefLine is one entry of the serialized section, in file order.
type xrefLine struct {
	number uint32
	gen    uint16
	offset int64
	inUse  bool
	next   uint32 // for free entries: the next free object number
}

// lines interleaves the in-use and free entries of all blocks, and chains
// the free entries in file order.  Object 0 heads the free list; if none
// of the blocks contains object 0, a separate block for it is prepended.
func (x *XRefWriter) lines() ([]XRefBlock, [][]xrefLine) {
	x.MergeBlocks()

	var blocks []XRefBlock
	var sections [][]xrefLine
	if len(x.blocks) == 0 || x.blocks[0].first > 0 {
		blocks = append(blocks, XRefBlock{First: 0, Count: 1})
		sections = append(sections, []xrefLine{{number: 0, gen: 65535}})
	}
	for _, b := range x.blocks {
		lines := make([]xrefLine, 0, b.count)
		i, j := 0, 0
		for i < len(b.inUse) || j < len(b.free) {
			if j >= len(b.free) || i < len(b.inUse) && b.inUse[i].number < b.free[j].number {
				r := b.inUse[i]
				lines = append(lines, xrefLine{number: r.number, gen: r.gen, offset: r.offset, inUse: true})
				i++
			} else {
				r := b.free[j]
				gen := r.gen
				if r.number == 0 {
					gen = 65535
				}
				lines = append(lines, xrefLine{number: r.number, gen: gen})
				j++
			}
		}
		blocks = append(blocks, XRefBlock{First: b.first, Count: b.count})
		sections = append(sections, lines)
	}

	// Chain the free entries backwards, so that each one points to the
	// next free entry in file order.  The last one points to object 0.
	var next uint32
	var head *xrefLine
	for s := len(sections) - 1; s >= 0; s-- {
		lines := sections[s]
		for i := len(lines) - 1; i >= 0; i-- {
			l := &lines[i]
			if l.inUse {
				continue
			}
			if l.number == 0 {
				head = l
				continue
			}
			l.next = next
			next = l.number
		}
	}
	if head != nil {
		head.next = next
	}
	return blocks, sections
}

// WriteTable writes the entries as a classic cross-reference table, starting
// with the "xref" keyword.  If no entries have been recorded,
// [ErrNothingToWrite] is returned.
func (x *XRefWriter) WriteTable(w io.Writer) error {
	if x.Size() == 0 {
		return ErrNothingToWrite
	}
	blocks, sections := x.lines()

	buf := &bytes.Buffer{}
	buf.WriteString("xref\n")
	for i, b := range blocks {
		fmt.Fprintf(buf, "%d %d\n", b.First, b.Count)
		for _, l := range sections[i] {
			if l.inUse {
				fmt.Fprintf(buf, "%010d %05d n\r\n", l.offset, l.gen)
			} else {
				fmt.Fprintf(buf, "%010d %05d f\r\n", l.next, l.gen)
			}
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// StreamData returns the entries in the binary form used by
// cross-reference streams, together with the /Type, /W, /Index and /Size
// entries for the stream dictionary.  If no entries have been recorded,
// [ErrNothingToWrite] is returned.
func (x *XRefWriter) StreamData() ([]byte, Dict, error) {
	size := x.Size()
	if size == 0 {
		return nil, nil, ErrNothingToWrite
	}
	blocks, sections := x.lines()

	// Generation 65535 of the free-list head is written as 0, to keep the
	// generation field short.
	streamGen := func(l xrefLine) uint16 {
		if !l.inUse && l.gen == 65535 {
			return 0
		}
		return l.gen
	}

	var maxField2 uint64
	var maxField3 uint16
	for _, lines := range sections {
		for _, l := range lines {
			if l.inUse {
				maxField2 = max(maxField2, uint64(l.offset))
			} else {
				maxField2 = max(maxField2, uint64(l.next))
			}
			maxField3 = max(maxField3, streamGen(l))
		}
	}
	w2 := max((bits.Len64(maxField2)+7)/8, 1)
	w3 := (bits.Len16(maxField3) + 7) / 8

	data := &bytes.Buffer{}
	for _, lines := range sections {
		for _, l := range lines {
			if l.inUse {
				data.WriteByte(1)
				encodeUint(data, uint64(l.offset), w2)
			} else {
				data.WriteByte(0)
				encodeUint(data, uint64(l.next), w2)
			}
			encodeUint(data, uint64(streamGen(l)), w3)
		}
	}

	index := make(Array, 0, 2*len(blocks))
	for _, b := range blocks {
		index = append(index, Integer(b.First), Integer(b.Count))
	}
	dict := Dict{
		"Type": Name("XRef"),
		"W":    Array{Integer(1), Integer(w2), Integer(w3)},
		"Size": Integer(size),
	}
	if len(blocks) != 1 || blocks[0].First != 0 || blocks[0].Count != size {
		dict["Index"] = index
	}
	return data.Bytes(), dict, nil
}

func encodeUint(data *bytes.Buffer, x uint64, w int) {
	for i := w - 1; i >= 0; i-- {
		data.WriteByte(byte(x >> (i * 8)))
	}
}
