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
	"errors"
	"fmt"
	"math"

	"golang.org/x/exp/slices"
)

// Getter is implemented by everything which can resolve references.
type Getter interface {
	Get(Reference) (Object, error)
}

// A loader materialises objects which have been registered, but not yet
// parsed.
type loader interface {
	load(ref Reference) (Object, error)
}

// Store holds the indirect objects of a PDF document, addressed by their
// reference.
//
// Objects registered by a [Reader] are parsed on first access; the result
// is cached.  A Store does no locking.  Concurrent access is only safe if
// all objects have been loaded and no modifications are made.
type Store struct {
	entries map[Reference]*storeEntry
	loader  loader

	// freed records the generation of object numbers which have been
	// removed and can be reused.
	freed map[uint32]uint16

	maxNumber uint32
}

type storeEntry struct {
	obj    Object
	loaded bool
}

// NewStore returns a new, empty store.
func NewStore() *Store {
	return &Store{
		entries: make(map[Reference]*storeEntry),
		freed:   make(map[uint32]uint16),
	}
}

// Get returns the object with the given reference.  If no object with this
// exact number and generation is present, nil (the PDF null object) is
// returned without an error.
func (s *Store) Get(ref Reference) (Object, error) {
	e, ok := s.entries[ref]
	if !ok {
		return nil, nil
	}
	if !e.loaded {
		obj, err := s.loader.load(ref)
		if err != nil {
			return nil, err
		}
		// load may have materialised this entry already
		if !e.loaded {
			e.obj = obj
			e.loaded = true
		}
	}
	return e.obj, nil
}

// Has reports whether an object with the given reference is present.
func (s *Store) Has(ref Reference) bool {
	_, ok := s.entries[ref]
	return ok
}

// Insert adds an object to the store.  An existing object with the same
// reference is replaced.
func (s *Store) Insert(obj *IndirectObject) error {
	ref := obj.Reference
	if ref.Number() == 0 {
		return fmt.Errorf("%w: object number 0 is reserved", ErrOutOfRange)
	}
	s.entries[ref] = &storeEntry{obj: obj.Value, loaded: true}
	if ref.Number() > s.maxNumber {
		s.maxNumber = ref.Number()
	}
	delete(s.freed, ref.Number())
	return nil
}

// Remove deletes an object from the store and returns the removed object.
// The object number becomes available for reuse by [Store.Alloc], with an
// increased generation number.
func (s *Store) Remove(ref Reference) (Object, error) {
	if _, ok := s.entries[ref]; !ok {
		return nil, nil
	}
	obj, err := s.Get(ref)
	if err != nil {
		return nil, err
	}
	delete(s.entries, ref)
	if gen := ref.Generation(); gen < math.MaxUint16 {
		s.freed[ref.Number()] = gen
	}
	return obj, nil
}

// Alloc returns a reference which is not used by any object in the store.
// Freed object numbers are reused with the generation number incremented;
// otherwise the highest object number plus one is used.
func (s *Store) Alloc() Reference {
	if len(s.freed) > 0 {
		first := true
		var number uint32
		for n := range s.freed {
			if first || n < number {
				number = n
				first = false
			}
		}
		gen := s.freed[number] + 1
		delete(s.freed, number)
		ref := NewReference(number, gen)
		// reserve the reference, so that it is not handed out twice
		s.entries[ref] = &storeEntry{loaded: true}
		return ref
	}
	s.maxNumber++
	ref := NewReference(s.maxNumber, 0)
	s.entries[ref] = &storeEntry{loaded: true}
	return ref
}

// References returns the references of all objects in the store, sorted by
// object number and generation.
func (s *Store) References() []Reference {
	refs := make([]Reference, 0, len(s.entries))
	for ref := range s.entries {
		refs = append(refs, ref)
	}
	slices.SortFunc(refs, compareRefs)
	return refs
}

// Len returns the number of objects in the store.
func (s *Store) Len() int {
	return len(s.entries)
}

// MaxNumber returns the highest object number used in the store.
func (s *Store) MaxNumber() uint32 {
	return s.maxNumber
}

func compareRefs(a, b Reference) int {
	if a.Number() != b.Number() {
		if a.Number() < b.Number() {
			return -1
		}
		return 1
	}
	return int(a.Generation()) - int(b.Generation())
}

// register adds an entry which is loaded on first access.
func (s *Store) register(ref Reference) {
	if _, exists := s.entries[ref]; exists {
		return
	}
	s.entries[ref] = &storeEntry{}
	if ref.Number() > s.maxNumber {
		s.maxNumber = ref.Number()
	}
}

// setLoaded stores the parsed value for a registered entry, unless the entry
// has been loaded before.
func (s *Store) setLoaded(ref Reference, obj Object) {
	e, ok := s.entries[ref]
	if !ok || e.loaded {
		return
	}
	e.obj = obj
	e.loaded = true
}

func (s *Store) isLoaded(ref Reference) bool {
	e, ok := s.entries[ref]
	return ok && e.loaded
}

// Resolve resolves references to indirect objects.
//
// If obj is a [Reference], the function reads the corresponding object and
// returns the result.  If obj is not a [Reference], it is returned
// unchanged.  The function recursively follows chains of references until it
// resolves to a non-reference object.
//
// If a reference loop is encountered, the function returns an error of type
// [MalformedFileError].
func Resolve(r Getter, obj Object) (Object, error) {
	origObj := obj

	count := 0
	for {
		ref, isReference := obj.(Reference)
		if !isReference {
			break
		}
		count++
		if count > 16 {
			return nil, &MalformedFileError{
				Err: errors.New("too many levels of indirection"),
				Loc: []string{"object " + origObj.(Reference).String()},
			}
		}

		var err error
		obj, err = r.Get(ref)
		if err != nil {
			return nil, err
		}
	}

	return obj, nil
}

func resolveAndCast[T Object](r Getter, obj Object) (x T, err error) {
	obj, err = Resolve(r, obj)
	if err != nil {
		return x, err
	}

	if obj == nil {
		return x, nil
	}

	var isCorrectType bool
	x, isCorrectType = obj.(T)
	if isCorrectType {
		return x, nil
	}

	return x, &MalformedFileError{
		Err: fmt.Errorf("%w: expected %T but got %T", ErrInvalidDataType, x, obj),
	}
}

// Helper functions for getting objects of a specific type.  Each of these
// functions calls Resolve on the object before attempting to convert it to the
// desired type.  If the object is `null`, a zero object is returned without
// error.  If the object is of the wrong type, an error is returned.
//
// The signature of these functions is
//
//	func GetT(r Getter, obj Object) (x T, err error)
//
// where T is the type of the object to be returned.
var (
	GetArray     = resolveAndCast[Array]
	GetBool      = resolveAndCast[Bool]
	GetDict      = resolveAndCast[Dict]
	GetInt       = resolveAndCast[Integer]
	GetName      = resolveAndCast[Name]
	GetReal      = resolveAndCast[Real]
	GetStream    = resolveAndCast[*Stream]
	GetString    = resolveAndCast[String]
	GetHexString = resolveAndCast[HexString]
)

// GetNumber resolves obj and returns its value as a float64.  Both integers
// and real numbers are accepted.
func GetNumber(r Getter, obj Object) (float64, error) {
	obj, err := Resolve(r, obj)
	if err != nil {
		return 0, err
	}
	switch x := obj.(type) {
	case Integer:
		return float64(x), nil
	case Real:
		return float64(x), nil
	case nil:
		return 0, nil
	default:
		return 0, &MalformedFileError{
			Err: fmt.Errorf("%w: expected number but got %T", ErrInvalidDataType, obj),
		}
	}
}
