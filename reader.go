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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// ErrorHandling selects how a [Reader] reacts to malformed input.
type ErrorHandling int

const (
	// ErrorHandlingStrict makes the reader fail on the first structural
	// problem.
	ErrorHandlingStrict ErrorHandling = iota

	// ErrorHandlingRecover makes the reader repair what it can.  Damaged
	// cross-reference sections are rebuilt by scanning the file, and objects
	// which cannot be parsed read as null.
	ErrorHandlingRecover
)

// ReaderOptions configures a [Reader].  A nil *ReaderOptions is equivalent
// to the zero value: strict error handling, eager loading, empty password.
type ReaderOptions struct {
	ErrorHandling ErrorHandling

	// Lazy defers parsing of objects until they are first accessed.  If
	// Lazy is false, all objects are loaded when the file is opened (or,
	// for encrypted files, when the password is accepted).
	Lazy bool

	// Password is tried when an encrypted document is opened.  The empty
	// password is tried if no password is set.
	Password string

	// Security constructs the security handler for encrypted documents.
	// If this is nil, encrypted documents cannot be opened.
	Security SecurityHandlerFunc

	// Logger receives reports about repaired problems.  If this is nil,
	// nothing is logged.
	Logger *slog.Logger

	// MaxXRefSections limits the length of the /Prev chain.  The default
	// is 1024.
	MaxXRefSections int
}

// Reader gives access to the objects of a PDF file.
//
// A Reader does no locking.  Concurrent use is only safe if the reader was
// opened with Lazy unset, so that all objects are loaded up front, and no
// modifications are made to the store.
type Reader struct {
	r    io.ReaderAt
	size int64
	opt  ReaderOptions
	log  *slog.Logger

	version   Version
	headerEnd int64
	startxref int64
	updates   int

	xref          xrefMap
	trailer       Dict
	linearization Dict
	numObjects    int64

	store   *Store
	loading map[Reference]bool

	// xrefStreams holds the references of xref streams.  These are not
	// encrypted and are not part of the store.
	xrefStreams map[Reference]bool

	objStms     *lruCache[Reference, *objStm]
	decodeCount int

	sec        SecurityHandler
	unlocked   bool
	id         [][]byte
	encryptRef Reference
}

// Open opens the named PDF file for reading.  After use, [Reader.Close]
// must be called to close the file.
func Open(fname string, opt *ReaderOptions) (*Reader, error) {
	fd, err := os.Open(fname)
	if err != nil {
		return nil, err
	}
	fi, err := fd.Stat()
	if err != nil {
		fd.Close()
		return nil, err
	}
	r, err := NewReader(fd, fi.Size(), opt)
	if err != nil {
		fd.Close()
		return nil, err
	}
	return r, nil
}

// NewReader reads the structure of a PDF file: the header, the
// cross-reference sections and the trailer.  Objects are loaded as
// configured by opt.
func NewReader(data io.ReaderAt, size int64, opt *ReaderOptions) (*Reader, error) {
	r := &Reader{
		r:           data,
		size:        size,
		loading:     make(map[Reference]bool),
		xrefStreams: make(map[Reference]bool),
		objStms:     newLRUCache[Reference, *objStm](objStmCacheSize),
	}
	if opt != nil {
		r.opt = *opt
	}
	r.log = r.opt.Logger
	if r.log == nil {
		r.log = slog.New(slog.DiscardHandler)
	}
	r.store = NewStore()
	r.store.loader = r

	err := r.readHeader()
	if err != nil {
		return nil, err
	}
	r.probeLinearization()

	err = r.readStructure()
	if err != nil {
		return nil, err
	}

	r.registerObjects()
	r.computeSize()

	err = r.setupEncryption()
	if err != nil {
		return nil, err
	}

	if _, hasRoot := r.trailer["Root"].(Reference); !hasRoot {
		if r.strict() {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("%w: trailer has no /Root", ErrNoObject),
				Loc: []string{"trailer"},
			}
		}
		scan, err := r.scanFile()
		if err != nil {
			return nil, err
		}
		if scan.catalog == 0 {
			return nil, &MalformedFileError{
				Err: fmt.Errorf("%w: no document catalog found", ErrNoObject),
			}
		}
		r.recovered("using last catalog object as /Root", "ref", scan.catalog)
		r.trailer["Root"] = scan.catalog
	}

	if !r.opt.Lazy && (r.sec == nil || r.unlocked) {
		err = r.loadAll()
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

// readStructure reads all cross-reference sections.  In recover mode, the
// cross-reference information is rebuilt if it cannot be read.
func (r *Reader) readStructure() error {
	start, err := r.findStartXRef()
	if err == nil {
		r.startxref = start
		err = r.readXRefChain(start)
	}
	if err == nil || r.strict() || errors.Is(err, ErrPrevChainCycle) {
		return err
	}

	r.recovered("rebuilding cross-reference information", "error", err)
	return r.repair()
}

func (r *Reader) readHeader() error {
	buf := make([]byte, min(r.size, 1024))
	n, err := r.r.ReadAt(buf, 0)
	if err != nil && err != io.EOF {
		return err
	}
	buf = buf[:n]

	idx := bytes.Index(buf, []byte("%PDF-"))
	if idx < 0 {
		return errorAt(0, ErrInvalidFormatMarker)
	}
	rest := buf[idx+5:]
	end := 0
	for end < len(rest) && (rest[end] >= '0' && rest[end] <= '9' || rest[end] == '.') {
		end++
	}
	r.headerEnd = int64(idx + 5 + end)

	version, err := ParseVersion(string(rest[:end]))
	if err != nil {
		if r.strict() {
			return errorAt(int64(idx), fmt.Errorf("%w: %q", err, rest[:end]))
		}
		r.recovered("unknown PDF version in header", "version", string(rest[:end]))
		version = V1_7
	}
	r.version = version
	return nil
}

// probeLinearization checks whether the first object in the file is a
// linearization parameter dictionary.
func (r *Reader) probeLinearization() {
	obj, _, err := r.readObjectAt(r.headerEnd, 0, false)
	if err != nil {
		return
	}
	if dict, ok := obj.(Dict); ok {
		if _, isLin := dict["Linearized"]; isLin {
			r.linearization = dict
		}
	}
}

// registerObjects adds the objects listed in the cross-reference index to
// the store.  Object streams and xref streams are only used internally.
func (r *Reader) registerObjects() {
	containers := make(map[uint32]bool)
	for _, e := range r.xref {
		if e.Type == XRefCompressed {
			containers[e.Stream] = true
		}
	}
	for n, e := range r.xref {
		if n == 0 || e.Type == XRefFree || containers[n] {
			continue
		}
		ref := e.ref(n)
		if r.xrefStreams[ref] {
			continue
		}
		r.store.register(ref)
	}
}

// computeSize determines the number of object numbers in use.  The larger
// of the declared /Size and the actual maximum wins.
func (r *Reader) computeSize() {
	var maxNumber uint32
	for n := range r.xref {
		maxNumber = max(maxNumber, n)
	}
	computed := int64(maxNumber) + 1

	declared, _ := r.trailer["Size"].(Integer)
	r.numObjects = max(int64(declared), computed)
	if int64(declared) < computed {
		r.recovered("trailer /Size is too small",
			"declared", int64(declared), "computed", computed)
	}
}

func (r *Reader) setupEncryption() error {
	if ids, ok := r.trailer["ID"].(Array); ok {
		for _, obj := range ids {
			buf, err := AsBytes(obj)
			if err != nil {
				break
			}
			r.id = append(r.id, buf)
		}
	}

	encObj := r.trailer["Encrypt"]
	if encObj == nil {
		return nil
	}
	if r.opt.Security == nil {
		return errors.New("document is encrypted, but no security handler is configured")
	}
	if ref, ok := encObj.(Reference); ok {
		r.encryptRef = ref
	}

	dict, err := GetDict(r, encObj)
	if err != nil {
		return wrap(err, "encryption dictionary")
	}
	if dict == nil {
		return &MalformedFileError{
			Err: fmt.Errorf("%w: missing encryption dictionary", ErrNoObject),
		}
	}
	sec, err := r.opt.Security(dict)
	if err != nil {
		return wrap(err, "encryption dictionary")
	}
	r.sec = sec

	err = sec.DeriveKey(r.firstID(), r.opt.Password)
	switch {
	case err == nil:
		r.unlocked = true
	case errors.Is(err, ErrInvalidPassword):
		r.log.Info("password not accepted, document stays locked")
	default:
		return err
	}
	return nil
}

// Authenticate tries to unlock an encrypted document with the given
// password.  If the password is wrong, an error wrapping
// [ErrInvalidPassword] is returned, and the call can be repeated with a
// different password.
func (r *Reader) Authenticate(password string) error {
	if r.sec == nil {
		return nil
	}
	err := r.sec.DeriveKey(r.firstID(), password)
	if err != nil {
		return err
	}
	r.unlocked = true
	if !r.opt.Lazy {
		return r.loadAll()
	}
	return nil
}

// Authenticated reports whether the objects of the document can be read.
// This is true for unencrypted documents, and for encrypted documents once
// a correct password has been supplied.
func (r *Reader) Authenticated() bool {
	return r.sec == nil || r.unlocked
}

// Permissions returns the operations the document allows for user access.
// For unencrypted documents, all operations are allowed.
func (r *Reader) Permissions() Perm {
	if r.sec == nil {
		return PermAll
	}
	return r.sec.Permissions()
}

func (r *Reader) firstID() []byte {
	if len(r.id) == 0 {
		return nil
	}
	return r.id[0]
}

// ID returns the elements of the /ID array in the trailer, or nil if the
// file has no ID.
func (r *Reader) ID() [][]byte {
	return r.id
}

func (r *Reader) loadAll() error {
	for _, ref := range r.store.References() {
		_, err := r.store.Get(ref)
		if err != nil {
			return err
		}
	}
	return nil
}

// Get returns the object with the given reference.  References to free or
// missing objects resolve to nil, the PDF null object.
func (r *Reader) Get(ref Reference) (Object, error) {
	return r.store.Get(ref)
}

// Resolve follows references until a direct object is reached.
func (r *Reader) Resolve(obj Object) (Object, error) {
	return Resolve(r, obj)
}

// Store returns the object store of the document.  Changes to the store do
// not affect the file.
func (r *Reader) Store() *Store {
	return r.store
}

// Trailer returns a copy of the merged trailer dictionary.  Where different
// incremental updates disagree, the newest value is used.
func (r *Reader) Trailer() Dict {
	return maps.Clone(r.trailer)
}

// Catalog returns the document catalog.
func (r *Reader) Catalog() (Dict, error) {
	return GetDict(r, r.trailer["Root"])
}

// Version returns the PDF version of the document.  This is the version
// from the file header, or from the /Version entry in the catalog if that
// is higher.
func (r *Reader) Version() Version {
	v := r.version
	if !r.Authenticated() {
		return v
	}
	catalog, err := r.Catalog()
	if err != nil {
		return v
	}
	if name, ok := catalog["Version"].(Name); ok {
		if cv, err := ParseVersion(string(name)); err == nil && cv > v {
			v = cv
		}
	}
	return v
}

// Size returns one more than the highest object number used in the file.
func (r *Reader) Size() int64 {
	return r.numObjects
}

// IncrementalUpdates returns the number of cross-reference sections read.
// This is one for a file without incremental updates.
func (r *Reader) IncrementalUpdates() int {
	return r.updates
}

// Linearization returns the linearization parameter dictionary, or nil if
// the file is not linearized.
func (r *Reader) Linearization() Dict {
	return r.linearization
}

// StartXRef returns the offset of the newest cross-reference section.
func (r *Reader) StartXRef() int64 {
	return r.startxref
}

// XRefEntry returns the cross-reference entry for the given object number.
func (r *Reader) XRefEntry(number uint32) (XRefEntry, bool) {
	e, ok := r.xref[number]
	if !ok {
		return XRefEntry{}, false
	}
	return *e, true
}

// XRefNumbers returns the object numbers listed in the cross-reference
// index, in increasing order.
func (r *Reader) XRefNumbers() []uint32 {
	res := make([]uint32, 0, len(r.xref))
	for n := range r.xref {
		res = append(res, n)
	}
	slices.Sort(res)
	return res
}

// Close closes the underlying file, if the io.ReaderAt passed to
// [NewReader] has a Close method or if the reader was created by [Open].
func (r *Reader) Close() error {
	if closer, ok := r.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

func (r *Reader) strict() bool {
	return r.opt.ErrorHandling == ErrorHandlingStrict
}

// recovered logs a problem which the reader has worked around.  In strict
// mode this only happens for minor problems, which are logged at debug
// level.
func (r *Reader) recovered(msg string, args ...any) {
	level := slog.LevelWarn
	if r.strict() {
		level = slog.LevelDebug
	}
	r.log.Log(context.Background(), level, msg, args...)
}

// isEncrypted reports whether the strings and streams of the given object
// are encrypted.
func (r *Reader) isEncrypted(ref Reference) bool {
	return r.sec != nil && ref != r.encryptRef && !r.xrefStreams[ref]
}

// load implements the loader interface of the store.
func (r *Reader) load(ref Reference) (Object, error) {
	e := r.xref[ref.Number()]
	if e == nil || e.Type == XRefFree || e.ref(ref.Number()) != ref {
		return nil, nil
	}
	if r.isEncrypted(ref) && !r.unlocked {
		return nil, &AuthenticationError{ID: r.firstID()}
	}
	if r.loading[ref] {
		return r.loadFailed(ref, errorAt(e.Offset, errors.New("reference loop")))
	}
	r.loading[ref] = true
	defer delete(r.loading, ref)

	var obj Object
	var err error
	switch e.Type {
	case XRefInUse:
		obj, _, err = r.readObjectAt(e.Offset, ref, true)
	case XRefCompressed:
		obj, err = r.loadCompressed(ref, e)
	}
	if err != nil {
		var authErr *AuthenticationError
		if errors.As(err, &authErr) {
			return nil, err
		}
		return r.loadFailed(ref, err)
	}
	return obj, nil
}

func (r *Reader) loadFailed(ref Reference, err error) (Object, error) {
	err = fmt.Errorf("%w: %s: %w", ErrNoObject, ref, err)
	if r.strict() {
		return nil, err
	}
	r.recovered("object replaced by null", "ref", ref, "error", err)
	return nil, nil
}

// readObjectAt reads the indirect object starting at pos.  If want is
// non-zero, the object header must match this reference.  If decrypt is
// set and the document is encrypted, strings and stream data are
// decrypted.
func (r *Reader) readObjectAt(pos int64, want Reference, decrypt bool) (Object, Reference, error) {
	t := NewTokenizer(r.r, r.size)
	t.SeekTo(pos)

	ref, err := readObjectHeader(t)
	if err != nil {
		return nil, 0, err
	}
	if want != 0 && ref != want {
		err := errorAt(pos, fmt.Errorf("%w: found %s instead of %s", ErrNoObject, ref, want))
		if r.strict() {
			return nil, ref, err
		}
		r.recovered("object header does not match xref entry",
			"pos", pos, "found", ref, "expected", want)
		ref = want
	}

	decrypt = decrypt && r.isEncrypted(ref)

	d := NewDecoder(t)
	d.Ref = ref
	if decrypt {
		d.Decrypt = r.sec.Decrypt
	}
	obj, err := d.ReadObject()
	if err != nil {
		return nil, ref, err
	}

	tok, err := t.NextToken()
	if err == nil && tok.is(TokenRegular, "stream") {
		dict, ok := obj.(Dict)
		if !ok {
			return nil, ref, errorAt(tok.Pos,
				fmt.Errorf("%w: stream without dictionary", ErrInvalidDataType))
		}
		data, err := r.readStreamData(t.Tell(), dict, pos)
		if err != nil {
			return nil, ref, err
		}
		if decrypt {
			data, err = r.sec.Decrypt(ref, data)
			if err != nil {
				return nil, ref, err
			}
		}
		obj = &Stream{Dict: dict, Data: data}
	}
	// A missing "endobj" is not an error.

	return obj, ref, nil
}

// readObjectHeader reads the "N G obj" at the start of an indirect object.
func readObjectHeader(t *Tokenizer) (Reference, error) {
	var toks [3]Token
	for i := range toks {
		tok, err := t.NextToken()
		if err != nil {
			return 0, err
		}
		toks[i] = tok
	}
	number, err1 := parseUint(toks[0], 32)
	gen, err2 := parseUint(toks[1], 16)
	if err1 != nil || err2 != nil || !toks[2].is(TokenRegular, "obj") {
		return 0, errorAt(toks[0].Pos,
			fmt.Errorf("%w: invalid object header", ErrNoObject))
	}
	return NewReference(uint32(number), uint16(gen)), nil
}

func parseUint(tok Token, bits int) (uint64, error) {
	if tok.Kind != TokenRegular || classifyNumber(tok.Text) != KindInteger ||
		tok.Text[0] == '-' || tok.Text[0] == '+' {
		return 0, ErrNoNumber
	}
	var x uint64
	for _, c := range tok.Text {
		x = x*10 + uint64(c-'0')
		if x >= 1<<bits {
			return 0, ErrOutOfRange
		}
	}
	return x, nil
}

// maxStreamScan limits the search for "endstream" when the declared length
// of a stream is wrong.
const maxStreamScan = 256 << 20

// readStreamData reads the data of a stream.  pos is the offset just after
// the "stream" keyword.  If the /Length entry is missing or wrong, the
// length is determined by searching for "endstream", and the /Length entry
// of dict is corrected.
func (r *Reader) readStreamData(pos int64, dict Dict, objPos int64) ([]byte, error) {
	start := r.skipStreamEOL(pos)

	length := r.streamLength(dict)
	if length >= 0 && length <= r.size-start && r.endstreamAt(start+length) {
		return r.readAt(start, length)
	}

	end, err := r.findForward(start, []byte("endstream"), maxStreamScan)
	if err != nil {
		return nil, errorAt(start, fmt.Errorf("%w: end of stream not found", ErrUnexpectedEOF))
	}
	n := end - start
	if n > 0 {
		tail, err := r.readAt(end-min(n, 2), min(n, 2))
		if err != nil {
			return nil, err
		}
		switch {
		case bytes.HasSuffix(tail, []byte("\r\n")):
			n -= 2
		case bytes.HasSuffix(tail, []byte("\n")), bytes.HasSuffix(tail, []byte("\r")):
			n--
		}
	}
	r.recovered("stream length repaired",
		"pos", objPos, "declared", Format(dict["Length"]), "actual", n)
	dict["Length"] = Integer(n)
	return r.readAt(start, n)
}

// skipStreamEOL skips the end-of-line marker after the "stream" keyword.
func (r *Reader) skipStreamEOL(pos int64) int64 {
	buf := make([]byte, 8)
	n, _ := r.r.ReadAt(buf[:min(int64(len(buf)), max(r.size-pos, 0))], pos)
	buf = buf[:n]

	// some writers put spaces before the end-of-line
	i := 0
	for i < len(buf) && (buf[i] == ' ' || buf[i] == '\t') {
		i++
	}
	switch {
	case bytes.HasPrefix(buf[i:], []byte("\r\n")):
		return pos + int64(i) + 2
	case bytes.HasPrefix(buf[i:], []byte("\n")), bytes.HasPrefix(buf[i:], []byte("\r")):
		return pos + int64(i) + 1
	}
	return pos
}

// streamLength returns the value of the /Length entry, or -1 if the
// length is not available.
func (r *Reader) streamLength(dict Dict) int64 {
	switch length := dict["Length"].(type) {
	case Integer:
		return int64(length)
	case Reference:
		obj, err := r.store.Get(length)
		if x, ok := obj.(Integer); ok && err == nil {
			return int64(x)
		}
	}
	return -1
}

// endstreamAt checks whether the "endstream" keyword follows at pos,
// after optional white space.
func (r *Reader) endstreamAt(pos int64) bool {
	buf := make([]byte, 32)
	n, _ := r.r.ReadAt(buf[:min(int64(len(buf)), max(r.size-pos, 0))], pos)
	buf = buf[:n]
	for len(buf) > 0 && isSpace[buf[0]] {
		buf = buf[1:]
	}
	return bytes.HasPrefix(buf, []byte("endstream"))
}

func (r *Reader) readAt(pos, n int64) ([]byte, error) {
	buf := make([]byte, n)
	k, err := r.r.ReadAt(buf, pos)
	if k == len(buf) {
		return buf, nil
	}
	if err == nil || err == io.EOF {
		err = errorAt(pos+int64(k), ErrUnexpectedEOF)
	}
	return nil, err
}
