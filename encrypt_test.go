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
package pdfcore_test

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"testing"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/crypt"
	"seehuhn.de/go/pdfcore/internal/debug/memfile"
)

var fileID = []byte("0123456789abcdef")

const secretText = "this text is secret"

var (
	catalogRef = pdfcore.NewReference(1, 0)
	secretRef  = pdfcore.NewReference(2, 0)
	streamRef  = pdfcore.NewReference(3, 0)
)

func writeEncrypted(t *testing.T, cipher crypt.Cipher, keyLength int, xrefStream bool) []byte {
	t.Helper()

	sec, encDict, err := crypt.New(fileID, &crypt.Options{
		UserPassword:  "user",
		OwnerPassword: "owner",
		Permissions:   pdfcore.PermPrint | pdfcore.PermCopy,
		Cipher:        cipher,
		KeyLength:     keyLength,
	})
	if err != nil {
		t.Fatal(err)
	}

	buf := &bytes.Buffer{}
	w, err := pdfcore.NewWriter(buf, &pdfcore.WriterOptions{
		XRefStream: xrefStream,
		Security:   sec,
		Encrypt:    encDict,
		ID:         [][]byte{fileID, fileID},
	})
	if err != nil {
		t.Fatal(err)
	}

	stm, err := pdfcore.NewStream(nil, []byte(secretText), pdfcore.FilterFlate(nil))
	if err != nil {
		t.Fatal(err)
	}
	objs := []*pdfcore.IndirectObject{
		{Reference: catalogRef, Value: pdfcore.Dict{"Type": pdfcore.Name("Catalog")}},
		{Reference: secretRef, Value: pdfcore.Array{pdfcore.String(secretText), pdfcore.HexString(secretText)}},
		{Reference: streamRef, Value: stm},
	}
	for _, obj := range objs {
		err := w.WriteObject(obj)
		if err != nil {
			t.Fatal(err)
		}
	}
	err = w.Close(pdfcore.Dict{"Root": catalogRef})
	if err != nil {
		t.Fatal(err)
	}

	data := buf.Bytes()
	if bytes.Contains(data, []byte(secretText)) {
		t.Fatal("plain text found in encrypted file")
	}
	return data
}

func checkSecret(t *testing.T, r *pdfcore.Reader) {
	t.Helper()

	arr, err := pdfcore.GetArray(r, secretRef)
	if err != nil {
		t.Fatal(err)
	}
	want := pdfcore.Array{pdfcore.String(secretText), pdfcore.HexString(secretText)}
	if !pdfcore.Equal(arr, want) {
		t.Errorf("wrong strings %s", pdfcore.Format(arr))
	}

	stm, err := pdfcore.GetStream(r, streamRef)
	if err != nil {
		t.Fatal(err)
	}
	data, err := stm.Decode()
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != secretText {
		t.Errorf("wrong stream data %q", data)
	}
}

var encryptionConfigs = []struct {
	cipher    crypt.Cipher
	keyLength int
}{
	{crypt.CipherRC4, 40},
	{crypt.CipherRC4, 128},
	{crypt.CipherAES, 128},
	{crypt.CipherAES, 256},
}

func TestEncryptedRoundTrip(t *testing.T) {
	for _, cfg := range encryptionConfigs {
		for _, xrefStream := range []bool{false, true} {
			name := fmt.Sprintf("%s-%d-xrefStream=%t", cfg.cipher, cfg.keyLength, xrefStream)
			t.Run(name, func(t *testing.T) {
				data := writeEncrypted(t, cfg.cipher, cfg.keyLength, xrefStream)

				r, err := pdfcore.NewReader(bytes.NewReader(data), int64(len(data)),
					&pdfcore.ReaderOptions{Security: crypt.Open, Password: "user"})
				if err != nil {
					t.Fatal(err)
				}
				if !r.Authenticated() {
					t.Fatal("user password not accepted")
				}
				checkSecret(t, r)

				perm := r.Permissions()
				if perm&pdfcore.PermCopy == 0 || perm&pdfcore.PermModify != 0 {
					t.Errorf("wrong permissions %s", perm)
				}
			})
		}
	}
}

func TestWrongPassword(t *testing.T) {
	data := writeEncrypted(t, crypt.CipherAES, 128, false)

	r, err := pdfcore.NewReader(bytes.NewReader(data), int64(len(data)),
		&pdfcore.ReaderOptions{Security: crypt.Open})
	if err != nil {
		t.Fatal(err)
	}
	if r.Authenticated() {
		t.Fatal("document unlocked without password")
	}

	_, err = r.Get(secretRef)
	if !errors.Is(err, pdfcore.ErrInvalidPassword) {
		t.Errorf("locked Get: expected ErrInvalidPassword, got %v", err)
	}

	err = r.Authenticate("wrong")
	if !errors.Is(err, pdfcore.ErrInvalidPassword) {
		t.Errorf("wrong password: expected ErrInvalidPassword, got %v", err)
	}
	var authErr *pdfcore.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Errorf("expected *AuthenticationError, got %T", err)
	}

	err = r.Authenticate("owner")
	if err != nil {
		t.Fatal(err)
	}
	if !r.Authenticated() {
		t.Error("owner password not accepted")
	}
	checkSecret(t, r)
}

func TestEncryptedWithoutHandler(t *testing.T) {
	data := writeEncrypted(t, crypt.CipherRC4, 128, false)
	_, err := pdfcore.NewReader(bytes.NewReader(data), int64(len(data)), nil)
	if err == nil {
		t.Error("encrypted file opened without a security handler")
	}
}

func TestEncryptedIncremental(t *testing.T) {
	file := memfile.FromBytes(writeEncrypted(t, crypt.CipherAES, 256, false))
	opt := &pdfcore.ReaderOptions{Security: crypt.Open, Password: "user"}

	r, err := pdfcore.NewReader(file, file.Size(), opt)
	if err != nil {
		t.Fatal(err)
	}

	file.Seek(0, io.SeekEnd)
	w, err := pdfcore.NewIncrementalWriter(file, r, nil)
	if err != nil {
		t.Fatal(err)
	}
	added := w.Alloc()
	err = w.WriteObject(&pdfcore.IndirectObject{Reference: added, Value: pdfcore.String("added " + secretText)})
	if err != nil {
		t.Fatal(err)
	}
	err = w.Close(nil)
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(file.Data, []byte(secretText)) {
		t.Fatal("plain text found in encrypted file")
	}

	r2, err := pdfcore.NewReader(file, file.Size(), opt)
	if err != nil {
		t.Fatal(err)
	}
	obj, err := r2.Get(added)
	if err != nil {
		t.Fatal(err)
	}
	if !pdfcore.Equal(obj, pdfcore.String("added "+secretText)) {
		t.Errorf("wrong object %s", pdfcore.Format(obj))
	}
	checkSecret(t, r2)
}

func TestIncrementalLocked(t *testing.T) {
	data := writeEncrypted(t, crypt.CipherRC4, 40, false)
	r, err := pdfcore.NewReader(bytes.NewReader(data), int64(len(data)),
		&pdfcore.ReaderOptions{Security: crypt.Open, Password: "wrong"})
	if err != nil {
		t.Fatal(err)
	}
	_, err = pdfcore.NewIncrementalWriter(io.Discard, r, nil)
	if !errors.Is(err, pdfcore.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}
