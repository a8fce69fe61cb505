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

package crypt

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"seehuhn.de/go/pdfcore"
)

var testID = []byte{
	0xac, 0xac, 0x29, 0xb4, 0x19, 0x2f, 0xd9, 0x23,
	0xc2, 0x4f, 0xe6, 0x04, 0x24, 0x79, 0xb2, 0xa9,
}

var testConfigs = []struct {
	cipher Cipher
	length int
	R      int
}{
	{CipherRC4, 40, 2},
	{CipherRC4, 128, 3},
	{CipherAES, 128, 4},
	{CipherAES, 256, 6},
}

func TestPasswords(t *testing.T) {
	for _, cfg := range testConfigs {
		t.Run(fmt.Sprintf("%s-%d", cfg.cipher, cfg.length), func(t *testing.T) {
			opt := &Options{
				UserPassword:  "user",
				OwnerPassword: "owner",
				Permissions:   pdfcore.PermAll,
				Cipher:        cfg.cipher,
				KeyLength:     cfg.length,
			}
			w, dict, err := New(testID, opt)
			if err != nil {
				t.Fatal(err)
			}
			if R := dict["R"]; R != pdfcore.Integer(cfg.R) {
				t.Errorf("wrong revision %v, expected %d", R, cfg.R)
			}

			ref := pdfcore.NewReference(12, 0)
			msg := []byte("Hello World, this is a secret message.")
			enc, err := w.Encrypt(ref, bytes.Clone(msg))
			if err != nil {
				t.Fatal(err)
			}

			r, err := Open(dict)
			if err != nil {
				t.Fatal(err)
			}

			_, err = r.Decrypt(ref, bytes.Clone(enc))
			if !errors.Is(err, pdfcore.ErrInvalidPassword) {
				t.Errorf("locked handler: expected ErrInvalidPassword, got %v", err)
			}

			err = r.DeriveKey(testID, "wrong")
			if !errors.Is(err, pdfcore.ErrInvalidPassword) {
				t.Fatalf("wrong password: expected ErrInvalidPassword, got %v", err)
			}
			err = r.DeriveKey(testID, "user")
			if err != nil {
				t.Fatal(err)
			}
			if r.(*handler).OwnerAuthenticated() {
				t.Error("user password gave owner access")
			}
			dec, err := r.Decrypt(ref, bytes.Clone(enc))
			if err != nil {
				t.Fatal(err)
			}
			if d := cmp.Diff(msg, dec); d != "" {
				t.Errorf("decrypted data differs (-want +got):\n%s", d)
			}

			r2, err := Open(dict)
			if err != nil {
				t.Fatal(err)
			}
			err = r2.DeriveKey(testID, "owner")
			if err != nil {
				t.Fatal(err)
			}
			if !r2.(*handler).OwnerAuthenticated() {
				t.Error("owner password not recognised")
			}
			dec, err = r2.Decrypt(ref, bytes.Clone(enc))
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(dec, msg) {
				t.Errorf("owner: got %q, want %q", dec, msg)
			}
		})
	}
}

func TestEmptyUserPassword(t *testing.T) {
	for _, cfg := range testConfigs {
		opt := &Options{
			OwnerPassword: "secret",
			Permissions:   pdfcore.PermPrint | pdfcore.PermPrintDegraded,
			Cipher:        cfg.cipher,
			KeyLength:     cfg.length,
		}
		_, dict, err := New(testID, opt)
		if err != nil {
			t.Fatal(err)
		}
		r, err := Open(dict)
		if err != nil {
			t.Fatal(err)
		}
		err = r.DeriveKey(testID, "")
		if err != nil {
			t.Errorf("%s-%d: %v", cfg.cipher, cfg.length, err)
			continue
		}
		got := r.Permissions()
		want := pdfcore.PermPrint | pdfcore.PermPrintDegraded
		if got != want {
			t.Errorf("%s-%d: permissions %s, want %s", cfg.cipher, cfg.length, got, want)
		}
	}
}

func TestWrongDocumentID(t *testing.T) {
	_, dict, err := New(testID, &Options{UserPassword: "a", Cipher: CipherRC4, KeyLength: 128})
	if err != nil {
		t.Fatal(err)
	}
	r, err := Open(dict)
	if err != nil {
		t.Fatal(err)
	}
	otherID := bytes.Clone(testID)
	otherID[0] ^= 1
	err = r.DeriveKey(otherID, "a")
	if !errors.Is(err, pdfcore.ErrInvalidPassword) {
		t.Errorf("expected ErrInvalidPassword, got %v", err)
	}
}

func TestSASLprep(t *testing.T) {
	// U+00AD (soft hyphen) is mapped to nothing by SASLprep
	_, dict, err := New(testID, &Options{UserPassword: "pass\u00adword", KeyLength: 256})
	if err != nil {
		t.Fatal(err)
	}
	r, err := Open(dict)
	if err != nil {
		t.Fatal(err)
	}
	err = r.DeriveKey(testID, "password")
	if err != nil {
		t.Error(err)
	}
}

func TestCorruptedAES(t *testing.T) {
	w, _, err := New(testID, &Options{})
	if err != nil {
		t.Fatal(err)
	}
	ref := pdfcore.NewReference(1, 0)
	for _, buf := range [][]byte{
		nil,
		make([]byte, 16),
		make([]byte, 33),
	} {
		_, err := w.Decrypt(ref, buf)
		if err == nil {
			t.Errorf("%d bytes: expected error", len(buf))
		}
	}
}

func TestOpenInvalid(t *testing.T) {
	_, good, err := New(testID, &Options{KeyLength: 256})
	if err != nil {
		t.Fatal(err)
	}
	cases := []func(d pdfcore.Dict){
		func(d pdfcore.Dict) { d["Filter"] = pdfcore.Name("Adobe.PubSec") },
		func(d pdfcore.Dict) { delete(d, "V") },
		func(d pdfcore.Dict) { d["R"] = pdfcore.Integer(5) },
		func(d pdfcore.Dict) { d["U"] = pdfcore.String("short") },
		func(d pdfcore.Dict) { delete(d, "Perms") },
		func(d pdfcore.Dict) { d["StrF"] = pdfcore.Name("Identity") },
	}
	for i, modify := range cases {
		d := pdfcore.Dict{}
		for k, v := range good {
			d[k] = v
		}
		modify(d)
		_, err := Open(d)
		if err == nil {
			t.Errorf("%d: expected error", i)
		}
	}
}

// normalize adds the permissions implied by others.
func normalize(perm pdfcore.Perm) pdfcore.Perm {
	if perm&pdfcore.PermPrint != 0 {
		perm |= pdfcore.PermPrintDegraded
	}
	if perm&pdfcore.PermAnnotate != 0 {
		perm |= pdfcore.PermForms
	}
	if perm&pdfcore.PermModify != 0 {
		perm |= pdfcore.PermAssemble
	}
	return perm
}

func TestPermRoundTrip(t *testing.T) {
	for perm := pdfcore.Perm(0); perm <= pdfcore.PermAll; perm++ {
		P := stdSecPermToP(perm)
		got := stdSecPToPerm(3, P)
		if want := normalize(perm); got != want {
			t.Errorf("R3 %s: got %s", want, got)
		}
		if !canR2(normalize(perm)) {
			continue
		}
		got = stdSecPToPerm(2, P)
		if want := normalize(perm); got != want {
			t.Errorf("R2 %s: got %s", want, got)
		}
	}
}
