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

// SecurityHandler decrypts and encrypts the strings and streams of an
// encrypted document.  Implementations hold the file encryption key; the
// core never derives keys itself.
type SecurityHandler interface {
	// DeriveKey computes the file encryption key from the password.  id is
	// the first element of the /ID array in the trailer.  If the password is
	// wrong, an error wrapping [ErrInvalidPassword] is returned and the
	// handler can be used for another attempt.
	DeriveKey(id []byte, password string) error

	// Decrypt decrypts the contents of a string or stream which belongs to
	// the indirect object ref.  The handler may modify buf in place.
	Decrypt(ref Reference, buf []byte) ([]byte, error)

	// Encrypt encrypts the contents of a string or stream which belongs to
	// the indirect object ref.  The handler may modify buf in place.
	Encrypt(ref Reference, buf []byte) ([]byte, error)

	// Permissions returns the operations the document allows for user
	// access.
	Permissions() Perm
}

// SecurityHandlerFunc constructs a security handler from the encryption
// dictionary of a document.
type SecurityHandlerFunc func(encrypt Dict) (SecurityHandler, error)

// Perm describes which operations are permitted when accessing the document
// with User access (but not Owner access).  The user can always view the
// document.
//
// This library just reports the permissions as specified in the PDF file.
// It is up to the caller to enforce the permissions.
type Perm int

const (
	// PermCopy allows to extract text and graphics.
	PermCopy Perm = 1 << iota

	// PermPrintDegraded allows printing of a low-level representation of the
	// appearance, possibly of degraded quality.
	PermPrintDegraded

	// PermPrint allows printing a representation from which a faithful digital
	// copy of the PDF content could be generated.  This implies
	// PermPrintDegraded.
	PermPrint

	// PermForms allows to fill in form fields, including signature fields.
	PermForms

	// PermAnnotate allows to add or modify text annotations. This implies
	// PermForms.
	PermAnnotate

	// PermAssemble allows to insert, rotate, or delete pages and to create
	// bookmarks or thumbnail images.
	PermAssemble

	// PermModify allows to modify the document.  This implies PermAssemble.
	PermModify

	permNext

	// PermAll gives the user all permissions, making User access equivalent to
	// Owner access.
	PermAll = permNext - 1
)

func (perm Perm) String() string {
	if perm == PermAll {
		return "all"
	}
	names := []struct {
		p    Perm
		name string
	}{
		{PermCopy, "copy"},
		{PermPrintDegraded, "print-degraded"},
		{PermPrint, "print"},
		{PermForms, "forms"},
		{PermAnnotate, "annotate"},
		{PermAssemble, "assemble"},
		{PermModify, "modify"},
	}
	var res []byte
	for _, n := range names {
		if perm&n.p == 0 {
			continue
		}
		if len(res) > 0 {
			res = append(res, ',')
		}
		res = append(res, n.name...)
	}
	if len(res) == 0 {
		return "none"
	}
	return string(res)
}
