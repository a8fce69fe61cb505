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
	"crypto/rand"
	"errors"
	"fmt"

	"seehuhn.de/go/pdfcore"
)

// Options configures the encryption of a new document.
type Options struct {
	// UserPassword is needed to open the document.  This can be empty.
	UserPassword string

	// OwnerPassword gives full access to the document.  If this is empty,
	// the user password is used.
	OwnerPassword string

	// Permissions lists the operations allowed with user access.
	Permissions pdfcore.Perm

	// Cipher selects the encryption algorithm.  The default is AES.
	Cipher Cipher

	// KeyLength is the key length in bits.  For RC4 this must be a
	// multiple of 8 between 40 and 128, for AES either 128 or 256.  The
	// default is 128 bits.
	KeyLength int

	// UnencryptedMetadata records in the encryption dictionary that XMP
	// metadata streams are stored in plain text.  This only has an effect
	// for AES.  The caller must write metadata streams without encryption.
	UnencryptedMetadata bool
}

// New creates a standard security handler for a new document, together
// with the corresponding encryption dictionary.  id must be the first
// element of the /ID array of the document.  The returned handler is
// already unlocked.
func New(id []byte, opt *Options) (pdfcore.SecurityHandler, pdfcore.Dict, error) {
	if opt == nil {
		opt = &Options{}
	}
	if len(id) == 0 {
		return nil, nil, errors.New("missing document ID")
	}

	cipherType := opt.Cipher
	if cipherType == 0 {
		cipherType = CipherAES
	}
	length := opt.KeyLength
	if length == 0 {
		length = 128
	}

	var V int
	switch {
	case cipherType == CipherRC4 && length == 40:
		V = 1
	case cipherType == CipherRC4 && length > 40 && length <= 128 && length%8 == 0:
		V = 2
	case cipherType == CipherAES && length == 128:
		V = 4
	case cipherType == CipherAES && length == 256:
		V = 5
	default:
		return nil, nil, fmt.Errorf("unsupported encryption %s-%d", cipherType, length)
	}

	perm := opt.Permissions
	var R int
	switch {
	case V == 1 && canR2(perm):
		R = 2
	case V <= 2:
		R = 3
	case V == 4:
		R = 4
	default:
		R = 6
	}

	sec := &handler{
		cf:       &cryptFilter{Cipher: cipherType, Length: length},
		R:        R,
		ID:       id,
		P:        stdSecPermToP(perm),
		keyBytes: length / 8,

		unencryptedMetaData: opt.UnencryptedMetadata && V >= 4,
		ownerAuthenticated:  true,
	}

	userPwd := opt.UserPassword
	ownerPwd := opt.OwnerPassword
	if ownerPwd == "" {
		ownerPwd = userPwd
	}

	if R < 6 {
		paddedUser, err := padPasswd(userPwd)
		if err != nil {
			return nil, nil, err
		}
		paddedOwner, err := padPasswd(ownerPwd)
		if err != nil {
			return nil, nil, err
		}
		sec.O = sec.computeO(paddedUser, paddedOwner)
		sec.key = sec.fileKey(paddedUser)
		sec.U = sec.computeU(sec.key)
	} else {
		utf8User, err := utf8Passwd(userPwd)
		if err != nil {
			return nil, nil, err
		}
		utf8Owner, err := utf8Passwd(ownerPwd)
		if err != nil {
			return nil, nil, err
		}
		sec.key = make([]byte, 32)
		_, err = rand.Read(sec.key)
		if err != nil {
			return nil, nil, err
		}
		sec.U, sec.UE, err = sec.computeUAndUE(utf8User)
		if err != nil {
			return nil, nil, err
		}
		sec.O, sec.OE, err = sec.computeOAndOE(utf8Owner)
		if err != nil {
			return nil, nil, err
		}
		sec.Perms = sec.computePerms()
	}

	return sec, sec.asDict(V), nil
}

func (sec *handler) asDict(V int) pdfcore.Dict {
	dict := pdfcore.Dict{
		"Filter": pdfcore.Name("Standard"),
		"V":      pdfcore.Integer(V),
		"R":      pdfcore.Integer(sec.R),
		"O":      pdfcore.String(sec.O),
		"U":      pdfcore.String(sec.U),
		"P":      pdfcore.Integer(int32(sec.P)),
	}
	switch V {
	case 2:
		dict["Length"] = pdfcore.Integer(sec.cf.Length)
	case 4:
		dict["StmF"] = pdfcore.Name("StdCF")
		dict["StrF"] = pdfcore.Name("StdCF")
		dict["CF"] = pdfcore.Dict{
			"StdCF": pdfcore.Dict{
				"Length": pdfcore.Integer(16),
				"CFM":    pdfcore.Name("AESV2"),
			},
		}
	case 5:
		dict["Length"] = pdfcore.Integer(256)
		dict["StmF"] = pdfcore.Name("StdCF")
		dict["StrF"] = pdfcore.Name("StdCF")
		dict["CF"] = pdfcore.Dict{
			"StdCF": pdfcore.Dict{
				"Length": pdfcore.Integer(32),
				"CFM":    pdfcore.Name("AESV3"),
			},
		}
		dict["OE"] = pdfcore.String(sec.OE)
		dict["UE"] = pdfcore.String(sec.UE)
		dict["Perms"] = pdfcore.String(sec.Perms)
	}
	if sec.unencryptedMetaData {
		dict["EncryptMetadata"] = pdfcore.Bool(false)
	}
	return dict
}
