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

// Package crypt implements the PDF standard security handler.
//
// The handler supports revisions 2, 3 and 4 of the standard security
// handler (RC4 with 40 to 128 bit keys, and AES-128), as well as revision 6
// (AES-256).  The handler is specified in section 7.6.4 of ISO 32000-2:2020.
package crypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"errors"
	"fmt"
	"io"

	"seehuhn.de/go/pdfcore"
)

// Cipher denotes the type of encryption used in a PDF file.
type Cipher int

const (
	// CipherRC4 indicates that RC4 encryption is used.  This corresponds to
	// V=1 and V=2 in the encryption dictionary, and to the crypt filter
	// method V2.
	CipherRC4 Cipher = iota + 1

	// CipherAES indicates that AES encryption in CBC mode is used.  This
	// corresponds to the crypt filter methods AESV2 and AESV3.
	CipherAES
)

func (c Cipher) String() string {
	switch c {
	case CipherRC4:
		return "RC4"
	case CipherAES:
		return "AES"
	default:
		return fmt.Sprintf("cipher#%d", int(c))
	}
}

// cryptFilter describes the encryption applied to strings and streams.
// A nil *cryptFilter means that data is not encrypted.
type cryptFilter struct {
	Cipher Cipher

	// Length is the key length in bits.
	Length int
}

func (cf *cryptFilter) String() string {
	if cf == nil {
		return "Identity"
	}
	return fmt.Sprintf("%s-%d", cf.Cipher, cf.Length)
}

// handler is the standard security handler.  It authenticates the user via
// a pair of passwords.  The "user password" is used to access the contents
// of the document, the "owner password" can be used to control additional
// permissions.
type handler struct {
	cf *cryptFilter

	// R is the revision of the standard security handler.
	R int

	// ID is the first element of the /ID array in the trailer.
	ID []byte

	O, U   []byte
	OE, UE []byte
	Perms  []byte

	// P holds the permission flags for user access.
	P uint32

	keyBytes int
	key      []byte

	// unencryptedMetaData is the negation of /EncryptMetadata, so that the
	// zero value matches the PDF default.
	unencryptedMetaData bool

	ownerAuthenticated bool
}

var errCorrupted = errors.New("corrupted ciphertext")

// Open constructs the standard security handler from an encryption
// dictionary.  The function has the signature of a
// [pdfcore.SecurityHandlerFunc], and can be used in
// [pdfcore.ReaderOptions].
//
// The handler must be unlocked using DeriveKey before data can be
// decrypted.
func Open(enc pdfcore.Dict) (pdfcore.SecurityHandler, error) {
	return open(enc)
}

func open(enc pdfcore.Dict) (*handler, error) {
	filter, _ := enc["Filter"].(pdfcore.Name)
	if filter != "Standard" {
		return nil, fmt.Errorf("unsupported security handler /%s", filter)
	}

	V, ok := enc["V"].(pdfcore.Integer)
	if !ok {
		return nil, errors.New("missing Encrypt.V")
	}

	var cf *cryptFilter
	switch V {
	case 1:
		cf = &cryptFilter{Cipher: CipherRC4, Length: 40}
	case 2, 3:
		cf = &cryptFilter{Cipher: CipherRC4, Length: 40}
		if obj, ok := enc["Length"].(pdfcore.Integer); ok {
			cf.Length = int(obj)
			if cf.Length < 40 || cf.Length > 128 || cf.Length%8 != 0 {
				return nil, fmt.Errorf("invalid Encrypt.Length %d", cf.Length)
			}
		}
	case 4, 5:
		CF, _ := enc["CF"].(pdfcore.Dict)
		stmName, _ := enc["StmF"].(pdfcore.Name)
		strName, _ := enc["StrF"].(pdfcore.Name)
		if stmName == "" {
			stmName = "Identity"
		}
		if strName == "" {
			strName = "Identity"
		}
		if stmName != strName {
			return nil, errors.New("not implemented: different crypt filters for strings and streams")
		}
		var err error
		cf, err = getCryptFilter(stmName, CF)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("invalid Encrypt.V %d", V)
	}

	var keyBytes int
	switch {
	case V == 5:
		keyBytes = 32
	case V == 4:
		keyBytes = 16
	default:
		keyBytes = cf.Length / 8
	}

	R, ok := enc["R"].(pdfcore.Integer)
	if !ok || R < 2 || R == 5 || R > 6 {
		return nil, errors.New("invalid Encrypt.R")
	}
	if (R == 6) != (V == 5) {
		return nil, fmt.Errorf("Encrypt.R=%d does not match Encrypt.V=%d", R, V)
	}
	ouLength := 32
	if R == 6 {
		ouLength = 48
	}

	O, err := asBytes(enc["O"])
	if err != nil || len(O) < ouLength {
		return nil, errors.New("invalid Encrypt.O")
	}
	U, err := asBytes(enc["U"])
	if err != nil || len(U) < ouLength {
		return nil, errors.New("invalid Encrypt.U")
	}
	P, ok := enc["P"].(pdfcore.Integer)
	if !ok {
		return nil, errors.New("invalid Encrypt.P")
	}

	emd := true
	if obj, ok := enc["EncryptMetadata"].(pdfcore.Bool); ok && V >= 4 {
		emd = bool(obj)
	}

	sec := &handler{
		cf:       cf,
		keyBytes: keyBytes,

		R: int(R),
		O: O[:ouLength],
		U: U[:ouLength],
		P: uint32(P),

		unencryptedMetaData: !emd,
	}

	if R == 6 {
		OE, err := asBytes(enc["OE"])
		if err != nil || len(OE) != 32 {
			return nil, errors.New("invalid Encrypt.OE")
		}
		sec.OE = OE

		UE, err := asBytes(enc["UE"])
		if err != nil || len(UE) != 32 {
			return nil, errors.New("invalid Encrypt.UE")
		}
		sec.UE = UE

		Perms, err := asBytes(enc["Perms"])
		if err != nil || len(Perms) != 16 {
			return nil, errors.New("invalid Encrypt.Perms")
		}
		sec.Perms = Perms
	}

	return sec, nil
}

func asBytes(obj pdfcore.Object) ([]byte, error) {
	buf, err := pdfcore.AsBytes(obj)
	if err != nil {
		return nil, err
	}
	return bytes.Clone(buf), nil
}

func getCryptFilter(name pdfcore.Name, CF pdfcore.Dict) (*cryptFilter, error) {
	if name == "Identity" {
		return nil, nil
	}
	cfDict, ok := CF[name].(pdfcore.Dict)
	if !ok {
		return nil, fmt.Errorf("missing crypt filter %q", name)
	}

	switch cfDict["CFM"] {
	case pdfcore.Name("V2"):
		length := 128
		if l, ok := cfDict["Length"].(pdfcore.Integer); ok {
			// some writers give the length in bytes
			if l <= 16 {
				l *= 8
			}
			if l >= 40 && l <= 128 && l%8 == 0 {
				length = int(l)
			}
		}
		return &cryptFilter{Cipher: CipherRC4, Length: length}, nil
	case pdfcore.Name("AESV2"):
		return &cryptFilter{Cipher: CipherAES, Length: 128}, nil
	case pdfcore.Name("AESV3"):
		return &cryptFilter{Cipher: CipherAES, Length: 256}, nil
	case nil, pdfcore.Name("None"):
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown crypt filter method %s", pdfcore.Format(cfDict["CFM"]))
	}
}

// DeriveKey implements the [pdfcore.SecurityHandler] interface.
// The password is first tried as the owner password, and then as the user
// password.
func (sec *handler) DeriveKey(id []byte, passwd string) error {
	sec.ID = id
	if sec.R < 6 {
		padded, err := padPasswd(passwd)
		if err != nil {
			return err
		}
		if sec.authenticateOwner(padded) == nil {
			return nil
		}
		return sec.authenticateUser(padded)
	}

	prepared, err := utf8Passwd(passwd)
	if err != nil {
		return err
	}
	if sec.authenticateOwner6(prepared) == nil {
		return nil
	}
	return sec.authenticateUser6(prepared)
}

// Permissions implements the [pdfcore.SecurityHandler] interface.
func (sec *handler) Permissions() pdfcore.Perm {
	return stdSecPToPerm(sec.R, sec.P)
}

// OwnerAuthenticated reports whether the owner password was used to unlock
// the handler.
func (sec *handler) OwnerAuthenticated() bool {
	return sec.ownerAuthenticated
}

// keyForRef computes the key for the data of the given object, using
// Algorithm 1 of the PDF specification.
func (sec *handler) keyForRef(ref pdfcore.Reference) ([]byte, error) {
	if sec.key == nil {
		return nil, &pdfcore.AuthenticationError{ID: sec.ID}
	}
	if sec.R == 6 {
		return sec.key, nil
	}

	h := md5.New()
	h.Write(sec.key)
	num := ref.Number()
	gen := ref.Generation()
	h.Write([]byte{
		byte(num), byte(num >> 8), byte(num >> 16),
		byte(gen), byte(gen >> 8)})
	if sec.cf.Cipher == CipherAES {
		h.Write([]byte("sAlT"))
	}
	l := min(sec.keyBytes+5, 16)
	return h.Sum(nil)[:l], nil
}

// Encrypt implements the [pdfcore.SecurityHandler] interface.
func (sec *handler) Encrypt(ref pdfcore.Reference, buf []byte) ([]byte, error) {
	if sec.cf == nil {
		return buf, nil
	}
	key, err := sec.keyForRef(ref)
	if err != nil {
		return nil, err
	}

	switch sec.cf.Cipher {
	case CipherAES:
		n := len(buf)
		nPad := 16 - n%16
		out := make([]byte, 16+n+nPad) // iv | c(data|padding)
		iv := out[:16]
		_, err = io.ReadFull(rand.Reader, iv)
		if err != nil {
			return nil, err
		}
		body := out[16:]
		copy(body, buf)
		for i := n; i < len(body); i++ {
			body[i] = byte(nPad)
		}

		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		cipher.NewCBCEncrypter(c, iv).CryptBlocks(body, body)
		return out, nil
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		c.XORKeyStream(buf, buf)
		return buf, nil
	}
}

// Decrypt implements the [pdfcore.SecurityHandler] interface.
func (sec *handler) Decrypt(ref pdfcore.Reference, buf []byte) ([]byte, error) {
	if sec.cf == nil {
		return buf, nil
	}
	key, err := sec.keyForRef(ref)
	if err != nil {
		return nil, err
	}

	switch sec.cf.Cipher {
	case CipherAES:
		if len(buf) < 32 || len(buf)%16 != 0 {
			return nil, errCorrupted
		}
		iv := buf[:16]
		c, err := aes.NewCipher(key)
		if err != nil {
			return nil, err
		}
		body := buf[16:]
		cipher.NewCBCDecrypter(c, iv).CryptBlocks(body, body)

		nPad := int(body[len(body)-1])
		if nPad < 1 || nPad > 16 {
			return nil, errCorrupted
		}
		return body[:len(body)-nPad], nil
	default:
		c, err := rc4.NewCipher(key)
		if err != nil {
			return nil, err
		}
		c.XORKeyStream(buf, buf)
		return buf, nil
	}
}
