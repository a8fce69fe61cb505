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
	"crypto/aes"
	"crypto/cipher"
	"crypto/md5"
	"crypto/rand"
	"crypto/rc4"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/binary"
	"fmt"
	"hash"

	"github.com/xdg-go/stringprep"

	"seehuhn.de/go/pdfcore"
)

// fileKey computes the file encryption key for R <= 4 from the padded user
// password (Algorithm 2).
func (sec *handler) fileKey(paddedUserPwd []byte) []byte {
	h := md5.New()
	h.Write(paddedUserPwd)
	h.Write(sec.O)
	var p [4]byte
	binary.LittleEndian.PutUint32(p[:], sec.P)
	h.Write(p[:])
	h.Write(sec.ID)
	if sec.unencryptedMetaData && sec.R >= 4 {
		h.Write([]byte{255, 255, 255, 255})
	}
	key := h.Sum(nil)

	if sec.R >= 3 {
		for range 50 {
			h.Reset()
			h.Write(key[:sec.keyBytes])
			key = h.Sum(key[:0])
		}
	}
	return key[:sec.keyBytes]
}

// ownerKey derives the RC4 key used for the /O entry from the padded owner
// password.
func (sec *handler) ownerKey(paddedOwnerPwd []byte) []byte {
	h := md5.New()
	h.Write(paddedOwnerPwd)
	sum := h.Sum(nil)
	if sec.R >= 3 {
		for range 50 {
			h.Reset()
			h.Write(sum[:sec.keyBytes])
			sum = h.Sum(sum[:0])
		}
	}
	return sum[:sec.keyBytes]
}

// rc4Rounds applies RC4 to buf 19 times, with the key XORed with the round
// numbers from..to.
func rc4Rounds(buf, key []byte, from, to int) {
	step := 1
	if from > to {
		step = -1
	}
	tmp := make([]byte, len(key))
	for i := from; ; i += step {
		for j := range tmp {
			tmp[j] = key[j] ^ byte(i)
		}
		c, _ := rc4.NewCipher(tmp)
		c.XORKeyStream(buf, buf)
		if i == to {
			break
		}
	}
}

// computeO computes the /O entry for R <= 4 (Algorithm 3).
func (sec *handler) computeO(paddedUserPwd, paddedOwnerPwd []byte) []byte {
	key := sec.ownerKey(paddedOwnerPwd)
	O := make([]byte, 32)
	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(O, paddedUserPwd)
	if sec.R >= 3 {
		rc4Rounds(O, key, 1, 19)
	}
	return O
}

// computeU computes the /U entry for R <= 4 (Algorithms 4 and 5).
func (sec *handler) computeU(key []byte) []byte {
	U := make([]byte, 32)
	if sec.R == 2 {
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(U, passwdPad)
		return U
	}

	h := md5.New()
	h.Write(passwdPad)
	h.Write(sec.ID)
	sum := h.Sum(nil)
	c, _ := rc4.NewCipher(key)
	c.XORKeyStream(sum, sum)
	rc4Rounds(sum, key, 1, 19)

	// the remaining 16 bytes are arbitrary padding
	copy(U, sum)
	return U
}

// authenticateUser checks the user password for R <= 4 (Algorithm 6).
func (sec *handler) authenticateUser(paddedUserPwd []byte) error {
	key := sec.fileKey(paddedUserPwd)
	U := sec.computeU(key)
	n := 32
	if sec.R >= 3 {
		n = 16
	}
	if !bytes.Equal(U[:n], sec.U[:n]) {
		return &pdfcore.AuthenticationError{ID: sec.ID}
	}
	sec.key = key
	return nil
}

// authenticateOwner checks the owner password for R <= 4 (Algorithm 7).
func (sec *handler) authenticateOwner(paddedOwnerPwd []byte) error {
	key := sec.ownerKey(paddedOwnerPwd)

	userPwd := bytes.Clone(sec.O)
	if sec.R == 2 {
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(userPwd, userPwd)
	} else {
		rc4Rounds(userPwd, key, 19, 0)
	}

	err := sec.authenticateUser(userPwd)
	if err != nil {
		return err
	}
	sec.ownerAuthenticated = true
	return nil
}

// slowHash computes the hash used by revision 6 (Algorithm 2.B).  U is the
// 48-byte user key when checking or creating the owner password, and nil
// otherwise.
func slowHash(passwd, salt, U []byte) []byte {
	h := sha256.New()
	h.Write(passwd)
	h.Write(salt)
	h.Write(U)
	K := h.Sum(nil)

	K1 := make([]byte, 0, 64*(len(passwd)+64+len(U)))
	for round := 0; ; round++ {
		K1 = K1[:0]
		for range 64 {
			K1 = append(K1, passwd...)
			K1 = append(K1, K...)
			K1 = append(K1, U...)
		}

		// The length of K1 is a multiple of 64, so no padding is needed.
		c, _ := aes.NewCipher(K[:16])
		cipher.NewCBCEncrypter(c, K[16:32]).CryptBlocks(K1, K1)
		E := K1

		// (a*256) % 3 == a % 3, so the remainder of the 16-byte big-endian
		// number equals the remainder of the byte sum.
		var sum int
		for _, b := range E[:16] {
			sum += int(b)
		}
		var next hash.Hash
		switch sum % 3 {
		case 0:
			next = sha256.New()
		case 1:
			next = sha512.New384()
		default:
			next = sha512.New()
		}
		next.Write(E)
		K = next.Sum(K[:0])

		// After round 63, continue while the last byte of E exceeds the
		// number of the next round minus 32.
		if round >= 63 && int(E[len(E)-1]) <= round+1-32 {
			break
		}
	}
	return K[:32]
}

// computeUAndUE computes the /U and /UE entries for R = 6 (Algorithm 8).
func (sec *handler) computeUAndUE(utf8UserPwd []byte) ([]byte, []byte, error) {
	salts := make([]byte, 16)
	_, err := rand.Read(salts)
	if err != nil {
		return nil, nil, err
	}

	U := make([]byte, 0, 48)
	U = append(U, slowHash(utf8UserPwd, salts[:8], nil)...)
	U = append(U, salts...)

	UE := wrapKey(slowHash(utf8UserPwd, salts[8:], nil), sec.key)
	return U, UE, nil
}

// computeOAndOE computes the /O and /OE entries for R = 6 (Algorithm 9).
// The /U entry must already be set.
func (sec *handler) computeOAndOE(utf8OwnerPwd []byte) ([]byte, []byte, error) {
	salts := make([]byte, 16)
	_, err := rand.Read(salts)
	if err != nil {
		return nil, nil, err
	}

	O := make([]byte, 0, 48)
	O = append(O, slowHash(utf8OwnerPwd, salts[:8], sec.U)...)
	O = append(O, salts...)

	OE := wrapKey(slowHash(utf8OwnerPwd, salts[8:], sec.U), sec.key)
	return O, OE, nil
}

// wrapKey encrypts the 32-byte file key with AES-256, CBC mode, zero IV and
// no padding.
func wrapKey(kek, fileKey []byte) []byte {
	c, _ := aes.NewCipher(kek)
	out := make([]byte, 32)
	cipher.NewCBCEncrypter(c, zero16).CryptBlocks(out, fileKey)
	return out
}

func unwrapKey(kek, wrapped []byte) []byte {
	c, _ := aes.NewCipher(kek)
	out := make([]byte, 32)
	cipher.NewCBCDecrypter(c, zero16).CryptBlocks(out, wrapped)
	return out
}

// computePerms computes the /Perms entry for R = 6 (Algorithm 10).
func (sec *handler) computePerms() []byte {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint32(buf, sec.P)
	copy(buf[4:8], []byte{0xFF, 0xFF, 0xFF, 0xFF})
	buf[8] = sec.metadataFlag()
	copy(buf[9:12], "adb")
	_, err := rand.Read(buf[12:])
	if err != nil {
		clear(buf[12:])
	}

	c, _ := aes.NewCipher(sec.key)
	c.Encrypt(buf, buf)
	return buf
}

func (sec *handler) metadataFlag() byte {
	if sec.unencryptedMetaData {
		return 'F'
	}
	return 'T'
}

// authenticateUser6 checks the user password for R = 6 (Algorithm 11).
func (sec *handler) authenticateUser6(utf8Pwd []byte) error {
	hash := slowHash(utf8Pwd, sec.U[32:40], nil)
	if !bytes.Equal(hash, sec.U[:32]) {
		return &pdfcore.AuthenticationError{ID: sec.ID}
	}
	key := unwrapKey(slowHash(utf8Pwd, sec.U[40:48], nil), sec.UE)
	err := sec.checkPerms(key)
	if err != nil {
		return err
	}
	sec.key = key
	return nil
}

// authenticateOwner6 checks the owner password for R = 6 (Algorithm 12).
func (sec *handler) authenticateOwner6(utf8Pwd []byte) error {
	hash := slowHash(utf8Pwd, sec.O[32:40], sec.U)
	if !bytes.Equal(hash, sec.O[:32]) {
		return &pdfcore.AuthenticationError{ID: sec.ID}
	}
	key := unwrapKey(slowHash(utf8Pwd, sec.O[40:48], sec.U), sec.OE)
	err := sec.checkPerms(key)
	if err != nil {
		return err
	}
	sec.key = key
	sec.ownerAuthenticated = true
	return nil
}

// checkPerms verifies the /Perms entry against the decrypted file key
// (Algorithm 13).
func (sec *handler) checkPerms(key []byte) error {
	buf := make([]byte, 16)
	c, _ := aes.NewCipher(key)
	c.Decrypt(buf, sec.Perms)
	if string(buf[9:12]) != "adb" ||
		binary.LittleEndian.Uint32(buf[:4]) != sec.P ||
		buf[8] != sec.metadataFlag() {
		return &pdfcore.AuthenticationError{ID: sec.ID}
	}
	return nil
}

// utf8Passwd prepares a password for R = 6, using SASLprep.
func utf8Passwd(passwd string) ([]byte, error) {
	prepped, err := stringprep.SASLprep.Prepare(passwd)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", pdfcore.ErrInvalidPassword, err)
	}
	buf := []byte(prepped)
	if len(buf) > 127 {
		buf = buf[:127]
	}
	return buf, nil
}

// padPasswd converts a password to the 32-byte form used for R <= 4.
func padPasswd(passwd string) ([]byte, error) {
	buf, ok := pdfcore.PDFDocEncode(passwd)
	if !ok {
		return nil, fmt.Errorf("%w: password not representable in PDFDocEncoding",
			pdfcore.ErrInvalidPassword)
	}
	padded := make([]byte, 32)
	n := copy(padded, buf)
	copy(padded[n:], passwdPad)
	return padded, nil
}

var passwdPad = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

var zero16 = make([]byte, 16)
