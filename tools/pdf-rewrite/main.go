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
// Pdf-rewrite reads a PDF file and writes all its objects to a new file.
// This removes incremental updates and unused objects.  The output can use
// a cross-reference stream, and can be encrypted with a new password.
package main

import (
	"crypto/rand"
	"flag"
	"fmt"
	"os"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/crypt"
	"seehuhn.de/go/pdfcore/tools/internal/buildinfo"
	"seehuhn.de/go/pdfcore/tools/internal/open"
)

func main() {
	out := flag.String("o", "out.pdf", "output file name")
	force := flag.Bool("f", false, "overwrite output file if it exists")
	passwd := flag.String("p", "", "password of the input file")
	repair := flag.Bool("r", false, "repair damaged input files")
	xrefStream := flag.Bool("s", false, "use a cross-reference stream")
	cipher := flag.String("encrypt", "", "encrypt the output: rc4-40, rc4-128, aes-128 or aes-256")
	userPasswd := flag.String("user", "", "user password for the output")
	ownerPasswd := flag.String("owner", "", "owner password for the output")
	verbose := flag.Bool("v", false, "show debug messages")
	showVersion := flag.Bool("version", false, "print version information and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(buildinfo.Short("pdf-rewrite"))
		return
	}
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "error: need exactly one input file")
		flag.Usage()
		os.Exit(1)
	}

	if !*force {
		if _, err := os.Stat(*out); !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "error: output file %q already exists\n", *out)
			os.Exit(1)
		}
	}

	enc := &encryption{user: *userPasswd, owner: *ownerPasswd}
	err := enc.setCipher(*cipher)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}

	err = rewrite(*out, flag.Arg(0), *passwd, *repair, *xrefStream, enc, *verbose)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type encryption struct {
	cipher    crypt.Cipher
	keyLength int
	user      string
	owner     string
}

func (enc *encryption) setCipher(name string) error {
	switch name {
	case "":
		// no encryption
	case "rc4-40":
		enc.cipher, enc.keyLength = crypt.CipherRC4, 40
	case "rc4-128":
		enc.cipher, enc.keyLength = crypt.CipherRC4, 128
	case "aes-128":
		enc.cipher, enc.keyLength = crypt.CipherAES, 128
	case "aes-256":
		enc.cipher, enc.keyLength = crypt.CipherAES, 256
	default:
		return fmt.Errorf("unknown cipher %q", name)
	}
	return nil
}

// minVersion returns the oldest PDF version supporting the cipher.
func (enc *encryption) minVersion() pdfcore.Version {
	switch {
	case enc.cipher == crypt.CipherAES && enc.keyLength == 256:
		return pdfcore.V2_0
	case enc.cipher == crypt.CipherAES:
		return pdfcore.V1_6
	case enc.keyLength > 40:
		return pdfcore.V1_4
	default:
		return pdfcore.V1_1
	}
}

func rewrite(out, in, passwd string, repair, xrefStream bool, enc *encryption, verbose bool) error {
	logger := open.Logger(verbose)
	r, err := open.File(in, passwd, repair, logger)
	if err != nil {
		return err
	}
	defer r.Close()

	opt := &pdfcore.WriterOptions{
		Version:    r.Version(),
		XRefStream: xrefStream,
		ID:         r.ID(),
		Logger:     logger,
	}
	if xrefStream {
		opt.Version = max(opt.Version, pdfcore.V1_5)
	}

	if enc.cipher != 0 {
		opt.Version = max(opt.Version, enc.minVersion())
		if len(opt.ID) == 0 {
			id := make([]byte, 16)
			_, err := rand.Read(id)
			if err != nil {
				return err
			}
			opt.ID = [][]byte{id, id}
		}
		sec, dict, err := crypt.New(opt.ID[0], &crypt.Options{
			UserPassword:  enc.user,
			OwnerPassword: enc.owner,
			Permissions:   r.Permissions(),
			Cipher:        enc.cipher,
			KeyLength:     enc.keyLength,
		})
		if err != nil {
			return err
		}
		opt.Security = sec
		opt.Encrypt = dict
	}

	fd, err := os.Create(out)
	if err != nil {
		return err
	}
	err = pdfcore.WriteStore(fd, r.Store(), r.Trailer(), opt)
	if err != nil {
		fd.Close()
		return err
	}
	// WriteStore closes fd
	return nil
}
