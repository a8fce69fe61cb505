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
// Package open opens PDF files for the command line tools, asking for a
// password on the terminal where needed.
package open

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/term"

	"seehuhn.de/go/pdfcore"
	"seehuhn.de/go/pdfcore/crypt"
)

// maxTries is the number of passwords read from the terminal before giving
// up.
const maxTries = 3

// File opens a PDF file.  The standard security handler is used for
// encrypted files.  If password does not unlock the document and standard
// input is a terminal, the user is prompted for a password.
func File(fname string, password string, repair bool, logger *slog.Logger) (*pdfcore.Reader, error) {
	opt := &pdfcore.ReaderOptions{
		Password: password,
		Security: crypt.Open,
		Lazy:     true,
		Logger:   logger,
	}
	if repair {
		opt.ErrorHandling = pdfcore.ErrorHandlingRecover
	}
	r, err := pdfcore.Open(fname, opt)
	if err != nil {
		return nil, err
	}

	fd := int(os.Stdin.Fd())
	for try := 0; !r.Authenticated(); try++ {
		if try >= maxTries || !term.IsTerminal(fd) {
			r.Close()
			return nil, fmt.Errorf("%s: %w", fname, pdfcore.ErrInvalidPassword)
		}
		fmt.Fprint(os.Stderr, "password: ")
		passwd, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			r.Close()
			return nil, err
		}
		err = r.Authenticate(string(passwd))
		if errors.Is(err, pdfcore.ErrInvalidPassword) {
			fmt.Fprintln(os.Stderr, "wrong password")
			continue
		} else if err != nil {
			r.Close()
			return nil, err
		}
	}
	return r, nil
}

// Logger returns the logger used by the tools.  Messages go to standard
// error; debug messages are only shown if verbose is set.
func Logger(verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
