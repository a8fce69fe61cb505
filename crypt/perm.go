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

import "seehuhn.de/go/pdfcore"

// bit returns the mask for bit number i of the /P entry, counting from 1.
func bit(i int) uint32 {
	return 1 << (i - 1)
}

// stdSecPToPerm converts the /P entry of the encryption dictionary into a
// permission set.
func stdSecPToPerm(R int, P uint32) pdfcore.Perm {
	perm := pdfcore.PermAll

	// For R >= 3, bit 12 allows full printing; bit 3 alone only allows
	// degraded printing.
	switch {
	case P&bit(3) == 0 && (R == 2 || P&bit(12) == 0):
		perm &^= pdfcore.PermPrint | pdfcore.PermPrintDegraded
	case R >= 3 && P&bit(3) != 0 && P&bit(12) == 0:
		perm &^= pdfcore.PermPrint
	}

	// Bit 4 allows all modifications, bit 11 only assembly.
	if P&bit(4) == 0 {
		perm &^= pdfcore.PermModify
		if R == 2 || P&bit(11) == 0 {
			perm &^= pdfcore.PermAssemble
		}
	}

	if P&bit(5) == 0 {
		perm &^= pdfcore.PermCopy
	}

	// Bit 6 allows annotations, bit 9 only filling in forms.
	if P&bit(6) == 0 {
		perm &^= pdfcore.PermAnnotate
		if R == 2 || P&bit(9) == 0 {
			perm &^= pdfcore.PermForms
		}
	}

	return perm
}

// stdSecPermToP converts a permission set into the /P entry of the
// encryption dictionary.
func stdSecPermToP(perm pdfcore.Perm) uint32 {
	forbidden := uint32(3)
	if perm&pdfcore.PermCopy == 0 {
		forbidden |= bit(5)
	}
	if perm&pdfcore.PermPrint == 0 {
		forbidden |= bit(12)
		if perm&pdfcore.PermPrintDegraded == 0 {
			forbidden |= bit(3)
		}
	}
	if perm&pdfcore.PermAnnotate == 0 {
		forbidden |= bit(6)
		if perm&pdfcore.PermForms == 0 {
			forbidden |= bit(9)
		}
	}
	if perm&pdfcore.PermAssemble == 0 {
		forbidden |= bit(11)
	}
	if perm&pdfcore.PermModify == 0 {
		forbidden |= bit(4)
	}
	return ^forbidden
}

// canR2 checks whether the permissions can be represented by revision 2 of
// the standard security handler.
func canR2(p pdfcore.Perm) bool {
	switch {
	case p&pdfcore.PermPrint == 0 && p&pdfcore.PermPrintDegraded != 0:
		return false
	case p&pdfcore.PermAnnotate == 0 && p&pdfcore.PermForms != 0:
		return false
	case p&pdfcore.PermModify == 0 && p&pdfcore.PermAssemble != 0:
		return false
	}
	return true
}
