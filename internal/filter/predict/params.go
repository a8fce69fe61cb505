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

// Package predict implements the TIFF and PNG predictors which can be
// combined with the FlateDecode filter.
package predict

import (
	"errors"
	"fmt"
)

const maxColumns = 1 << 20

// Params describes the layout of the predicted data.
type Params struct {
	// Predictor is the prediction algorithm: 1 for no prediction, 2 for TIFF
	// horizontal differencing, 10-15 for the PNG filters.
	Predictor int

	// Colors is the number of color components per sample.
	Colors int

	// BitsPerComponent is one of 1, 2, 4, 8 or 16.
	BitsPerComponent int

	// Columns is the number of samples per row.
	Columns int
}

// Validate checks whether the parameters are supported.
func (p *Params) Validate() error {
	switch p.Predictor {
	case 1:
		return nil
	case 2, 10, 11, 12, 13, 14, 15:
		// pass
	default:
		return fmt.Errorf("unsupported predictor %d", p.Predictor)
	}

	if p.Colors < 1 || p.Colors > 256 {
		return fmt.Errorf("invalid number of colors %d", p.Colors)
	}
	switch p.BitsPerComponent {
	case 1, 2, 4, 8, 16:
		// pass
	default:
		return fmt.Errorf("invalid BitsPerComponent %d", p.BitsPerComponent)
	}
	maxCols := min(maxColumns, (1<<31-1)/(p.Colors*p.BitsPerComponent))
	if p.Columns < 1 || p.Columns > maxCols {
		return errors.New("invalid Columns value")
	}
	return nil
}

func (p *Params) isPNG() bool {
	return p.Predictor >= 10
}

func (p *Params) bytesPerRow() int {
	return (p.Colors*p.BitsPerComponent*p.Columns + 7) / 8
}

// bytesPerPixel is the distance used by the PNG filters to find the
// "left" byte.
func (p *Params) bytesPerPixel() int {
	return (p.Colors*p.BitsPerComponent + 7) / 8
}

// getComponent returns the k-th component value of a packed row.
func getComponent(row []byte, k, bits int) uint32 {
	switch bits {
	case 8:
		return uint32(row[k])
	case 16:
		return uint32(row[2*k])<<8 | uint32(row[2*k+1])
	default:
		bitPos := k * bits
		shift := 8 - bits - bitPos%8
		return uint32(row[bitPos/8]>>shift) & (1<<bits - 1)
	}
}

// setComponent stores the k-th component value of a packed row.
func setComponent(row []byte, k, bits int, val uint32) {
	switch bits {
	case 8:
		row[k] = byte(val)
	case 16:
		row[2*k] = byte(val >> 8)
		row[2*k+1] = byte(val)
	default:
		bitPos := k * bits
		shift := 8 - bits - bitPos%8
		mask := byte(1<<bits-1) << shift
		row[bitPos/8] = row[bitPos/8]&^mask | byte(val<<shift)&mask
	}
}
