/*
 * DECtape - On-disk image format transcoding
 *
 * Copyright 2024, Richard Cornwell
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in
 * all copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 */

// Package tcformat converts between the core's native 18-bit word image
// (tcimage.Image) and the three on-disk encodings a TC02 tape file can
// use: 18-bit native words, 16-bit zero-extended words, and 12-bit
// 2-of-3-packed halfwords. This is the attach/detach boundary the core
// state machine never sees directly.
package tcformat

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"

	"github.com/rcornwell/dectape/emu/tc02/tcimage"
)

// Format selects the on-disk word encoding.
type Format int

const (
	Format18 Format = iota // Native 18-bit words, 4 bytes each.
	Format16               // Zero-extended 16-bit halfwords.
	Format12               // 2-of-3-packed 12-bit halfwords.
)

// halfwordsPerNative12 is the count of packed 12-bit halfwords that
// encode two native 18-bit words (pdp1_dt.c's D8_NBSIZE pairing: 3
// halfwords per 2 words).
const halfwordsPerNative12 = 3

// geometryFor returns the logical tape geometry the on-disk format implies.
func geometryFor(f Format) tcimage.Geometry {
	if f == Format12 {
		return tcimage.CompactGeometry
	}
	return tcimage.StandardGeometry
}

// ParseFormat maps the attach-time format letters from dt_attach's
// SIM_SW_REST switch check ('R'=12-bit, 'S'=16-bit, 'T'=force-18-bit,
// anything else=autosize) to a Format plus whether autosizing should
// still run. ok is false for an unrecognized letter.
func ParseFormat(letter string) (format Format, forced bool, ok bool) {
	switch letter {
	case "", "autosize":
		return Format18, false, true
	case "R", "r", "12", "12bit":
		return Format12, true, true
	case "S", "s", "16", "16bit":
		return Format16, true, true
	case "T", "t", "18", "18bit":
		return Format18, true, true
	default:
		return 0, false, false
	}
}

// FormatNames lists the format letters ParseFormat accepts, for a
// command surface's option-list advertisement.
func FormatNames() []string {
	return []string{"R", "S", "T"}
}

// DetectFormat chooses a format by file size, mirroring the autosize
// logic in dt_attach: an exact match against the 12-bit or 16-bit file
// size selects that format, otherwise the tape is assumed native 18-bit.
func DetectFormat(size int64) Format {
	compactWords := geometryFor(Format12).Capacity()
	compactBytes := int64(compactWords/2*halfwordsPerNative12) * 2

	standardWords := geometryFor(Format16).Capacity()
	standardBytes := int64(standardWords) * 2

	if size == compactBytes {
		return Format12
	}
	if size == standardBytes {
		return Format16
	}
	return Format18
}

// Load reads path under the given format and returns the resulting
// in-memory image. A short or missing file yields a zeroed image at
// full capacity, matching dt_attach's calloc-then-best-effort-fxread.
func Load(path string, format Format) (*tcimage.Image, error) {
	geometry := geometryFor(format)
	img := tcimage.NewImage(geometry)

	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return img, nil
	}
	if err != nil {
		return nil, fmt.Errorf("tcformat: open %s: %w", path, err)
	}
	defer file.Close()

	switch format {
	case Format18:
		return img, load18(file, img)
	case Format16:
		return img, load16(file, img)
	case Format12:
		return img, load12(file, img)
	default:
		return nil, fmt.Errorf("tcformat: unknown format %d", format)
	}
}

func load18(file *os.File, img *tcimage.Image) error {
	buf := make([]byte, 4)
	ba := 0
	for ba < len(img.Words) {
		n, err := file.Read(buf)
		if n < 4 {
			break
		}
		img.Words[ba] = binary.LittleEndian.Uint32(buf) & tcimage.WordMask
		ba++
		if err != nil {
			break
		}
	}
	img.HighWaterMark = ba
	return nil
}

func load16(file *os.File, img *tcimage.Image) error {
	buf := make([]byte, 2)
	ba := 0
	for ba < len(img.Words) {
		n, err := file.Read(buf)
		if n < 2 {
			break
		}
		img.Words[ba] = uint32(binary.LittleEndian.Uint16(buf))
		ba++
		if err != nil {
			break
		}
	}
	img.HighWaterMark = ba
	return nil
}

// load12 unpacks three 12-bit halfwords into two native 18-bit words,
// exactly as dt_attach's UNIT_8FMT branch does.
func load12(file *os.File, img *tcimage.Image) error {
	buf := make([]byte, 2*halfwordsPerNative12)
	ba := 0
	for ba < len(img.Words) {
		n, _ := file.Read(buf)
		if n < len(buf) {
			for i := n; i < len(buf); i++ {
				buf[i] = 0
			}
			if n == 0 {
				break
			}
		}
		h0 := binary.LittleEndian.Uint16(buf[0:2]) & 07777
		h1 := binary.LittleEndian.Uint16(buf[2:4]) & 07777
		h2 := binary.LittleEndian.Uint16(buf[4:6]) & 07777

		img.Words[ba] = (uint32(h0) << 6) | ((uint32(h1) >> 6) & 077)
		if ba+1 < len(img.Words) {
			img.Words[ba+1] = ((uint32(h1) & 077) << 12) | uint32(h2)
		}
		ba += 2
		if n < len(buf) {
			break
		}
	}
	img.HighWaterMark = ba
	return nil
}

// Save writes img back to path under the given format, truncating any
// existing content, mirroring dt_detach's rewind-then-write.
func Save(path string, img *tcimage.Image, format Format) error {
	if img.ReadOnly {
		return errors.New("tcformat: image is write-protected")
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("tcformat: create %s: %w", path, err)
	}
	defer file.Close()

	switch format {
	case Format18:
		return save18(file, img)
	case Format16:
		return save16(file, img)
	case Format12:
		return save12(file, img)
	default:
		return fmt.Errorf("tcformat: unknown format %d", format)
	}
}

func save18(file *os.File, img *tcimage.Image) error {
	buf := make([]byte, 4)
	for _, w := range img.Words[:img.HighWaterMark] {
		binary.LittleEndian.PutUint32(buf, w)
		if _, err := file.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

func save16(file *os.File, img *tcimage.Image) error {
	buf := make([]byte, 2)
	for _, w := range img.Words[:img.HighWaterMark] {
		binary.LittleEndian.PutUint16(buf, uint16(w&0177777))
		if _, err := file.Write(buf); err != nil {
			return err
		}
	}
	return nil
}

// save12 packs pairs of native 18-bit words back into three 12-bit
// halfwords, the inverse of load12.
func save12(file *os.File, img *tcimage.Image) error {
	buf := make([]byte, 2*halfwordsPerNative12)
	words := img.Words[:img.HighWaterMark]
	for ba := 0; ba < len(words); ba += 2 {
		w0 := words[ba]
		var w1 uint32
		if ba+1 < len(words) {
			w1 = words[ba+1]
		}
		h0 := (w0 >> 6) & 07777
		h1 := ((w0 & 077) << 6) | ((w1 >> 12) & 077)
		h2 := w1 & 07777

		binary.LittleEndian.PutUint16(buf[0:2], uint16(h0))
		binary.LittleEndian.PutUint16(buf[2:4], uint16(h1))
		binary.LittleEndian.PutUint16(buf[4:6], uint16(h2))
		if _, err := file.Write(buf); err != nil {
			return err
		}
	}
	return nil
}
