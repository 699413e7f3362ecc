/*
 * DECtape - Tape image accessor
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

// Package tcimage holds the in-memory native representation of a TC02
// tape: an array of 18-bit words addressed by block and word-in-block,
// plus the header/trailer math (block number, checksum, complement
// obverse) that a drive's per-line service needs while it is positioned
// over the non-data part of a block.
package tcimage

// Word mask: a DECtape word is 18 bits wide.
const WordMask = 0777777

// Geometry-independent line constants, straight from the physical
// format of a Type 550 tape: an end zone at each end of the reel, and a
// fixed-width header/trailer bracketing every data block.
const (
	EndZoneLines       = 36000 // Length of each end zone, in lines.
	HeaderTrailerLines = 30    // Lines in the header or trailer of a block.
	BlockNumberLine    = 6     // Line offset of the block-number word.
	ChecksumLine       = 24    // Line offset of the checksum word.
	WordSizeLines      = 6     // Lines per word, regardless of on-disk packing.

	BlockNumberWord = BlockNumberLine / WordSizeLines // Word holding the forward block number.
	ChecksumWord    = ChecksumLine / WordSizeLines    // Word holding the reverse checksum sentinel.
)

// Geometry describes the block layout of a tape format. 18-bit native
// and 16-bit packed storage share the "standard" geometry (578 blocks of
// 256 words); 12-bit packed storage uses the "compact" geometry, with
// shorter 86-word blocks and more of them (1474).
type Geometry struct {
	BlockWords int // Data words per block.
	Blocks     int // Blocks per tape.
}

// StandardGeometry is used by the native 18-bit and zero-extended
// 16-bit on-disk formats.
var StandardGeometry = Geometry{BlockWords: 256, Blocks: 578}

// CompactGeometry is used by the 2-of-3-packed 12-bit on-disk format.
var CompactGeometry = Geometry{BlockWords: 86, Blocks: 1474}

// headerTrailerWords is the header/trailer region expressed in words.
func headerTrailerWords() int { return HeaderTrailerLines / WordSizeLines }

// HeaderTrailerWords is the header/trailer region expressed in words,
// exported for callers (the drive's per-line service) that need to
// locate the forward checksum and block-number slots from outside.
func HeaderTrailerWords() int { return headerTrailerWords() }

// LinesPerBlock is the header, data, and trailer lines of one block.
func (g Geometry) LinesPerBlock() int {
	return 2*HeaderTrailerLines + g.BlockWords*WordSizeLines
}

// ForwardEndZoneLine is the line position where the forward end zone begins.
func (g Geometry) ForwardEndZoneLine() int {
	return EndZoneLines + g.LinesPerBlock()*g.Blocks
}

// Capacity is the tape's total data-word capacity.
func (g Geometry) Capacity() int {
	return g.Blocks * g.BlockWords
}

// InReverseEndZone reports whether pos lies in the zone before block 0.
func (g Geometry) InReverseEndZone(pos int) bool {
	return pos < EndZoneLines
}

// InForwardEndZone reports whether pos lies in the zone past the last block.
func (g Geometry) InForwardEndZone(pos int) bool {
	return pos >= g.ForwardEndZoneLine()
}

// InEndZone reports whether pos lies in either end zone.
func (g Geometry) InEndZone(pos int) bool {
	return g.InReverseEndZone(pos) || g.InForwardEndZone(pos)
}

// LineToBlock converts a line position to its containing block number.
// Only meaningful outside the end zones.
func (g Geometry) LineToBlock(pos int) int {
	return (pos - EndZoneLines) / g.LinesPerBlock()
}

// LineToOffset converts a line position to its offset within its block.
func (g Geometry) LineToOffset(pos int) int {
	return (pos - EndZoneLines) % g.LinesPerBlock()
}

// LineToWord converts a line position to its word index within the
// block's data region. Only meaningful when the offset is past the header.
func (g Geometry) LineToWord(pos int) int {
	return (g.LineToOffset(pos) - HeaderTrailerLines) / WordSizeLines
}

// BlockToLine returns the line position at the start of block blk.
func (g Geometry) BlockToLine(blk int) int {
	return blk*g.LinesPerBlock() + EndZoneLines
}

// ComplementObverse performs the DECtape reverse-read transform: an
// 18-bit bit-complement followed by reversing the order of the six
// 3-bit lines. It is its own inverse.
func ComplementObverse(word uint32) uint32 {
	word ^= WordMask
	return ((word>>15)&07) | ((word>>9)&070) | ((word>>3)&0700) |
		((word&0700)<<3) | ((word&070)<<9) | ((word&07)<<15)
}

// Checksum computes the one's-complement, end-around-carry checksum of
// the 18-bit words in words, seeded all-ones and inverted at the end.
func Checksum(words []uint32) uint32 {
	sum := uint32(WordMask)
	for _, w := range words {
		sum += w
		if sum > WordMask {
			sum = (sum + 1) & WordMask
		}
	}
	return sum ^ WordMask
}

// Image is the native in-memory tape: a flat array of 18-bit words
// plus a high-water mark tracking how much of it has ever been
// written, exactly as the teacher's tape buffering tracks hwmark.
type Image struct {
	Geometry      Geometry
	Words         []uint32
	HighWaterMark int
	ReadOnly      bool
}

// NewImage allocates a zeroed image of the given geometry.
func NewImage(g Geometry) *Image {
	return &Image{Geometry: g, Words: make([]uint32, g.Capacity())}
}

// ReadWord returns data word wrd of block blk.
func (img *Image) ReadWord(blk, wrd int) uint32 {
	return img.Words[blk*img.Geometry.BlockWords+wrd]
}

// WriteWord stores data word wrd of block blk and advances the high
// water mark if this is the furthest word ever written.
func (img *Image) WriteWord(blk, wrd int, value uint32) {
	ba := blk*img.Geometry.BlockWords + wrd
	img.Words[ba] = value
	if ba+1 > img.HighWaterMark {
		img.HighWaterMark = ba + 1
	}
}

// Checksum computes the checksum of block blk's data words.
func (img *Image) Checksum(blk int) uint32 {
	start := blk * img.Geometry.BlockWords
	return Checksum(img.Words[start : start+img.Geometry.BlockWords])
}

// HeaderWord returns the header/trailer word a read of relpos (a line
// offset within a block) observes. relpos must be outside the data
// region (the caller has already checked LineToOffset against
// HeaderTrailerLines). wrd 0 is the leading gap and the final trailer
// word is the trailing gap; both read as the all-zero "reserved" word,
// same as every slot this function doesn't special-case.
//
// The forward-checksum slot is computed live, not read back from a
// stored value: the image holds data words only and nothing stores
// header/trailer words, so a read never observes a bad forward
// checksum (spec Open Question 1). The
// reverse-checksum slot is always the all-ones sentinel: the original
// DECtape controller never computed a reverse checksum (Open Question 2).
func (img *Image) HeaderWord(blk, relpos int) uint32 {
	htw := headerTrailerWords()
	wrd := relpos / WordSizeLines
	switch wrd {
	case BlockNumberWord:
		return uint32(blk)
	case ChecksumWord:
		return WordMask
	case 2*htw + img.Geometry.BlockWords - ChecksumWord - 1:
		return img.Checksum(blk)
	case 2*htw + img.Geometry.BlockWords - BlockNumberWord - 1:
		return ComplementObverse(uint32(blk))
	default:
		return 0
	}
}
