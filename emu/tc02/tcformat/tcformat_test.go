/*
 * DECtape - On-disk image format transcoding test cases.
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

package tcformat

import (
	"path/filepath"
	"testing"

	"github.com/rcornwell/dectape/emu/tc02/tcimage"
)

func writeAndReload(t *testing.T, format Format) *tcimage.Image {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "tape.img")

	img := tcimage.NewImage(geometryFor(format))
	for i := range 20 {
		img.WriteWord(0, i, uint32(i*37)&tcimage.WordMask)
	}

	if err := Save(path, img, format); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(path, format)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return reloaded
}

func TestRoundTrip18(t *testing.T) {
	img := writeAndReload(t, Format18)
	for i := range 20 {
		if got := img.ReadWord(0, i); got != uint32(i*37)&tcimage.WordMask {
			t.Fatalf("word %d: got %#o want %#o", i, got, uint32(i*37))
		}
	}
}

func TestRoundTrip16TruncatesToSixteenBits(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "tape.img")
	img := tcimage.NewImage(geometryFor(Format16))
	img.WriteWord(0, 0, 0700000) // top three bits set; bits 16-17 are lost by 16-bit storage.
	if err := Save(path, img, Format16); err != nil {
		t.Fatalf("Save: %v", err)
	}
	reloaded, err := Load(path, Format16)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := reloaded.ReadWord(0, 0); got != 0700000&0177777 {
		t.Fatalf("got %#o want %#o", got, 0700000&0177777)
	}
}

func TestRoundTrip12Packing(t *testing.T) {
	img := writeAndReload(t, Format12)
	for i := range 20 {
		if got := img.ReadWord(0, i); got != uint32(i*37)&tcimage.WordMask {
			t.Fatalf("word %d: got %#o want %#o", i, got, uint32(i*37))
		}
	}
}

func TestDetectFormatBySize(t *testing.T) {
	if got := DetectFormat(0); got != Format18 {
		t.Fatalf("unrecognized size should default to Format18, got %d", got)
	}
	compactBytes := int64(geometryFor(Format12).Capacity() / 2 * halfwordsPerNative12 * 2)
	if got := DetectFormat(compactBytes); got != Format12 {
		t.Fatalf("got %d want Format12", got)
	}
	standardBytes := int64(tcimage.StandardGeometry.Capacity() * 2)
	if got := DetectFormat(standardBytes); got != Format16 {
		t.Fatalf("got %d want Format16", got)
	}
}
