// Copyright 2024 healer project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package prog

// magicValues are integers historically known to trigger edge cases in
// kernel argument handling: powers of two and their neighbors, sign-bit
// boundaries for common widths, and a handful of already-interesting
// small/large constants. The generator draws from this table instead of
// uniform-random integers a sizable fraction of the time (see gen.go).
var magicValues = [...]uint64{
	0,
	1,
	2,
	4,
	8,
	16,
	32,
	64,
	128,
	255,
	256,
	257,
	1024,
	4096,
	0x7f,
	0x80,
	0xff,
	0x100,
	0x7fff,
	0x8000,
	0xffff,
	0x7fffffff,
	0x80000000,
	0xffffffff,
}

// clampMagic masks a magic value down to width bytes (1, 2, 4 or 8),
// so e.g. drawing 0xffffffff for a 1-byte field still produces a value
// that fits.
func clampMagic(v uint64, width uint64) uint64 {
	switch width {
	case 1:
		return v & 0xff
	case 2:
		return v & 0xffff
	case 4:
		return v & 0xffffffff
	default:
		return v
	}
}
