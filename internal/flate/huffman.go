package flate

// MaxHuffmanBits is the maximum canonical Huffman code length RFC 1951
// permits.
const MaxHuffmanBits = 15

// huffmanEntry pairs a decoded symbol with the code length that produced
// it, so a table can distinguish two codes that share a numeric value at
// different lengths (e.g. 0b010 at length 3 vs 0b10 at length 2).
type huffmanEntry struct {
	symbol uint16
	length uint8
}

// HuffmanTree is a canonical Huffman decode table keyed by (code length,
// code value), per RFC 1951 §3.2.2. Keying by the pair rather than the code
// value alone lets bit-at-a-time decoding tell a 2-bit 0b10 apart from a
// 3-bit 0b010.
type HuffmanTree struct {
	tables [MaxHuffmanBits + 1]map[uint16]uint16
}

// NewHuffmanTree builds a canonical Huffman tree from a per-symbol
// code-length vector. lengths[i] is the bit-length of symbol i, or 0 if
// symbol i has no code.
func NewHuffmanTree(lengths []uint8) *HuffmanTree {
	var blCount [MaxHuffmanBits + 1]uint16
	for _, l := range lengths {
		if l > 0 {
			blCount[l]++
		}
	}

	var nextCode [MaxHuffmanBits + 1]uint16
	var code uint16
	for bits := 1; bits <= MaxHuffmanBits; bits++ {
		code = (code + blCount[bits-1]) << 1
		nextCode[bits] = code
	}

	t := &HuffmanTree{}
	for i, l := range lengths {
		if l == 0 {
			continue
		}
		c := nextCode[l]
		nextCode[l]++
		if t.tables[l] == nil {
			t.tables[l] = make(map[uint16]uint16)
		}
		t.tables[l][c] = uint16(i)
	}
	return t
}

// Decode returns the symbol for (code, bits) and true, or (0, false) if no
// entry at that exact length matches that code value.
func (t *HuffmanTree) Decode(code uint16, bits uint8) (uint16, bool) {
	if bits == 0 || int(bits) > MaxHuffmanBits {
		return 0, false
	}
	m := t.tables[bits]
	if m == nil {
		return 0, false
	}
	sym, ok := m[code]
	return sym, ok
}

// FixedLiteralTree returns the preset fixed literal/length table: symbols
// 0-143 -> 8 bits, 144-255 -> 9 bits, 256-279 -> 7 bits, 280-287 -> 8 bits.
func FixedLiteralTree() *HuffmanTree {
	lengths := make([]uint8, 288)
	for i := 0; i <= 143; i++ {
		lengths[i] = 8
	}
	for i := 144; i <= 255; i++ {
		lengths[i] = 9
	}
	for i := 256; i <= 279; i++ {
		lengths[i] = 7
	}
	for i := 280; i <= 287; i++ {
		lengths[i] = 8
	}
	return NewHuffmanTree(lengths)
}

// FixedDistanceTree returns the preset fixed distance table: 31 entries
// (symbol 30 unused by DEFLATE but present for the canonical construction),
// all at length 5.
func FixedDistanceTree() *HuffmanTree {
	lengths := make([]uint8, 31)
	for i := range lengths {
		lengths[i] = 5
	}
	return NewHuffmanTree(lengths)
}

// codeLengthOrder is the permutation in which HCLEN code-length-code
// lengths are transmitted in a dynamic block header.
var codeLengthOrder = [19]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// baseLengths and lengthExtraBits decode length symbols 257-285 (index 0-28).
var baseLengths = [29]uint16{3, 4, 5, 6, 7, 8, 9, 10, 11, 13, 15, 17, 19, 23, 27, 31, 35, 43, 51, 59, 67, 83, 99, 115, 131, 163, 195, 227, 258}
var lengthExtraBits = [29]uint8{0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2, 3, 3, 3, 3, 4, 4, 4, 4, 5, 5, 5, 5, 0}

// baseDists and distExtraBits decode distance symbols 0-29.
var baseDists = [30]uint16{1, 2, 3, 4, 5, 7, 9, 13, 17, 25, 33, 49, 65, 97, 129, 193, 257, 385, 513, 769, 1025, 1537, 2049, 3073, 4097, 6145, 8193, 12289, 16385, 24577}
var distExtraBits = [30]uint8{0, 0, 0, 0, 1, 1, 2, 2, 3, 3, 4, 4, 5, 5, 6, 6, 7, 7, 8, 8, 9, 9, 10, 10, 11, 11, 12, 12, 13, 13}
