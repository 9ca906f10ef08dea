package flate

import (
	"errors"
	"io"
)

type stateKind int

const (
	stGzipHeader stateKind = iota
	stBlockHeader
	stPrepareStored
	stStoredBody
	stPrepareDynamic
	stDecodeBody
	stExpandBackref
	stCheckFinal
	stGzipFooter
	stDone
)

// Decompressor is the pull-based DEFLATE/GZIP state machine (C5). It
// orchestrates the bit reader, the sliding window, and the Huffman tables,
// emitting decoded bytes into the caller's buffer and notifying a
// Checkpointer at every block boundary.
type Decompressor struct {
	br           *BitReader
	win          *Window
	checkpointer Checkpointer

	header    Header
	gotHeader bool

	state stateKind

	isFinal bool

	storedRemaining int

	litTree  *HuffmanTree
	distTree *HuffmanTree

	backrefCursor int
	backrefLength int

	err error
}

// NewDecompressor creates a Decompressor reading compressed bytes from r
// and notifying cp at block boundaries. cp may be a MemCheckpointer for
// tests, or any other Checkpointer implementation (e.g.
// store/sqlitestore.Store).
func NewDecompressor(r io.Reader, cp Checkpointer) *Decompressor {
	return &Decompressor{
		br:           NewBitReader(r),
		win:          NewWindow(),
		checkpointer: cp,
		state:        stGzipHeader,
	}
}

// Header returns the most recently parsed GZIP member header. Valid only
// after at least one successful Read call following a GzipHeader
// transition.
func (d *Decompressor) Header() (Header, bool) {
	return d.header, d.gotHeader
}

// Read runs state transitions until either at least one output byte has
// been written, or the decoder reaches its terminal state, at which point
// it returns (0, io.EOF).
func (d *Decompressor) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if len(p) == 0 {
		return 0, nil
	}
	n := 0
	for n == 0 {
		switch d.state {
		case stGzipHeader:
			if err := d.stepGzipHeader(); err != nil {
				return d.fail(err)
			}
			if d.state == stDone {
				return 0, io.EOF
			}
		case stBlockHeader:
			if err := d.stepBlockHeader(); err != nil {
				return d.fail(err)
			}
		case stPrepareStored:
			if err := d.stepPrepareStored(); err != nil {
				return d.fail(err)
			}
		case stStoredBody:
			written, err := d.stepStoredBody(p[n:])
			n += written
			if err != nil {
				return d.fail(err)
			}
		case stPrepareDynamic:
			if err := d.stepPrepareDynamic(); err != nil {
				return d.fail(err)
			}
		case stDecodeBody:
			written, err := d.stepDecodeBody(p[n:])
			n += written
			if err != nil {
				return d.fail(err)
			}
		case stExpandBackref:
			written := d.stepExpandBackref(p[n:])
			n += written
		case stCheckFinal:
			if d.isFinal {
				d.state = stGzipFooter
			} else {
				d.state = stBlockHeader
			}
		case stGzipFooter:
			if err := d.stepGzipFooter(); err != nil {
				return d.fail(err)
			}
		case stDone:
			return n, io.EOF
		}
	}
	return n, nil
}

func (d *Decompressor) fail(err error) (int, error) {
	// a byte-granular read that hit clean EOF anywhere outside the first
	// gzip magic byte means the stream was truncated.
	if errors.Is(err, ErrEndOfInput) {
		err = ErrUnexpectedEndOfInput
	}
	d.err = err
	d.state = stDone
	return 0, err
}

func (d *Decompressor) stepGzipHeader() error {
	h, err := ReadHeader(d.br)
	if err != nil {
		if errors.Is(err, ErrExpectedEndOfInput) {
			d.state = stDone
			return nil
		}
		return err
	}
	d.header = h
	d.gotHeader = true
	d.state = stBlockHeader
	return nil
}

// currentPos returns the bit reader's raw (unadjusted) byte/bit position.
// Recovering the checkpoint-facing "current byte" via AdjustBytePos is the
// Checkpointer's job.
func (d *Decompressor) currentPos() (byte uint64, bit uint8) {
	return d.br.BytePos(), d.br.BitPos()
}

func (d *Decompressor) stepBlockHeader() error {
	startByte, startBit := d.currentPos()
	toByte := d.win.TotalBytes()
	d.checkpointer.OnBlockStart(startByte, startBit, toByte)

	final, err := d.br.ReadBit()
	if err != nil {
		return err
	}
	d.isFinal = final == 1

	btype, err := d.br.ReadTwoBits()
	if err != nil {
		return err
	}

	switch btype {
	case 0:
		d.checkpointer.SetBlockType(BlockStored)
		d.state = stPrepareStored
	case 1:
		d.checkpointer.SetBlockType(BlockFixed)
		d.litTree = FixedLiteralTree()
		d.distTree = FixedDistanceTree()
		bodyByte, bodyBit := d.currentPos()
		d.checkpointer.OnBlockDataStart(bodyByte, bodyBit, d.win.NormalizedSnapshot())
		d.state = stDecodeBody
	case 2:
		d.checkpointer.SetBlockType(BlockDynamic)
		d.state = stPrepareDynamic
	default:
		return ErrInvalidBlockType
	}
	return nil
}

func (d *Decompressor) stepPrepareStored() error {
	d.br.DiscardUntilNextByte()
	length, err := d.br.ReadU16LE()
	if err != nil {
		return err
	}
	nlen, err := d.br.ReadU16LE()
	if err != nil {
		return err
	}
	if nlen != ^length {
		return &StoredHeaderError{Expected: ^length, Found: nlen}
	}
	bodyByte, bodyBit := d.currentPos()
	d.checkpointer.OnBlockDataStart(bodyByte, bodyBit, d.win.NormalizedSnapshot())
	d.storedRemaining = int(length)
	d.state = stStoredBody
	return nil
}

func (d *Decompressor) stepStoredBody(out []byte) (int, error) {
	take := d.storedRemaining
	if take > len(out) {
		take = len(out)
	}
	for i := 0; i < take; i++ {
		b, err := d.br.ReadU8()
		if err != nil {
			return i, err
		}
		d.win.Push(b)
		out[i] = b
	}
	d.storedRemaining -= take
	if d.storedRemaining == 0 {
		bytePos, bitPos := d.currentPos()
		d.checkpointer.OnBlockEnd(bytePos, bitPos, d.win.TotalBytes(), d.win.BlockCRC32())
		d.state = stCheckFinal
	}
	return take, nil
}

func (d *Decompressor) stepPrepareDynamic() error {
	hlit, err := d.br.ReadNBitsLE(5)
	if err != nil {
		return err
	}
	hdist, err := d.br.ReadNBitsLE(5)
	if err != nil {
		return err
	}
	hclen, err := d.br.ReadNBitsLE(4)
	if err != nil {
		return err
	}
	nLit := int(hlit) + 257
	nDist := int(hdist) + 1
	nCLen := int(hclen) + 4

	clLengths := make([]uint8, 19)
	for i := 0; i < nCLen; i++ {
		v, err := d.br.ReadNBitsLE(3)
		if err != nil {
			return err
		}
		clLengths[codeLengthOrder[i]] = uint8(v)
	}
	clTree := NewHuffmanTree(clLengths)

	total := nLit + nDist
	combined := make([]uint8, 0, total)
	for len(combined) < total {
		sym, err := d.decodeSymbol(clTree)
		if err != nil {
			return err
		}
		switch {
		case sym <= 15:
			combined = append(combined, uint8(sym))
		case sym == 16:
			if len(combined) == 0 {
				return ErrInvalidDynamicCodeLength
			}
			extra, err := d.br.ReadNBitsLE(2)
			if err != nil {
				return err
			}
			prev := combined[len(combined)-1]
			for i := 0; i < 3+int(extra); i++ {
				combined = append(combined, prev)
			}
		case sym == 17:
			extra, err := d.br.ReadNBitsLE(3)
			if err != nil {
				return err
			}
			for i := 0; i < 3+int(extra); i++ {
				combined = append(combined, 0)
			}
		case sym == 18:
			extra, err := d.br.ReadNBitsLE(7)
			if err != nil {
				return err
			}
			for i := 0; i < 11+int(extra); i++ {
				combined = append(combined, 0)
			}
		}
	}

	litLengths := combined[:nLit]
	distLengths := combined[nLit : nLit+nDist]
	d.litTree = NewHuffmanTree(litLengths)
	d.distTree = NewHuffmanTree(distLengths)

	bodyByte, bodyBit := d.currentPos()
	d.checkpointer.OnBlockDataStart(bodyByte, bodyBit, d.win.NormalizedSnapshot())
	d.state = stDecodeBody
	return nil
}

// decodeSymbol reads one Huffman-coded symbol bit by bit. Codes arrive
// MSB-first while the reader yields LSB-first bits, so the accumulator
// shifts left and ORs each new bit in.
func (d *Decompressor) decodeSymbol(t *HuffmanTree) (uint16, error) {
	var acc uint16
	var length uint8
	for length < MaxHuffmanBits {
		bit, err := d.br.ReadBit()
		if err != nil {
			return 0, err
		}
		acc = (acc << 1) | uint16(bit)
		length++
		if sym, ok := t.Decode(acc, length); ok {
			return sym, nil
		}
	}
	bytePos, bitPos := d.currentPos()
	return 0, &HuffmanCodeError{Code: acc, BytePos: bytePos, BitPos: bitPos}
}

func (d *Decompressor) stepDecodeBody(out []byte) (int, error) {
	n := 0
	for n < len(out) {
		sym, err := d.decodeSymbol(d.litTree)
		if err != nil {
			return n, err
		}
		switch {
		case sym < 256:
			d.win.Push(byte(sym))
			out[n] = byte(sym)
			n++
		case sym == 256:
			bytePos, bitPos := d.currentPos()
			d.checkpointer.OnBlockEnd(bytePos, bitPos, d.win.TotalBytes(), d.win.BlockCRC32())
			d.state = stCheckFinal
			return n, nil
		default:
			i := int(sym) - 257
			if i < 0 || i >= len(baseLengths) {
				bytePos, bitPos := d.currentPos()
				return n, &HuffmanCodeError{Code: sym, BytePos: bytePos, BitPos: bitPos}
			}
			extra, err := d.br.ReadNBitsLE(int(lengthExtraBits[i]))
			if err != nil {
				return n, err
			}
			length := int(baseLengths[i]) + int(extra)

			distSym, err := d.decodeSymbol(d.distTree)
			if err != nil {
				return n, err
			}
			if int(distSym) >= len(baseDists) {
				return n, ErrInvalidDistance
			}
			distExtra, err := d.br.ReadNBitsLE(int(distExtraBits[distSym]))
			if err != nil {
				return n, err
			}
			distance := int(baseDists[distSym]) + int(distExtra)

			if err := d.win.PushFromBuffer(distance, length); err != nil {
				return n, err
			}
			d.backrefCursor = 0
			d.backrefLength = length
			d.state = stExpandBackref
			return n, nil
		}
	}
	return n, nil
}

func (d *Decompressor) stepExpandBackref(out []byte) int {
	remaining := d.backrefLength - d.backrefCursor
	take := remaining
	if take > len(out) {
		take = len(out)
	}
	window := d.win.Head(d.backrefLength)
	copy(out[:take], window[d.backrefCursor:d.backrefCursor+take])
	d.backrefCursor += take
	if d.backrefCursor == d.backrefLength {
		d.state = stDecodeBody
	}
	return take
}

func (d *Decompressor) stepGzipFooter() error {
	d.br.DiscardUntilNextByte()
	crc, err := d.br.ReadU32LE()
	if err != nil {
		return err
	}
	memberCRC := d.win.MemberCRC32()
	if crc != memberCRC {
		return &GzipCRCError{Expected: crc, Found: memberCRC}
	}
	isize, err := d.br.ReadU32LE()
	if err != nil {
		return err
	}
	sinceReset := uint32(d.win.BytesSinceReset())
	if isize != sinceReset {
		return &GzipISizeError{Expected: isize, Found: sinceReset}
	}
	d.state = stGzipHeader
	return nil
}
