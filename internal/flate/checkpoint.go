package flate

// BlockType names the three DEFLATE block encodings a checkpoint records.
type BlockType string

const (
	BlockStored  BlockType = "nocompression"
	BlockFixed   BlockType = "fixed"
	BlockDynamic BlockType = "dynamic"
)

// Checkpointer receives block-boundary notifications from the Deflator, in
// the fixed order on_block_start -> set_block_type -> on_block_data_start
// -> on_block_end, once per DEFLATE block. Implementations are free to
// persist these however they like; the decoder never requires persistence
// to have completed before continuing. The sqlite-backed sink lives in
// store/sqlitestore; MemCheckpointer below is the in-memory substitute.
type Checkpointer interface {
	// OnBlockStart is called at the first bit of the block header.
	// bytePos/bitPos are the reader's raw position; implementations apply
	// AdjustBytePos to recover the byte the header actually starts in.
	// toByte is the total uncompressed-output byte count at block start.
	OnBlockStart(bytePos uint64, bitPos uint8, toByte uint64)

	// SetBlockType is called after OnBlockStart, before OnBlockDataStart.
	SetBlockType(bt BlockType)

	// OnBlockDataStart is called at the first bit of the block body (after
	// any block-type-specific header), carrying the full 32768-byte
	// normalized window snapshot.
	OnBlockDataStart(bytePos uint64, bitPos uint8, window []byte)

	// OnBlockEnd is called immediately after the end-of-block signal.
	OnBlockEnd(bytePos uint64, bitPos uint8, toByte uint64, crc32 uint32)
}

// AdjustBytePos applies the canonical "current byte" rule: because the bit
// reader pre-advances bytePos as soon as any bit of a byte is consumed, the
// byte actually in progress is bytePos-1 whenever bitPos > 0. The decoder
// passes raw (bytePos, bitPos) to the Checkpointer; implementations apply
// this adjustment themselves.
func AdjustBytePos(bytePos uint64, bitPos uint8) uint64 {
	if bitPos > 0 {
		return bytePos - 1
	}
	return bytePos
}

// Record is the fully-assembled, read-only view of one emitted checkpoint,
// matching the HuffmanBlock row shape. It is not itself part of the
// Checkpointer interface: a sink implementation builds one of these (or its
// own equivalent) from the four notification calls.
type Record struct {
	FromByte      uint64
	FromBit       uint8
	ToByte        uint64
	BlockType     BlockType
	HeaderLenBits uint64
	BlockLenBits  uint64
	Len           uint64
	CRC32         uint32
	Data          [windowSize]byte
}

// MemCheckpointer is an in-memory Checkpointer for testing without a real
// sink.
type MemCheckpointer struct {
	Records []Record

	startByte uint64
	startBit  uint8
	startTo   uint64
}

// NewMemCheckpointer returns an empty in-memory checkpointer.
func NewMemCheckpointer() *MemCheckpointer {
	return &MemCheckpointer{}
}

func (m *MemCheckpointer) OnBlockStart(bytePos uint64, bitPos uint8, toByte uint64) {
	start := AdjustBytePos(bytePos, bitPos)
	m.startByte = start
	m.startBit = bitPos
	m.startTo = toByte
	m.Records = append(m.Records, Record{
		FromByte: start,
		FromBit:  bitPos,
		ToByte:   toByte,
	})
}

func (m *MemCheckpointer) SetBlockType(bt BlockType) {
	m.current().BlockType = bt
}

func (m *MemCheckpointer) OnBlockDataStart(bytePos uint64, bitPos uint8, window []byte) {
	bodyByte := AdjustBytePos(bytePos, bitPos)
	rec := m.current()
	rec.HeaderLenBits = BitDistance(m.startByte, m.startBit, bodyByte, bitPos)
	copy(rec.Data[:], window)
}

func (m *MemCheckpointer) OnBlockEnd(bytePos uint64, bitPos uint8, toByte uint64, crc32 uint32) {
	endByte := AdjustBytePos(bytePos, bitPos)
	rec := m.current()
	rec.BlockLenBits = BitDistance(m.startByte, m.startBit, endByte, bitPos)
	rec.Len = toByte - m.startTo
	rec.CRC32 = crc32
}

func (m *MemCheckpointer) current() *Record {
	return &m.Records[len(m.Records)-1]
}

// BitDistance computes (toByte-fromByte)*8 + (toBit-fromBit), the distance
// in bits between two adjusted reader positions. Both header_len_bits and
// block_len_bits in a checkpoint record are this measure from block start.
func BitDistance(fromByte uint64, fromBit uint8, toByte uint64, toBit uint8) uint64 {
	return uint64(int64(toByte-fromByte)*8 + int64(toBit) - int64(fromBit))
}
