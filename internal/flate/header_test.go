package flate

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadHeaderRejectsNonGzip(t *testing.T) {
	r := NewBitReader(bytes.NewReader([]byte{5, 6, 7, 0, 1, 2, 3, 4}))
	_, err := ReadHeader(r)
	assert.ErrorIs(t, err, ErrNotGzip)
}

func TestReadHeaderRejectsNonDeflate(t *testing.T) {
	r := NewBitReader(bytes.NewReader([]byte{0x1f, 0x8b, 4}))
	_, err := ReadHeader(r)
	assert.ErrorIs(t, err, ErrInvalidCompressionMethod)
}

func minimalHeader(flg byte) []byte {
	buf := []byte{0x1f, 0x8b, 8, flg, 0, 0, 0, 0, 0, 3}
	return buf
}

func TestReadHeaderMinimal(t *testing.T) {
	r := NewBitReader(bytes.NewReader(minimalHeader(0)))
	h, err := ReadHeader(r)
	require.NoError(t, err)
	assert.False(t, h.Text)
	assert.False(t, h.HasName)
	assert.False(t, h.HasComment)
	assert.Equal(t, OSUnix, h.OS)
	assert.Equal(t, ExtraUnknown, h.Extra)
}

func TestReadHeaderNameAndComment(t *testing.T) {
	buf := minimalHeader(flagFNAME | flagFCOMMENT)
	buf = append(buf, []byte("filename\x00")...)
	buf = append(buf, []byte("a comment\x00")...)
	r := NewBitReader(bytes.NewReader(buf))
	h, err := ReadHeader(r)
	require.NoError(t, err)
	assert.Equal(t, "filename", h.Name)
	assert.Equal(t, "a comment", h.Comment)
}

func TestReadHeaderFEXTRASkipped(t *testing.T) {
	buf := minimalHeader(flagFEXTRA)
	buf = append(buf, 3, 0) // xlen=3 LE
	buf = append(buf, 1, 2, 3)
	buf = append(buf, []byte("tail\x00")...) // sentinel bytes after extras ignored
	r := NewBitReader(bytes.NewReader(buf))
	h, err := ReadHeader(r)
	require.NoError(t, err)
	assert.False(t, h.HasName)
}

func TestReadHeaderFHCRCValidates(t *testing.T) {
	buf := minimalHeader(flagFHCRC)
	r := NewBitReader(bytes.NewReader(buf))
	// compute the expected header CRC independently using the same scope.
	cr := NewBitReader(bytes.NewReader(buf))
	cr.BeginCRC()
	for range buf {
		_, err := cr.ReadU8()
		require.NoError(t, err)
	}
	want := uint16(cr.EndCRC())

	full := append(append([]byte{}, buf...), byte(want), byte(want>>8))
	r = NewBitReader(bytes.NewReader(full))
	h, err := ReadHeader(r)
	require.NoError(t, err)
	assert.False(t, h.HasName)
}

func TestReadHeaderFHCRCMismatch(t *testing.T) {
	buf := minimalHeader(flagFHCRC)
	full := append(append([]byte{}, buf...), 0xff, 0xff)
	r := NewBitReader(bytes.NewReader(full))
	_, err := ReadHeader(r)
	var crcErr *HeaderCRCError
	assert.ErrorAs(t, err, &crcErr)
}
