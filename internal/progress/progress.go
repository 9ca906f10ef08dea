// Package progress decorates a flate.Checkpointer with a terminal progress
// bar. Block-start notifications carry the compressed-input position, which
// is exactly the measure a bar over the input file size wants.
package progress

import (
	"io"

	"github.com/schollz/progressbar/v2"

	"github.com/deflatekit/ckgzip/internal/flate"
)

// Bar forwards every notification to the wrapped Checkpointer and advances
// the bar by the compressed bytes consumed since the previous block.
type Bar struct {
	next flate.Checkpointer
	bar  *progressbar.ProgressBar
	last uint64
}

// New wraps next with a bar sized to the compressed input length, rendered
// to w.
func New(next flate.Checkpointer, size int64, w io.Writer) *Bar {
	bar := progressbar.NewOptions64(size,
		progressbar.OptionSetBytes64(size),
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetPredictTime(true))
	bar.RenderBlank()
	return &Bar{next: next, bar: bar}
}

func (p *Bar) OnBlockStart(bytePos uint64, bitPos uint8, toByte uint64) {
	pos := flate.AdjustBytePos(bytePos, bitPos)
	if pos > p.last {
		p.bar.Add(int(pos - p.last))
		p.last = pos
	}
	p.next.OnBlockStart(bytePos, bitPos, toByte)
}

func (p *Bar) SetBlockType(bt flate.BlockType) {
	p.next.SetBlockType(bt)
}

func (p *Bar) OnBlockDataStart(bytePos uint64, bitPos uint8, window []byte) {
	p.next.OnBlockDataStart(bytePos, bitPos, window)
}

func (p *Bar) OnBlockEnd(bytePos uint64, bitPos uint8, toByte uint64, crc32 uint32) {
	p.next.OnBlockEnd(bytePos, bitPos, toByte, crc32)
}

// Finish fills the bar to completion once decoding ends; the trailer bytes
// of the last member arrive after the final block notification.
func (p *Bar) Finish() {
	p.bar.Finish()
}
