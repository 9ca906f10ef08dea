// Package sqlitestore persists block-boundary checkpoints into a SQLite
// database, one HuffmanBlock row per DEFLATE block. The schema matches the
// companion random-access reader: a seek into the compressed stream picks
// the nearest preceding row and resumes from its (from_byte, from_bit)
// position with the stored 32 KiB dictionary.
package sqlitestore

import (
	"database/sql"
	"fmt"
	"os"

	_ "modernc.org/sqlite"

	"github.com/deflatekit/ckgzip/internal/flate"
)

const schema = `
CREATE TABLE IF NOT EXISTS HuffmanBlock (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_byte INTEGER NOT NULL,
	from_bit INTEGER NOT NULL,
	to_byte INTEGER NOT NULL,
	block_type TEXT NOT NULL,
	crc32 TEXT,
	len INTEGER,
	header_len_bits INTEGER,
	block_len_bits INTEGER,
	data BLOB NOT NULL
);
CREATE TABLE IF NOT EXISTS Tick (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	from_byte INTEGER NOT NULL,
	from_bit INTEGER NOT NULL,
	to_byte INTEGER NOT NULL,
	block_id INTEGER NOT NULL,
	data BLOB NOT NULL,
	FOREIGN KEY (block_id) REFERENCES HuffmanBlock (id)
);
`

const insertBlock = `
INSERT INTO HuffmanBlock
	(from_byte, from_bit, to_byte, block_type, crc32, len, header_len_bits, block_len_bits, data)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
`

// Store is a flate.Checkpointer that writes each completed block record as
// one row. The Checkpointer interface carries no error returns, so a failed
// insert is sticky: it is remembered and reported from Err and Close, and
// further notifications become no-ops.
//
// The Tick table is created but never written; mid-block checkpoints are a
// reader-side concern that has no emitter yet.
type Store struct {
	db     *sql.DB
	insert *sql.Stmt

	rec     flate.Record
	started bool
	blocks  int64
	err     error
}

// Create opens a new checkpoint database at path. The file must not already
// exist; an existing database from a previous run would silently interleave
// two streams' rows.
func Create(path string) (*Store, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("sqlitestore: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	return open(path)
}

// CreateMemory opens an in-memory checkpoint database. Useful for tests and
// for running the decoder without persisting anything.
func CreateMemory() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL; PRAGMA synchronous = OFF;` + schema); err != nil {
		db.Close()
		return nil, err
	}

	ins, err := db.Prepare(insertBlock)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db, insert: ins}, nil
}

func (s *Store) OnBlockStart(bytePos uint64, bitPos uint8, toByte uint64) {
	s.rec = flate.Record{
		FromByte: flate.AdjustBytePos(bytePos, bitPos),
		FromBit:  bitPos,
		ToByte:   toByte,
	}
	s.started = true
}

func (s *Store) SetBlockType(bt flate.BlockType) {
	s.rec.BlockType = bt
}

func (s *Store) OnBlockDataStart(bytePos uint64, bitPos uint8, window []byte) {
	body := flate.AdjustBytePos(bytePos, bitPos)
	s.rec.HeaderLenBits = flate.BitDistance(s.rec.FromByte, s.rec.FromBit, body, bitPos)
	copy(s.rec.Data[:], window)
}

func (s *Store) OnBlockEnd(bytePos uint64, bitPos uint8, toByte uint64, crc32 uint32) {
	if s.err != nil || !s.started {
		return
	}
	end := flate.AdjustBytePos(bytePos, bitPos)
	s.rec.BlockLenBits = flate.BitDistance(s.rec.FromByte, s.rec.FromBit, end, bitPos)
	s.rec.Len = toByte - s.rec.ToByte
	s.rec.CRC32 = crc32

	_, err := s.insert.Exec(
		int64(s.rec.FromByte),
		int64(s.rec.FromBit),
		int64(s.rec.ToByte),
		string(s.rec.BlockType),
		fmt.Sprintf("%x", s.rec.CRC32),
		int64(s.rec.Len),
		int64(s.rec.HeaderLenBits),
		int64(s.rec.BlockLenBits),
		s.rec.Data[:],
	)
	if err != nil {
		s.err = err
		return
	}
	s.blocks++
	s.started = false
}

// Blocks returns the number of rows written so far.
func (s *Store) Blocks() int64 {
	return s.blocks
}

// Err returns the first insert error, if any.
func (s *Store) Err() error {
	return s.err
}

// Close releases the database handle, returning any sticky insert error
// ahead of close errors.
func (s *Store) Close() error {
	s.insert.Close()
	closeErr := s.db.Close()
	if s.err != nil {
		return s.err
	}
	return closeErr
}
