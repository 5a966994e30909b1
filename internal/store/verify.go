package store

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// InputDigest returns the digest stored for an input so that repeated
// inputs can be found without keeping them.
func InputDigest(kind Kind, input string) [32]byte {
	h := sha256.New()
	writeString(h, string(kind))
	writeString(h, input)
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// VerifyRecord checks that a record matches its stored digest.
func VerifyRecord(r *Record) error {
	computed := computeRecordDigest(r)
	if !bytes.Equal(computed[:], r.Digest[:]) {
		return fmt.Errorf("digest mismatch for analysis %s: computed %x, stored %x", r.ID, computed, r.Digest)
	}
	return nil
}

// VerifyAll checks every stored record and returns the IDs of those that
// no longer match their digest.
func (s *Store) VerifyAll(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM analyses ORDER BY created_ns ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all analyses: %w", err)
	}
	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	var corrupted []string
	for i := range records {
		if err := VerifyRecord(&records[i]); err != nil {
			corrupted = append(corrupted, records[i].ID)
		}
	}
	return corrupted, nil
}

func writeString(h io.Writer, s string) {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(s)))
	h.Write(lenBuf[:])
	h.Write([]byte(s))
}

func writeUint64(h io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

// computeRecordDigest hashes every stored field of a record:
// H(id || request_id || kind || created_ns || input_digest || preview ||
// family || key || confidence || classified || result). Strings are
// length-prefixed.
func computeRecordDigest(r *Record) [32]byte {
	h := sha256.New()
	writeString(h, r.ID)
	writeString(h, r.RequestID)
	writeString(h, string(r.Kind))
	writeUint64(h, uint64(r.CreatedAt.UnixNano()))
	h.Write(r.InputDigest[:])
	writeString(h, r.Preview)
	writeString(h, r.Family)
	writeString(h, r.Key)
	writeUint64(h, math.Float64bits(r.Confidence))
	if r.Classified {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	writeString(h, string(r.Result))

	var result [32]byte
	copy(result[:], h.Sum(nil))
	return result
}
