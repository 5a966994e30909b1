// Package store provides SQLite-backed analysis history for cypherify.
package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("store: record not found")

// Kind is the operation that produced a record.
type Kind string

const (
	// KindClassify is an automatic cipher detection.
	KindClassify Kind = "classify"
	// KindTransform is an explicit keyed encryption or decryption.
	KindTransform Kind = "transform"
	// KindPassword is a password strength estimate.
	KindPassword Kind = "password"
	// KindPIN is a PIN attack estimate.
	KindPIN Kind = "pin"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindClassify, KindTransform, KindPassword, KindPIN:
		return true
	}
	return false
}

// Record is one stored analysis.
type Record struct {
	ID        string    `json:"id"`
	RequestID string    `json:"request_id,omitempty"`
	Kind      Kind      `json:"kind"`
	CreatedAt time.Time `json:"created_at"`
	// InputDigest identifies repeated inputs without keeping them. It is
	// left zero for secrets.
	InputDigest [32]byte `json:"-"`
	// Preview is a truncated copy of the input, empty for secrets.
	Preview    string  `json:"preview,omitempty"`
	Family     string  `json:"family,omitempty"`
	Key        string  `json:"key,omitempty"`
	Confidence float64 `json:"confidence"`
	Classified bool    `json:"classified"`
	// Result is the full JSON result document.
	Result json.RawMessage `json:"result"`
	// Digest covers every field above and detects edits to the row.
	Digest [32]byte `json:"-"`
}

// Filter selects records for List. Zero fields match everything.
type Filter struct {
	Kind   Kind
	Family string
	Before time.Time
	Limit  int
}

// DefaultListLimit bounds List when Filter.Limit is zero.
const DefaultListLimit = 50

// Stats summarises the store contents.
type Stats struct {
	Total        int64            `json:"total"`
	ByKind       map[Kind]int64   `json:"by_kind"`
	ByFamily     map[string]int64 `json:"by_family"`
	Unclassified int64            `json:"unclassified"`
	Oldest       *time.Time       `json:"oldest,omitempty"`
	Newest       *time.Time       `json:"newest,omitempty"`
}
