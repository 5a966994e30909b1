package classical

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"cypherify/internal/textstats"
)

// RailFenceKey is the number of rails.
type RailFenceKey int

func (k RailFenceKey) Family() Family { return FamilyRailFence }
func (k RailFenceKey) String() string { return strconv.Itoa(int(k)) }

// RailFence is the zigzag transposition cipher. Only alphabet letters are
// transposed; spacing and punctuation keep their positions.
type RailFence struct {
	base
}

// NewRailFence returns the rail fence model.
func NewRailFence(s Settings) *RailFence {
	return &RailFence{base: newBase(s)}
}

func (m *RailFence) Family() Family { return FamilyRailFence }

func (m *RailFence) KeySpace() KeySpace {
	o := m.settings.RailFence
	return KeySpace{
		Description: fmt.Sprintf("%d..%d rails", o.MinRails, o.MaxRails),
		Log:         math.Log(float64(max(o.MaxRails-o.MinRails+1, 1))),
	}
}

func (m *RailFence) ParseKey(s string) (Key, error) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 2 {
		return nil, fmt.Errorf("%w: rail count %q must be a number of at least 2", ErrInvalidKey, s)
	}
	return RailFenceKey(n), nil
}

func (m *RailFence) Encrypt(plaintext string, key Key) (string, error) {
	k, err := m.checkKey(key)
	if err != nil {
		return "", err
	}
	t := textstats.Normalize(plaintext, m.alphabet)
	order := railOrder(t.Len(), int(k))
	out := make([]int, t.Len())
	for j, i := range order {
		out[j] = t.Letters()[i]
	}
	return t.Restore(out), nil
}

func (m *RailFence) Decrypt(ciphertext string, key Key) (string, error) {
	k, err := m.checkKey(key)
	if err != nil {
		return "", err
	}
	t := textstats.Normalize(ciphertext, m.alphabet)
	return t.Restore(railDecrypt(t.Letters(), int(k))), nil
}

func (m *RailFence) checkKey(key Key) (RailFenceKey, error) {
	k, err := keyAs[RailFenceKey](key, FamilyRailFence)
	if err == nil && k < 2 {
		err = fmt.Errorf("%w: need at least 2 rails", ErrInvalidKey)
	}
	return k, err
}

// Recover tries every configured rail count the text is long enough for.
func (m *RailFence) Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error) {
	if text.Len() == 0 {
		return m.empty(FamilyRailFence, text, nil), nil
	}
	o := m.settings.RailFence
	hi := min(o.MaxRails, text.Len()-1)
	ks := m.KeySpace().Log
	var cands []CandidateResult
	for r := max(o.MinRails, 2); r <= hi; r++ {
		plain := railDecrypt(text.Letters(), r)
		cands = append(cands, m.candidate(FamilyRailFence, RailFenceKey(r), plain, text.Restore(plain), ks,
			"Letter frequencies are untouched by transposition; only the order changes",
			fmt.Sprintf("Rails %d: rebuild the zigzag and read it row by row", r)))
	}
	return m.truncate(cands), nil
}

// railOrder lists plaintext positions in ciphertext order.
func railOrder(n, rails int) []int {
	if rails < 2 || rails >= n {
		order := make([]int, n)
		for i := range order {
			order[i] = i
		}
		return order
	}
	rows := make([][]int, rails)
	cycle := 2 * (rails - 1)
	for i := 0; i < n; i++ {
		p := i % cycle
		if p >= rails {
			p = cycle - p
		}
		rows[p] = append(rows[p], i)
	}
	order := make([]int, 0, n)
	for _, row := range rows {
		order = append(order, row...)
	}
	return order
}

func railDecrypt(letters []int, rails int) []int {
	order := railOrder(len(letters), rails)
	out := make([]int, len(letters))
	for j, i := range order {
		out[i] = letters[j]
	}
	return out
}
