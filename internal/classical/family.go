// Package classical implements the classical cipher families known to
// cypherify. Each family provides keyed encryption and decryption plus a
// key recovery search that ranks candidate plaintexts by how closely they
// resemble the reference language.
package classical

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"cypherify/internal/textstats"
)

// Errors returned by cipher models.
var (
	ErrUnsupportedFamily = errors.New("classical: unsupported cipher family")
	ErrInvalidKey        = errors.New("classical: invalid key")
	ErrNonInvertibleKey  = errors.New("classical: key is not invertible")
	ErrInvalidInput      = errors.New("classical: input is not valid for this family")
)

// Family identifies a cipher family. The numeric order is the simplicity
// order used to break ranking ties.
type Family int

const (
	FamilyShift Family = iota
	FamilyRotN
	FamilyAffine
	FamilyVigenere
	FamilySubstitution
	FamilyReverse
	FamilyRailFence
	FamilyA1Z26
	FamilyMorse
	FamilyBacon
	// FamilyUnclassified is the pseudo-family reported when no family
	// explains the input.
	FamilyUnclassified
)

var familyNames = map[Family]string{
	FamilyShift:        "shift",
	FamilyRotN:         "rot-n",
	FamilyAffine:       "affine",
	FamilyVigenere:     "vigenere",
	FamilySubstitution: "substitution",
	FamilyReverse:      "reverse",
	FamilyRailFence:    "rail-fence",
	FamilyA1Z26:        "a1z26",
	FamilyMorse:        "morse",
	FamilyBacon:        "bacon",
	FamilyUnclassified: "unclassified",
}

var familyAliases = map[string]Family{
	"caesar":     FamilyShift,
	"rot13":      FamilyShift,
	"rot":        FamilyRotN,
	"rot47":      FamilyRotN,
	"railfence":  FamilyRailFence,
	"rail_fence": FamilyRailFence,
	"mono":       FamilySubstitution,
	"reversed":   FamilyReverse,
	"baconian":   FamilyBacon,
}

// String returns the canonical family name.
func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("family(%d)", int(f))
}

// MarshalText implements encoding.TextMarshaler.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Family) UnmarshalText(b []byte) error {
	parsed, err := ParseFamily(string(b))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// ParseFamily resolves a family name or common alias. The unclassified
// pseudo-family is not a selectable family.
func ParseFamily(name string) (Family, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for f, n := range familyNames {
		if n == name && f != FamilyUnclassified {
			return f, nil
		}
	}
	if f, ok := familyAliases[name]; ok {
		return f, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFamily, name)
}

// Key is a family-specific key.
type Key interface {
	Family() Family
	String() string
}

// KeySpace describes the keys a family can use.
type KeySpace struct {
	Description string `json:"description"`
	// Log is the natural logarithm of the number of keys.
	Log float64 `json:"log_size"`
}

// CandidateResult is one candidate decryption produced by a key search.
type CandidateResult struct {
	Family     Family               `json:"family"`
	Key        Key                  `json:"-"`
	KeyText    string               `json:"key,omitempty"`
	Plaintext  string               `json:"plaintext"`
	Confidence float64              `json:"confidence"`
	Score      float64              `json:"score"`
	Converged  bool                 `json:"converged"`
	Assessment textstats.Assessment `json:"assessment"`
	Steps      []string             `json:"steps"`
}

// Model is the capability set shared by every cipher family.
type Model interface {
	Family() Family
	KeySpace() KeySpace
	ParseKey(s string) (Key, error)
	Encrypt(plaintext string, key Key) (string, error)
	Decrypt(ciphertext string, key Key) (string, error)
	// Recover searches the key space for text and returns candidates
	// best-first. Families that cannot apply to text return no candidates.
	Recover(ctx context.Context, text *textstats.Text) ([]CandidateResult, error)
}

// Less reports whether a ranks ahead of b: higher score first, then lower
// chi-squared, then the simpler family.
func Less(a, b CandidateResult) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.Assessment.ChiSquared != b.Assessment.ChiSquared {
		return a.Assessment.ChiSquared < b.Assessment.ChiSquared
	}
	return a.Family < b.Family
}

// Rank sorts candidates best-first.
func Rank(cands []CandidateResult) {
	sort.SliceStable(cands, func(i, j int) bool { return Less(cands[i], cands[j]) })
}

func keyAs[K Key](key Key, f Family) (K, error) {
	k, ok := key.(K)
	if !ok {
		var zero K
		return zero, fmt.Errorf("%w: %s expects a %s key", ErrInvalidKey, f, f)
	}
	return k, nil
}
