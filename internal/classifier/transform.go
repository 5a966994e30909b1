package classifier

import (
	"fmt"
	"strings"

	"cypherify/internal/classical"
)

// Direction selects encryption or decryption for a keyed transform.
type Direction int

const (
	Encrypt Direction = iota
	Decrypt
)

func (d Direction) String() string {
	if d == Decrypt {
		return "decrypt"
	}
	return "encrypt"
}

// MarshalText implements encoding.TextMarshaler.
func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// ParseDirection parses "encrypt" or "decrypt".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "encrypt", "enc", "e":
		return Encrypt, nil
	case "decrypt", "dec", "d":
		return Decrypt, nil
	default:
		return 0, fmt.Errorf("classifier: unknown direction %q", s)
	}
}

// TransformResult is the output of an explicit keyed transform.
type TransformResult struct {
	Family    classical.Family `json:"family"`
	Direction Direction        `json:"direction"`
	Key       string           `json:"key,omitempty"`
	Input     string           `json:"input"`
	Output    string           `json:"output"`
}

// Transform applies family's keyed encryption or decryption directly,
// bypassing classification. An unknown family name fails with
// classical.ErrUnsupportedFamily; a malformed key with
// classical.ErrInvalidKey or classical.ErrNonInvertibleKey.
func (c *Classifier) Transform(family string, dir Direction, text, key string) (*TransformResult, error) {
	res, err := c.transform(family, dir, text, key)
	if c.metrics != nil {
		c.metrics.TransformsTotal.Inc()
		if err != nil {
			c.metrics.ErrorsTotal.Inc()
		}
	}
	if err != nil {
		c.logger.Debug("transform rejected", "family", family, "direction", dir.String(), "error", err)
		return nil, err
	}
	return res, nil
}

func (c *Classifier) transform(family string, dir Direction, text, key string) (*TransformResult, error) {
	m, err := c.registry.LookupName(family)
	if err != nil {
		return nil, err
	}
	k, err := m.ParseKey(key)
	if err != nil {
		return nil, err
	}

	var out string
	if dir == Decrypt {
		out, err = m.Decrypt(text, k)
	} else {
		out, err = m.Encrypt(text, k)
	}
	if err != nil {
		return nil, err
	}

	res := &TransformResult{
		Family:    m.Family(),
		Direction: dir,
		Input:     text,
		Output:    out,
	}
	if k != nil {
		res.Key = k.String()
	}
	return res, nil
}
