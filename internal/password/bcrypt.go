package password

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// MeasureHashRate times bcrypt password checks at the given cost on this
// machine for roughly d and returns checks per second. It is the rate an
// attacker with this hardware gets against a bcrypt-protected password,
// and can be fed to NewEstimator in place of the GPU default.
func MeasureHashRate(ctx context.Context, cost int, d time.Duration) (float64, error) {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return 0, fmt.Errorf("password: bcrypt cost %d outside [%d, %d]", cost, bcrypt.MinCost, bcrypt.MaxCost)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse battery staple"), cost)
	if err != nil {
		return 0, fmt.Errorf("password: bcrypt: %w", err)
	}
	guess := []byte("Tr0ub4dor&3")

	start := time.Now()
	n := 0
	for {
		// A mismatch is the expected outcome of a guess.
		_ = bcrypt.CompareHashAndPassword(hash, guess)
		n++
		if time.Since(start) >= d {
			break
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
	}
	return float64(n) / time.Since(start).Seconds(), nil
}
