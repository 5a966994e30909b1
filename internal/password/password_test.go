package password

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newEstimator(t *testing.T, rate float64) *Estimator {
	t.Helper()
	e, err := NewEstimator(rate)
	require.NoError(t, err)
	return e
}

func TestEstimateLowercaseFour(t *testing.T) {
	e := newEstimator(t, 1e9)
	est, err := e.Estimate(Policy{Lowercase: true, Length: 4})
	require.NoError(t, err)

	assert.Equal(t, "456976", est.SearchSpace.String())
	assert.Equal(t, 26, est.CharsetSize)
	assert.Less(t, est.CrackTime, time.Second)
	assert.False(t, est.Saturated)
	assert.InDelta(t, 18.80, est.Entropy, 0.01)
	assert.Equal(t, RatingVeryWeak, est.Rating)
	assert.Equal(t, "0.00 seconds", est.Human)
	assert.Equal(t, EstimateNote, est.Note)
}

func TestEstimateFullCharset(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)
	est, err := e.Estimate(Policy{Lowercase: true, Uppercase: true, Digits: true, Symbols: true, Length: 12})
	require.NoError(t, err)

	assert.Equal(t, 94, est.CharsetSize)
	assert.Equal(t, "475920314814253376475136", est.SearchSpace.String())
	assert.Equal(t, "1.5 million years", est.Human)
	assert.Equal(t, RatingExcellent, est.Rating)
	assert.Empty(t, est.Recommendations)
	assert.Contains(t, est.Summary(), "excellent")
}

func TestEstimateSaturates(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)
	est, err := e.Estimate(Policy{Lowercase: true, Uppercase: true, Digits: true, Symbols: true, Length: 64})
	require.NoError(t, err)

	assert.True(t, est.Saturated)
	assert.Equal(t, time.Duration(math.MaxInt64), est.CrackTime)
	assert.Contains(t, est.Human, "e+")
	assert.Equal(t, RatingExcellent, est.Rating)
}

func TestEstimateRatings(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)
	tests := []struct {
		policy Policy
		rating Rating
	}{
		{Policy{Lowercase: true, Length: 8}, RatingVeryWeak},
		{Policy{Lowercase: true, Uppercase: true, Length: 9}, RatingWeak},
		{Policy{Lowercase: true, Uppercase: true, Digits: true, Length: 10}, RatingGood},
		{Policy{Lowercase: true, Uppercase: true, Digits: true, Symbols: true, Length: 11}, RatingExcellent},
	}
	for _, tt := range tests {
		est, err := e.Estimate(tt.policy)
		require.NoError(t, err)
		assert.Equal(t, tt.rating, est.Rating, "%+v: %s", tt.policy, est.Human)
	}
}

func TestEstimateInvalid(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)

	_, err := e.Estimate(Policy{Length: 8})
	assert.True(t, errors.Is(err, ErrInvalidPolicy))

	_, err = e.Estimate(Policy{Digits: true, Length: -1})
	assert.True(t, errors.Is(err, ErrInvalidPolicy))

	_, err = e.Estimate(Policy{Lowercase: true, Length: 0})
	assert.True(t, errors.Is(err, ErrInvalidPolicy))

	_, err = e.EstimatePassword("")
	assert.True(t, errors.Is(err, ErrInvalidPolicy))

	for _, rate := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		_, err := NewEstimator(rate)
		assert.True(t, errors.Is(err, ErrInvalidRate), "%v", rate)
	}
}

func TestPolicyFromPassword(t *testing.T) {
	p := PolicyFromPassword("Passw0rd!")
	assert.Equal(t, Policy{Lowercase: true, Uppercase: true, Digits: true, Symbols: true, Length: 9}, p)

	p = PolicyFromPassword("hunter")
	assert.Equal(t, Policy{Lowercase: true, Length: 6}, p)

	p = PolicyFromPassword("日本語")
	assert.Equal(t, Policy{Digits: true, Length: 3}, p)
}

func TestRecommendations(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)
	est, err := e.EstimatePassword("hunter")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Increase length to 12+ characters (currently 6)",
		"Add uppercase letters (A-Z)",
		"Add numbers (0-9)",
		"Add special characters (!@#$%^&*)",
	}, est.Recommendations)
}

func TestAnalyzePIN(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)
	tests := []struct {
		pin      string
		attack   Attack
		attempts int
		rank     int
		rating   Rating
	}{
		{"1234", Dictionary, 1, 1, RatingCritical},
		{"9999", Dictionary, 11, 11, RatingCritical},
		{"1997", Dictionary, 50, 50, RatingVeryWeak},
		{"1234", Sequential, 1235, 1, RatingVeryWeak},
		{"8463", Dictionary, 50 + 8463 + 1, 0, RatingWeak},
		{"0000", Sequential, 1, 3, RatingVeryWeak},
		{"123456", Dictionary, 1, 1, RatingWeak},
		{"482915", Sequential, 482916, 0, RatingModerate},
		{"482915", Dictionary, 16 + 482915 + 1, 0, RatingModerate},
	}
	for _, tt := range tests {
		t.Run(tt.pin+"/"+tt.attack.String(), func(t *testing.T) {
			a, err := e.AnalyzePIN(tt.pin, tt.attack)
			require.NoError(t, err)
			assert.Equal(t, tt.attempts, a.Attempts)
			assert.Equal(t, tt.rank, a.CommonRank)
			assert.Equal(t, tt.rating, a.Rating)
			assert.Equal(t, len(tt.pin), a.Digits)
			assert.NotEmpty(t, a.Steps)
			assert.Less(t, a.CrackTime, time.Second)
		})
	}
}

func TestAnalyzePINInvalid(t *testing.T) {
	e := newEstimator(t, DefaultGuessesPerSecond)
	for _, pin := range []string{"", "123", "12345", "12a4", "+123", "-123", " 1234"} {
		_, err := e.AnalyzePIN(pin, Sequential)
		assert.True(t, errors.Is(err, ErrInvalidPIN), "%q", pin)
	}
}

func TestParseAttack(t *testing.T) {
	a, err := ParseAttack("optimized")
	require.NoError(t, err)
	assert.Equal(t, Dictionary, a)

	a, err = ParseAttack("")
	require.NoError(t, err)
	assert.Equal(t, Sequential, a)

	_, err = ParseAttack("rainbow")
	assert.Error(t, err)
}

func TestMeasureHashRate(t *testing.T) {
	rate, err := MeasureHashRate(context.Background(), bcrypt.MinCost, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Greater(t, rate, 0.0)

	_, err = MeasureHashRate(context.Background(), bcrypt.MinCost-1, time.Millisecond)
	assert.Error(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = MeasureHashRate(ctx, bcrypt.MinCost, time.Hour)
	assert.True(t, errors.Is(err, context.Canceled))
}
