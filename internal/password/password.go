// Package password estimates how long a brute-force attack on a password
// or PIN would take. Nothing is attacked: the search space is computed in
// closed form and divided by an assumed attacker rate, so every figure is
// an estimate.
package password

import (
	"errors"
	"fmt"
	"math"
	"math/big"
	"strings"
	"time"
	"unicode"
)

// Character class sizes.
const (
	LowercaseSize = 26
	UppercaseSize = 26
	DigitSize     = 10
	SymbolSize    = 32
)

// DefaultGuessesPerSecond is the reference attacker: a modern GPU against
// a fast, unsalted hash.
const DefaultGuessesPerSecond = 1e10

// Errors returned by the estimator.
var (
	ErrInvalidPolicy = errors.New("password: invalid policy")
	ErrInvalidRate   = errors.New("password: guesses per second must be positive")
	ErrInvalidPIN    = errors.New("password: invalid PIN")
)

// EstimateNote is attached to every estimate.
const EstimateNote = "Estimate only: closed-form search-space arithmetic at an assumed attacker rate, not a real attack."

// Policy declares which character classes a password draws from and its
// length.
type Policy struct {
	Lowercase bool `json:"lowercase"`
	Uppercase bool `json:"uppercase"`
	Digits    bool `json:"digits"`
	Symbols   bool `json:"symbols"`
	Length    int  `json:"length"`
}

// CharsetSize is the number of characters the policy allows.
func (p Policy) CharsetSize() int {
	n := 0
	if p.Lowercase {
		n += LowercaseSize
	}
	if p.Uppercase {
		n += UppercaseSize
	}
	if p.Digits {
		n += DigitSize
	}
	if p.Symbols {
		n += SymbolSize
	}
	return n
}

// Classes counts the enabled character classes.
func (p Policy) Classes() int {
	n := 0
	for _, on := range []bool{p.Lowercase, p.Uppercase, p.Digits, p.Symbols} {
		if on {
			n++
		}
	}
	return n
}

// Validate checks that the policy describes a non-empty search space.
func (p Policy) Validate() error {
	if p.Length < 1 {
		return fmt.Errorf("%w: length must be at least 1, got %d", ErrInvalidPolicy, p.Length)
	}
	if p.CharsetSize() == 0 {
		return fmt.Errorf("%w: no character class selected", ErrInvalidPolicy)
	}
	return nil
}

// SearchSpace returns charset^length.
func (p Policy) SearchSpace() *big.Int {
	return new(big.Int).Exp(big.NewInt(int64(p.CharsetSize())), big.NewInt(int64(p.Length)), nil)
}

// PolicyFromPassword infers the policy a password satisfies. A password
// made only of characters outside every class is treated as digits.
func PolicyFromPassword(pw string) Policy {
	p := Policy{Length: len([]rune(pw))}
	for _, r := range pw {
		switch {
		case unicode.IsLower(r):
			p.Lowercase = true
		case unicode.IsUpper(r):
			p.Uppercase = true
		case unicode.IsDigit(r):
			p.Digits = true
		case r < unicode.MaxASCII && (unicode.IsPunct(r) || unicode.IsSymbol(r)):
			p.Symbols = true
		}
	}
	if p.CharsetSize() == 0 {
		p.Digits = true
	}
	return p
}

// Rating is a coarse strength verdict.
type Rating int

const (
	RatingCritical Rating = iota
	RatingVeryWeak
	RatingWeak
	RatingModerate
	RatingGood
	RatingStrong
	RatingExcellent
)

var ratingNames = [...]string{"critical", "very weak", "weak", "moderate", "good", "strong", "excellent"}

func (r Rating) String() string {
	if r < 0 || int(r) >= len(ratingNames) {
		return fmt.Sprintf("rating(%d)", int(r))
	}
	return ratingNames[r]
}

// MarshalText implements encoding.TextMarshaler.
func (r Rating) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// Estimate is the outcome of a strength estimate.
type Estimate struct {
	Policy      Policy   `json:"policy"`
	CharsetSize int      `json:"charset_size"`
	SearchSpace *big.Int `json:"search_space"`
	// Entropy is log2 of the search space, in bits.
	Entropy          float64 `json:"entropy_bits"`
	GuessesPerSecond float64 `json:"guesses_per_second"`
	// CrackSeconds is the time to exhaust the search space.
	CrackSeconds *big.Float `json:"crack_seconds"`
	// CrackTime is CrackSeconds as a Duration; it saturates at the largest
	// Duration, in which case Saturated is set.
	CrackTime       time.Duration `json:"crack_time_ns"`
	Saturated       bool          `json:"saturated"`
	Human           string        `json:"human"`
	Rating          Rating        `json:"rating"`
	Recommendations []string      `json:"recommendations"`
	Note            string        `json:"note"`
}

// Estimator computes estimates at a fixed attacker rate.
type Estimator struct {
	rate float64
}

// NewEstimator creates an estimator for guessesPerSecond guesses per second.
func NewEstimator(guessesPerSecond float64) (*Estimator, error) {
	if !(guessesPerSecond > 0) || math.IsInf(guessesPerSecond, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRate, guessesPerSecond)
	}
	return &Estimator{rate: guessesPerSecond}, nil
}

// Rate returns the assumed guesses per second.
func (e *Estimator) Rate() float64 {
	return e.rate
}

// Estimate returns the brute-force estimate for a policy.
func (e *Estimator) Estimate(p Policy) (*Estimate, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	space := p.SearchSpace()
	seconds := e.seconds(space)
	d, saturated := toDuration(seconds)

	est := &Estimate{
		Policy:           p,
		CharsetSize:      p.CharsetSize(),
		SearchSpace:      space,
		Entropy:          float64(p.Length) * math.Log2(float64(p.CharsetSize())),
		GuessesPerSecond: e.rate,
		CrackSeconds:     seconds,
		CrackTime:        d,
		Saturated:        saturated,
		Human:            HumanDuration(seconds),
		Rating:           rateSeconds(seconds),
		Recommendations:  recommendations(p),
		Note:             EstimateNote,
	}
	return est, nil
}

// EstimatePassword infers the policy of pw and estimates it.
func (e *Estimator) EstimatePassword(pw string) (*Estimate, error) {
	if pw == "" {
		return nil, fmt.Errorf("%w: password is empty", ErrInvalidPolicy)
	}
	return e.Estimate(PolicyFromPassword(pw))
}

func (e *Estimator) seconds(attempts *big.Int) *big.Float {
	f := new(big.Float).SetInt(attempts)
	return f.Quo(f, big.NewFloat(e.rate))
}

func toDuration(seconds *big.Float) (time.Duration, bool) {
	ns := new(big.Float).Mul(seconds, big.NewFloat(float64(time.Second)))
	if ns.Cmp(big.NewFloat(float64(math.MaxInt64))) >= 0 {
		return time.Duration(math.MaxInt64), true
	}
	v, _ := ns.Int64()
	return time.Duration(v), false
}

const (
	secondsPerMinute = 60
	secondsPerHour   = 60 * secondsPerMinute
	secondsPerDay    = 24 * secondsPerHour
	secondsPerYear   = 365 * secondsPerDay
)

func rateSeconds(seconds *big.Float) Rating {
	years := div(seconds, secondsPerYear)
	days := div(seconds, secondsPerDay)
	switch {
	case years.Cmp(big.NewFloat(1000)) > 0:
		return RatingExcellent
	case years.Cmp(big.NewFloat(10)) > 0:
		return RatingStrong
	case years.Cmp(big.NewFloat(1)) > 0:
		return RatingGood
	case days.Cmp(big.NewFloat(30)) > 0:
		return RatingModerate
	case days.Cmp(big.NewFloat(1)) > 0:
		return RatingWeak
	default:
		return RatingVeryWeak
	}
}

func div(x *big.Float, y float64) *big.Float {
	return new(big.Float).Quo(x, big.NewFloat(y))
}

// HumanDuration renders a number of seconds the way a person would say it.
func HumanDuration(seconds *big.Float) string {
	years := div(seconds, secondsPerYear)
	y, _ := years.Float64()
	switch {
	case y > 1e15:
		return years.Text('e', 2) + " years"
	case y > 1e6:
		return fmt.Sprintf("%.1f million years", y/1e6)
	case y > 1e3:
		return fmt.Sprintf("%.1f thousand years", y/1e3)
	case y >= 1:
		return fmt.Sprintf("%.1f years", y)
	}
	s, _ := seconds.Float64()
	switch {
	case s >= secondsPerDay:
		return fmt.Sprintf("%.1f days", s/secondsPerDay)
	case s >= secondsPerHour:
		return fmt.Sprintf("%.1f hours", s/secondsPerHour)
	case s >= secondsPerMinute:
		return fmt.Sprintf("%.1f minutes", s/secondsPerMinute)
	default:
		return fmt.Sprintf("%.2f seconds", s)
	}
}

func recommendations(p Policy) []string {
	var out []string
	if p.Length < 12 {
		out = append(out, fmt.Sprintf("Increase length to 12+ characters (currently %d)", p.Length))
	}
	if !p.Uppercase {
		out = append(out, "Add uppercase letters (A-Z)")
	}
	if !p.Lowercase {
		out = append(out, "Add lowercase letters (a-z)")
	}
	if !p.Digits {
		out = append(out, "Add numbers (0-9)")
	}
	if !p.Symbols {
		out = append(out, "Add special characters (!@#$%^&*)")
	}
	return out
}

// Summary renders the estimate as a few lines of text.
func (e *Estimate) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Strength: %s\n", e.Rating)
	fmt.Fprintf(&b, "Length: %d characters, %d/4 character classes (%d symbols)\n",
		e.Policy.Length, e.Policy.Classes(), e.CharsetSize)
	fmt.Fprintf(&b, "Combinations: %s (%.1f bits)\n", e.SearchSpace.String(), e.Entropy)
	fmt.Fprintf(&b, "Time to exhaust at %.3g guesses/s: %s\n", e.GuessesPerSecond, e.Human)
	b.WriteString(e.Note)
	return b.String()
}
