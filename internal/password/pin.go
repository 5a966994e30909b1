package password

import (
	"fmt"
	"math/big"
	"strconv"
	"time"
)

// Frequently chosen PINs, most common first.
var (
	common4DigitPINs = []string{
		"1234", "1111", "0000", "1212", "7777", "1004", "2000", "4444", "2222", "6969",
		"9999", "3333", "5555", "6666", "1122", "1313", "8888", "4321", "2001", "1010",
		"0909", "2580", "1818", "0808", "1230", "1984", "1986", "0070", "1985", "0666",
		"8520", "1987", "1231", "1000", "1998", "2468", "1357", "7410", "9876", "5678",
		"1314", "1980", "1990", "1991", "1992", "1993", "1994", "1995", "1996", "1997",
	}
	common6DigitPINs = []string{
		"123456", "654321", "111111", "000000", "123123", "666666", "121212", "112233",
		"789456", "159753", "123321", "100000", "777777", "555555", "888888", "222222",
	}
)

// criticalRank is the dictionary position below which a 4-digit PIN falls
// in the first handful of guesses.
const criticalRank = 20

// Attack is a PIN guessing strategy.
type Attack int

const (
	// Sequential tries 000..0 upwards.
	Sequential Attack = iota
	// Dictionary tries the common PINs first, then falls back to
	// sequential order.
	Dictionary
)

func (a Attack) String() string {
	if a == Dictionary {
		return "dictionary"
	}
	return "sequential"
}

// MarshalText implements encoding.TextMarshaler.
func (a Attack) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// ParseAttack parses "sequential" or "dictionary".
func ParseAttack(s string) (Attack, error) {
	switch s {
	case "", "sequential", "brute-force":
		return Sequential, nil
	case "dictionary", "optimized", "common":
		return Dictionary, nil
	default:
		return 0, fmt.Errorf("password: unknown attack %q", s)
	}
}

// PINAnalysis is the outcome of a PIN estimate.
type PINAnalysis struct {
	Digits      int    `json:"digits"`
	SearchSpace int    `json:"search_space"`
	Attack      Attack `json:"attack"`
	// Attempts is the number of guesses until the PIN is found.
	Attempts int `json:"attempts"`
	// CommonRank is the 1-based dictionary position, 0 when the PIN is not
	// a common one.
	CommonRank int           `json:"common_rank,omitempty"`
	CrackTime  time.Duration `json:"crack_time_ns"`
	Human      string        `json:"human"`
	Rating     Rating        `json:"rating"`
	Steps      []string      `json:"steps"`
	Note       string        `json:"note"`
}

// Common reports whether the PIN is in the common-PIN dictionary.
func (a *PINAnalysis) Common() bool {
	return a.CommonRank > 0
}

func dictionaryFor(digits int) []string {
	switch digits {
	case 4:
		return common4DigitPINs
	case 6:
		return common6DigitPINs
	default:
		return nil
	}
}

// AnalyzePIN estimates how quickly a 4- or 6-digit PIN falls to attack.
// The PIN itself is never stored in the result.
func (e *Estimator) AnalyzePIN(pin string, attack Attack) (*PINAnalysis, error) {
	dict := dictionaryFor(len(pin))
	if dict == nil {
		return nil, fmt.Errorf("%w: want 4 or 6 digits, got %d characters", ErrInvalidPIN, len(pin))
	}
	value, err := strconv.Atoi(pin)
	if err != nil || value < 0 || pin[0] == '+' || pin[0] == '-' {
		return nil, fmt.Errorf("%w: non-digit characters", ErrInvalidPIN)
	}

	a := &PINAnalysis{
		Digits:      len(pin),
		SearchSpace: pow10(len(pin)),
		Attack:      attack,
		Note:        EstimateNote,
	}
	for i, p := range dict {
		if p == pin {
			a.CommonRank = i + 1
			break
		}
	}

	switch attack {
	case Dictionary:
		if a.Common() {
			a.Attempts = a.CommonRank
		} else {
			a.Attempts = len(dict) + value + 1
		}
	default:
		a.Attempts = value + 1
	}

	seconds := e.seconds(big.NewInt(int64(a.Attempts)))
	a.CrackTime, _ = toDuration(seconds)
	a.Human = HumanDuration(seconds)
	a.Rating = a.rate()
	a.Steps = a.steps(len(dict), e.rate)
	return a, nil
}

// rate judges the PIN by its length and dictionary exposure; the
// guess rate is irrelevant for a space this small.
func (a *PINAnalysis) rate() Rating {
	if a.Digits == 6 {
		if a.Common() {
			return RatingWeak
		}
		return RatingModerate
	}
	switch {
	case a.Common() && a.Attack == Dictionary && a.Attempts < criticalRank:
		return RatingCritical
	case a.Common():
		return RatingVeryWeak
	default:
		return RatingWeak
	}
}

func (a *PINAnalysis) steps(dictSize int, rate float64) []string {
	steps := []string{
		fmt.Sprintf("A %d-digit PIN has %d possible values.", a.Digits, a.SearchSpace),
	}
	if a.Attack == Dictionary {
		steps = append(steps, fmt.Sprintf("The attacker first tries the %d most common %d-digit PINs.", dictSize, a.Digits))
		if a.Common() {
			steps = append(steps, fmt.Sprintf("This PIN is number %d on that list.", a.CommonRank))
		} else {
			steps = append(steps, "This PIN is not on that list, so the attack falls back to counting upwards.")
		}
	} else {
		steps = append(steps, "The attacker counts upwards from all zeros.")
		if a.Common() {
			steps = append(steps, fmt.Sprintf("A dictionary attack would be faster: this PIN is number %d on the common list.", a.CommonRank))
		}
	}
	steps = append(steps, fmt.Sprintf("Found after %d attempts; at %.3g guesses/s that is %s.", a.Attempts, rate, a.Human))
	steps = append(steps, "Real devices rate-limit or lock after a few wrong guesses, which matters far more than the arithmetic.")
	return steps
}

func pow10(n int) int {
	v := 1
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}
