// Package subjectkey encodes a votable stock (ticker + long/short direction)
// into the single key stored in stocks.ticker_direction and stock_votes.ticker_direction.
package subjectkey

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Separator never appears inside a ticker, so Decode is unambiguous.
const Separator = ":"

var (
	ErrInvalidKey       = errors.New("invalid subject key")
	ErrInvalidTicker    = errors.New("invalid ticker")
	ErrInvalidDirection = errors.New("invalid direction")
)

var tickerPattern = regexp.MustCompile(`^[A-Z0-9.]{1,10}$`)

// Direction 多空方向: long=1, short=0
type Direction int

const (
	Short Direction = 0
	Long  Direction = 1
)

func (d Direction) Valid() bool {
	return d == Short || d == Long
}

func (d Direction) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	}
	return fmt.Sprintf("Direction(%d)", int(d))
}

// ParseDirection accepts the form values the web layer sends (1/0) as well as long/short and true/false.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "long", "true":
		return Long, nil
	case "0", "short", "false":
		return Short, nil
	}
	return Short, fmt.Errorf("%w: %q", ErrInvalidDirection, s)
}

// Key is the canonical ticker+direction identifier, e.g. "AAPL:1".
type Key string

func (k Key) String() string { return string(k) }

// NormalizeTicker trims and uppercases a ticker and checks it against the supported alphabet.
func NormalizeTicker(ticker string) (string, error) {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	if !tickerPattern.MatchString(t) {
		return "", fmt.Errorf("%w: %q", ErrInvalidTicker, ticker)
	}
	return t, nil
}

// Encode builds the key for (ticker, direction).
func Encode(ticker string, dir Direction) (Key, error) {
	t, err := NormalizeTicker(ticker)
	if err != nil {
		return "", err
	}
	if !dir.Valid() {
		return "", fmt.Errorf("%w: %d", ErrInvalidDirection, int(dir))
	}
	return Key(fmt.Sprintf("%s%s%d", t, Separator, int(dir))), nil
}

// MustEncode is Encode for tickers known to be valid. It panics otherwise.
func MustEncode(ticker string, dir Direction) Key {
	k, err := Encode(ticker, dir)
	if err != nil {
		panic(err)
	}
	return k
}

// Decode is the inverse of Encode. Ticker-only keys from the legacy scheme are rejected.
func Decode(k Key) (string, Direction, error) {
	parts := strings.Split(string(k), Separator)
	if len(parts) != 2 {
		return "", Short, fmt.Errorf("%w: %q has %d separators", ErrInvalidKey, string(k), len(parts)-1)
	}
	ticker := parts[0]
	if !tickerPattern.MatchString(ticker) {
		return "", Short, fmt.Errorf("%w: %q: bad ticker", ErrInvalidKey, string(k))
	}
	switch parts[1] {
	case "1":
		return ticker, Long, nil
	case "0":
		return ticker, Short, nil
	}
	return "", Short, fmt.Errorf("%w: %q: bad direction", ErrInvalidKey, string(k))
}

// Validate reports whether k is a well-formed extended key.
func Validate(k Key) error {
	_, _, err := Decode(k)
	return err
}

// IsLegacy reports whether k was written by the ticker-only scheme.
func IsLegacy(k Key) bool {
	if strings.Contains(string(k), Separator) {
		return false
	}
	_, err := NormalizeTicker(string(k))
	return err == nil
}
