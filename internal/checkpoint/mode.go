package checkpoint

import (
	"errors"
	"fmt"
)

// ErrUnknownMode is returned when parsing an unrecognized conversion mode.
var ErrUnknownMode = errors.New("unknown conversion mode")

// Mode selects which keys survive conversion and under what name.
type Mode int

// Conversion modes.
const (
	Full    Mode = iota // keep every key unchanged
	EMAOnly             // replace parameters with their EMA shadows
	NoEMA               // drop every EMA-related key
)

// String returns the command-line identifier of the mode.
func (m Mode) String() string {
	switch m {
	case Full:
		return "full"
	case EMAOnly:
		return "ema-only"
	case NoEMA:
		return "no-ema"
	default:
		return "unknown"
	}
}

// ParseMode parses a command-line identifier.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "full":
		return Full, nil
	case "ema-only":
		return EMAOnly, nil
	case "no-ema":
		return NoEMA, nil
	default:
		return 0, fmt.Errorf("%w: %q (want full, ema-only or no-ema)", ErrUnknownMode, s)
	}
}

// Set implements the pflag.Value interface.
func (m *Mode) Set(s string) error {
	parsed, err := ParseMode(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

// Type implements the pflag.Value interface.
func (m *Mode) Type() string {
	return "mode"
}
