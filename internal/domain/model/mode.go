package model

import "fmt"

// Mode tags a run and every event it produces. Practice runs are never authoritative.
type Mode uint8

const (
	ModeStandard Mode = iota
	ModePractice
)

func (m Mode) String() string {
	switch m {
	case ModeStandard:
		return "standard"
	case ModePractice:
		return "practice"
	default:
		return fmt.Sprintf("mode(%d)", uint8(m))
	}
}

// ParseMode converts a textual mode. The empty string is Standard.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "standard":
		return ModeStandard, nil
	case "practice":
		return ModePractice, nil
	default:
		return ModeStandard, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Mode) MarshalText() ([]byte, error) {
	if m > ModePractice {
		return nil, fmt.Errorf("%w: %d", ErrUnknownMode, uint8(m))
	}
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}
