package demand

import (
	"fmt"
	"strings"
)

// Model selects how stochastic demand is drawn.
type Model int

const (
	// Normal scales the expected demand by a multiplicative noise factor drawn from the
	// residual distribution of the decomposition.
	Normal Model = iota
	// Poisson draws counts whose mean is the point forecast.
	Poisson
)

func (m Model) String() string {
	switch m {
	case Normal:
		return "normal"
	case Poisson:
		return "poisson"
	default:
		return fmt.Sprintf("Model(%d)", int(m))
	}
}

// Models lists the accepted model names.
var Models = []string{Normal.String(), Poisson.String()}

// ParseModel resolves a case-insensitive model name.
func ParseModel(s string) (Model, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "":
		return Normal, nil
	case "poisson":
		return Poisson, nil
	default:
		return Normal, fmt.Errorf("unknown demand model %q (want one of %s)", s, strings.Join(Models, ", "))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Model) UnmarshalText(b []byte) error {
	parsed, err := ParseModel(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
