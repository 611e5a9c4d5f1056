package model

// SessionClass selects the cache-expiry rule for a symbol.
type SessionClass int

const (
	// SessionContinuous trades only during exchange hours (equities, ETFs, cash indices).
	SessionContinuous SessionClass = iota
	// SessionTwentyFourHour updates around the clock (crypto, futures, FX).
	SessionTwentyFourHour
	// SessionDerivative is computed from a session market (VIX, treasury yields).
	SessionDerivative
)

func (c SessionClass) String() string {
	switch c {
	case SessionTwentyFourHour:
		return "24h"
	case SessionDerivative:
		return "derivative"
	default:
		return "continuous"
	}
}

// ParseSessionClass maps a config string back to a SessionClass.
func ParseSessionClass(s string) (SessionClass, bool) {
	switch s {
	case "continuous", "session":
		return SessionContinuous, true
	case "24h", "twenty_four_hour":
		return SessionTwentyFourHour, true
	case "derivative":
		return SessionDerivative, true
	}
	return SessionContinuous, false
}
