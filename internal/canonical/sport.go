package canonical

import (
	"fmt"
	"strings"
)

// Sport scopes a canonical name table.
type Sport string

const (
	SportNBA Sport = "nba"
	SportNFL Sport = "nfl"
	SportNHL Sport = "nhl"
)

// Sports lists every sport with an embedded name table.
func Sports() []Sport {
	return []Sport{SportNBA, SportNFL, SportNHL}
}

// ParseSport resolves a case-insensitive sport label.
func ParseSport(raw string) (Sport, error) {
	s := Sport(strings.ToLower(strings.TrimSpace(raw)))
	for _, known := range Sports() {
		if s == known {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown sport %q", raw)
}

func (s Sport) String() string {
	return string(s)
}
