package plan

import (
	"fmt"
	"strings"
)

// Profile is the build profile read once from NODE_ENV
type Profile string

const (
	Development Profile = "development"
	Production  Profile = "production"
)

// ParseProfile maps a NODE_ENV value to a Profile, empty means development
func ParseProfile(s string) (Profile, error) {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "", string(Development):
		return Development, nil
	case string(Production):
		return Production, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidProfile, s)
}

func (p Profile) IsProduction() bool {
	return p == Production
}

func (p Profile) String() string {
	return string(p)
}
