package model

import (
	"fmt"
	"strings"
)

// Tier is a subscription level. Tiers form a total order: FREE < PRO < AGENCY.
type Tier string

const (
	TierFree   Tier = "FREE"
	TierPro    Tier = "PRO"
	TierAgency Tier = "AGENCY"
)

// Tiers lists every tier in ascending order.
var Tiers = []Tier{TierFree, TierPro, TierAgency}

func (t Tier) rank() int {
	switch t {
	case TierFree:
		return 1
	case TierPro:
		return 2
	case TierAgency:
		return 3
	default:
		return 0
	}
}

// Valid reports whether t is one of the known tiers.
func (t Tier) Valid() bool { return t.rank() > 0 }

// Covers reports whether a caller on tier t may use something that requires min.
// Unknown tiers cover nothing and are covered by nothing.
func (t Tier) Covers(min Tier) bool {
	if !t.Valid() || !min.Valid() {
		return false
	}
	return t.rank() >= min.rank()
}

func (t Tier) String() string { return string(t) }

// ParseTier accepts any casing.
func ParseTier(s string) (Tier, error) {
	t := Tier(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown tier %q", s)
	}
	return t, nil
}
