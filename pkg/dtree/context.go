package dtree

import (
	"time"

	"github.com/shopspring/decimal"
)

// Subject carries the attributes a tree is evaluated against. The calling
// service resolves them (residence lookup, household roster, membership
// history); the engine never fetches anything itself.
type Subject struct {
	// Age in whole years, truncated down. See AgeAt.
	Age int
	// QF is the household's means-tested index; nil when the subject never
	// supplied one.
	QF *decimal.Decimal
	// ResidenceId identifies the subject's commune of residence.
	ResidenceId int64
	// SocialStatus is the subject's social-status code; nil when unknown.
	SocialStatus *string
	// MembershipYears counts full years of uninterrupted membership.
	MembershipYears int
	// HouseholdCount counts registrants sharing the subject's household.
	HouseholdCount int
}

// AgeAt derives the whole-year age of someone born at birthDate, truncated
// down: the year difference, minus one if the birthday has not yet passed.
func AgeAt(birthDate time.Time, at time.Time) int {
	years := at.Year() - birthDate.Year()
	anniversary := birthDate.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}
