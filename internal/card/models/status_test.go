package models

import (
	"testing"

	"github.com/stretchr/testify/suite"

	dErrors "docket/pkg/domain-errors"
)

type CardStatusSuite struct {
	suite.Suite
}

func TestCardStatusSuite(t *testing.T) {
	suite.Run(t, new(CardStatusSuite))
}

func allCardStatuses() []CardStatus {
	return []CardStatus{
		CardStatusDraft,
		CardStatusReview,
		CardStatusPublished,
		CardStatusDisputed,
		CardStatusCorrected,
		CardStatusRetracted,
		CardStatusArchived,
	}
}

func (s *CardStatusSuite) TestParseCardStatus() {
	parsed, err := ParseCardStatus("PUBLISHED")
	s.Require().NoError(err)
	s.Equal(CardStatusPublished, parsed)

	_, err = ParseCardStatus("")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseCardStatus("published")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput), "statuses are case-sensitive")

	_, err = ParseCardStatus("DELETED")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

// TestTransitionGraph checks every ordered status pair against the intended
// graph, so an accidental edge added or dropped in the table shows up here.
func (s *CardStatusSuite) TestTransitionGraph() {
	allowed := map[CardStatus]map[CardStatus]bool{
		CardStatusDraft:     {CardStatusReview: true, CardStatusArchived: true},
		CardStatusReview:    {CardStatusDraft: true, CardStatusPublished: true, CardStatusArchived: true},
		CardStatusPublished: {CardStatusDisputed: true, CardStatusCorrected: true, CardStatusRetracted: true, CardStatusArchived: true},
		CardStatusDisputed:  {CardStatusPublished: true, CardStatusCorrected: true, CardStatusRetracted: true, CardStatusArchived: true},
		CardStatusCorrected: {CardStatusDisputed: true, CardStatusRetracted: true, CardStatusArchived: true},
		CardStatusRetracted: {CardStatusArchived: true},
		CardStatusArchived:  {CardStatusDraft: true},
	}
	for _, from := range allCardStatuses() {
		for _, to := range allCardStatuses() {
			s.Equalf(allowed[from][to], from.CanTransitionTo(to), "from %s to %s", from, to)
		}
	}
}

// TestNoTerminalState verifies every status has at least one exit, so no
// card can ever be stuck.
func (s *CardStatusSuite) TestNoTerminalState() {
	for _, from := range allCardStatuses() {
		exits := 0
		for _, to := range allCardStatuses() {
			if from.CanTransitionTo(to) {
				exits++
			}
		}
		s.Positivef(exits, "status %s has no exit", from)
	}
}

func (s *CardStatusSuite) TestSelfTransitionsRejected() {
	for _, status := range allCardStatuses() {
		s.Falsef(status.CanTransitionTo(status), "status %s transitions to itself", status)
	}
}

func (s *CardStatusSuite) TestEditable() {
	s.True(CardStatusDraft.Editable())
	s.True(CardStatusReview.Editable())
	for _, status := range []CardStatus{
		CardStatusPublished, CardStatusDisputed, CardStatusCorrected, CardStatusRetracted, CardStatusArchived,
	} {
		s.Falsef(status.Editable(), "status %s should not be editable", status)
	}
}

func (s *CardStatusSuite) TestParseEvidenceStrength() {
	parsed, err := ParseEvidenceStrength("CONCLUSIVE")
	s.Require().NoError(err)
	s.Equal(StrengthConclusive, parsed)

	_, err = ParseEvidenceStrength("")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = ParseEvidenceStrength("OVERWHELMING")
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}
