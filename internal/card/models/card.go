package models

import (
	"fmt"
	"strings"
	"time"

	id "docket/pkg/domain"
	dErrors "docket/pkg/domain-errors"
)

const (
	// MaxEntityRefs caps how many entities one card may reference.
	MaxEntityRefs = 20
	// MaxSourceRefs caps how many sources one card may cite.
	MaxSourceRefs = 50
	// MaxTags caps free-form tags per card.
	MaxTags = 16

	maxTitleLength        = 300
	maxClaimLength        = 2000
	maxSummaryLength      = 5000
	maxCategoryLength     = 100
	maxJurisdictionLength = 100
	maxTagLength          = 64
)

// ScoreSignals are the editorial scoring inputs attached to a card. Each
// component is a normalized weight in [0, 1].
type ScoreSignals struct {
	Corroboration float64 `json:"corroboration"`
	Independence  float64 `json:"independence"`
	Recency       float64 `json:"recency"`
}

// Validate checks that every component is within [0, 1].
func (s ScoreSignals) Validate() error {
	for _, c := range []struct {
		name  string
		value float64
	}{
		{"corroboration", s.Corroboration},
		{"independence", s.Independence},
		{"recency", s.Recency},
	} {
		if c.value < 0 || c.value > 1 {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("signal %s must be between 0 and 1", c.name))
		}
	}
	return nil
}

// EvidenceCard is a versioned, falsifiable claim about one or more entities,
// backed by citations into the source catalog.
//
// Invariants:
//   - Version starts at 1 and each saved revision increases it by exactly 1.
//   - Status moves only along the transition graph owned by CardStatus.
//   - EntityIDs holds between 1 and MaxEntityRefs distinct references.
//   - SourceIDs holds at most MaxSourceRefs distinct references.
//   - PublishDate is set by the first publish and never changes afterwards.
//   - Counterpoint only grows; prior annotations are never rewritten.
//
// A card is immutable once written: every mutation produces a complete new
// version snapshot, so any historical version renders without joins.
type EvidenceCard struct {
	ID           id.CardID        `json:"id"`
	Title        string           `json:"title"`
	Claim        string           `json:"claim"`
	Summary      string           `json:"summary,omitempty"`
	Category     string           `json:"category"`
	EntityIDs    []id.EntityID    `json:"entity_ids"`
	EventDate    *time.Time       `json:"event_date,omitempty"`
	PublishDate  *time.Time       `json:"publish_date,omitempty"`
	Jurisdiction string           `json:"jurisdiction,omitempty"`
	SourceIDs    []id.SourceID    `json:"source_ids,omitempty"`
	Strength     EvidenceStrength `json:"strength"`
	Status       CardStatus       `json:"status"`
	Counterpoint string           `json:"counterpoint,omitempty"`
	Tags         []string         `json:"tags,omitempty"`
	Signals      *ScoreSignals    `json:"signals,omitempty"`
	Version      int              `json:"version"`
	CreatedAt    time.Time        `json:"created_at"`
	CreatedBy    id.ActorID       `json:"created_by"`
	UpdatedAt    time.Time        `json:"updated_at"`
	UpdatedBy    id.ActorID       `json:"updated_by"`
}

// CardAttrs is the full editable content of a card. Updates replace the
// whole set; there is no field-level patching.
type CardAttrs struct {
	Title        string
	Claim        string
	Summary      string
	Category     string
	EntityIDs    []id.EntityID
	EventDate    *time.Time
	Jurisdiction string
	SourceIDs    []id.SourceID
	Strength     EvidenceStrength
	Tags         []string
	Signals      *ScoreSignals
}

// Normalize trims free-text fields and copies reference slices so the
// caller's backing arrays are never shared with a stored card.
func (a CardAttrs) Normalize() CardAttrs {
	a.Title = strings.TrimSpace(a.Title)
	a.Claim = strings.TrimSpace(a.Claim)
	a.Summary = strings.TrimSpace(a.Summary)
	a.Category = strings.TrimSpace(a.Category)
	a.Jurisdiction = strings.TrimSpace(a.Jurisdiction)

	a.EntityIDs = append([]id.EntityID(nil), a.EntityIDs...)
	a.SourceIDs = append([]id.SourceID(nil), a.SourceIDs...)

	tags := make([]string, 0, len(a.Tags))
	for _, tag := range a.Tags {
		tags = append(tags, strings.TrimSpace(tag))
	}
	if len(tags) == 0 {
		tags = nil
	}
	a.Tags = tags

	if a.EventDate != nil {
		t := a.EventDate.UTC()
		a.EventDate = &t
	}
	if a.Signals != nil {
		s := *a.Signals
		a.Signals = &s
	}
	return a
}

// Validate checks card content against the aggregate limits. It expects
// normalized input.
//
// Errors: returns CodeValidation for every violation; no other errors are
// expected.
func (a CardAttrs) Validate() error {
	if a.Title == "" {
		return dErrors.New(dErrors.CodeValidation, "title cannot be empty")
	}
	if len(a.Title) > maxTitleLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("title cannot exceed %d characters", maxTitleLength))
	}
	if a.Claim == "" {
		return dErrors.New(dErrors.CodeValidation, "claim cannot be empty")
	}
	if len(a.Claim) > maxClaimLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("claim cannot exceed %d characters", maxClaimLength))
	}
	if len(a.Summary) > maxSummaryLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("summary cannot exceed %d characters", maxSummaryLength))
	}
	if a.Category == "" {
		return dErrors.New(dErrors.CodeValidation, "category cannot be empty")
	}
	if len(a.Category) > maxCategoryLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("category cannot exceed %d characters", maxCategoryLength))
	}
	if len(a.Jurisdiction) > maxJurisdictionLength {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("jurisdiction cannot exceed %d characters", maxJurisdictionLength))
	}

	if len(a.EntityIDs) == 0 {
		return dErrors.New(dErrors.CodeValidation, "card must reference at least one entity")
	}
	if len(a.EntityIDs) > MaxEntityRefs {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("card cannot reference more than %d entities", MaxEntityRefs))
	}
	seenEntities := make(map[id.EntityID]bool, len(a.EntityIDs))
	for _, entityID := range a.EntityIDs {
		if entityID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "entity id cannot be empty")
		}
		if seenEntities[entityID] {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate entity reference %s", entityID))
		}
		seenEntities[entityID] = true
	}

	if len(a.SourceIDs) > MaxSourceRefs {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("card cannot cite more than %d sources", MaxSourceRefs))
	}
	seenSources := make(map[id.SourceID]bool, len(a.SourceIDs))
	for _, sourceID := range a.SourceIDs {
		if sourceID.IsNil() {
			return dErrors.New(dErrors.CodeValidation, "source id cannot be empty")
		}
		if seenSources[sourceID] {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate source reference %s", sourceID))
		}
		seenSources[sourceID] = true
	}

	if !a.Strength.IsValid() {
		return dErrors.New(dErrors.CodeValidation, "invalid evidence strength")
	}

	if len(a.Tags) > MaxTags {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("card cannot carry more than %d tags", MaxTags))
	}
	seenTags := make(map[string]bool, len(a.Tags))
	for _, tag := range a.Tags {
		if tag == "" {
			return dErrors.New(dErrors.CodeValidation, "tag cannot be empty")
		}
		if len(tag) > maxTagLength {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("tag cannot exceed %d characters", maxTagLength))
		}
		if seenTags[tag] {
			return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("duplicate tag %q", tag))
		}
		seenTags[tag] = true
	}

	if a.Signals != nil {
		if err := a.Signals.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// NewCard creates version 1 of a card in DRAFT.
func NewCard(cardID id.CardID, attrs CardAttrs, actor id.ActorID, now time.Time) (*EvidenceCard, error) {
	card := &EvidenceCard{
		ID:        cardID,
		Status:    CardStatusDraft,
		Version:   1,
		CreatedAt: now,
		CreatedBy: actor,
		UpdatedAt: now,
		UpdatedBy: actor,
	}
	if err := card.ApplyAttrs(attrs); err != nil {
		return nil, err
	}
	return card, nil
}

// Clone returns a deep copy so a derived version never aliases the slices
// or pointers of the version it came from.
func (c *EvidenceCard) Clone() *EvidenceCard {
	clone := *c
	clone.EntityIDs = append([]id.EntityID(nil), c.EntityIDs...)
	clone.SourceIDs = append([]id.SourceID(nil), c.SourceIDs...)
	if c.Tags != nil {
		clone.Tags = append([]string(nil), c.Tags...)
	}
	if c.EventDate != nil {
		t := *c.EventDate
		clone.EventDate = &t
	}
	if c.PublishDate != nil {
		t := *c.PublishDate
		clone.PublishDate = &t
	}
	if c.Signals != nil {
		s := *c.Signals
		clone.Signals = &s
	}
	return &clone
}

// NextVersion clones the card as the candidate next revision: version
// incremented by one and update stamps refreshed. The caller mutates the
// clone and hands it to the store, whose conditional insert arbitrates
// concurrent writers.
func (c *EvidenceCard) NextVersion(actor id.ActorID, now time.Time) *EvidenceCard {
	next := c.Clone()
	next.Version = c.Version + 1
	next.UpdatedAt = now
	next.UpdatedBy = actor
	return next
}

// CanEdit reports whether card content may be replaced in the current
// status.
//
// Errors: returns CodeInvalidStateTransition when the card is not in DRAFT
// or REVIEW.
func (c *EvidenceCard) CanEdit() error {
	if !c.Status.Editable() {
		return dErrors.New(dErrors.CodeInvalidStateTransition,
			fmt.Sprintf("card in status %s cannot be edited", c.Status))
	}
	return nil
}

// ApplyAttrs replaces the card's editable content with a normalized,
// validated copy of attrs. Lifecycle fields are untouched.
func (c *EvidenceCard) ApplyAttrs(attrs CardAttrs) error {
	attrs = attrs.Normalize()
	if err := attrs.Validate(); err != nil {
		return err
	}
	c.Title = attrs.Title
	c.Claim = attrs.Claim
	c.Summary = attrs.Summary
	c.Category = attrs.Category
	c.EntityIDs = attrs.EntityIDs
	c.EventDate = attrs.EventDate
	c.Jurisdiction = attrs.Jurisdiction
	c.SourceIDs = attrs.SourceIDs
	c.Strength = attrs.Strength
	c.Tags = attrs.Tags
	c.Signals = attrs.Signals
	return nil
}

// ApplyPublish moves the card to PUBLISHED. The publish date is set exactly
// once; re-publishing after a dispute keeps the original date.
func (c *EvidenceCard) ApplyPublish(now time.Time) {
	c.Status = CardStatusPublished
	if c.PublishDate == nil {
		t := now.UTC()
		c.PublishDate = &t
	}
}

// AppendCounterpoint appends one annotation to the counterpoint history.
// Existing text is never rewritten; entries accumulate separated by a blank
// line.
func (c *EvidenceCard) AppendCounterpoint(kind CounterpointKind, note string, at time.Time) {
	entry := formatCounterpoint(kind, note, at)
	if c.Counterpoint == "" {
		c.Counterpoint = entry
		return
	}
	c.Counterpoint = c.Counterpoint + "\n\n" + entry
}

// IsPubliclyVisible reports whether the card appears on public surfaces in
// its current status.
func (c *EvidenceCard) IsPubliclyVisible() bool {
	switch c.Status {
	case CardStatusPublished, CardStatusDisputed, CardStatusCorrected, CardStatusRetracted:
		return true
	default:
		return false
	}
}
