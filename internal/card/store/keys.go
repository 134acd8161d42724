package store

import (
	"fmt"
	"time"

	id "docket/pkg/domain"
)

// Index key derivations. Every partition and sort key a card write touches
// is a pure function of the domain record and the publish time, so the
// fan-out rows for a given publish are reproducible from the version row
// alone. The memory store keys its maps with these; the relational store
// maps the same derivations onto indexed columns.

// versionPad keeps version sort keys fixed-width so lexicographic order
// matches numeric order up to ten digits.
const versionPad = "v#%010d"

// CardPartition groups every version of one card.
func CardPartition(cardID id.CardID) string {
	return "card#" + cardID.String()
}

// VersionSort orders version rows within a card partition.
func VersionSort(version int) string {
	return fmt.Sprintf(versionPad, version)
}

// FeedBucket is the UTC month a publish lands in, formatted YYYY-MM.
func FeedBucket(publishedAt time.Time) string {
	return publishedAt.UTC().Format("2006-01")
}

// FeedPartition groups feed rows for one month bucket.
func FeedPartition(bucket string) string {
	return "feed#" + bucket
}

// EntityPartition groups publish rows for one referenced entity.
func EntityPartition(entityID id.EntityID) string {
	return "entity#" + entityID.String()
}

// CitationPartition groups citation rows for one cited source.
func CitationPartition(sourceID id.SourceID) string {
	return "cite#" + sourceID.String()
}

// PublishSort orders feed and entity rows by publish time with the card id
// as tiebreak. Readers order by the underlying timestamp, not by comparing
// these strings: RFC 3339 trims trailing zeros, so the text form does not
// collate reliably at sub-second precision.
func PublishSort(publishedAt time.Time, cardID id.CardID) string {
	return publishedAt.UTC().Format(time.RFC3339Nano) + "#" + cardID.String()
}
