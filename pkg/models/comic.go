package models

import (
	"fmt"
	"strings"
)

// Status is the read state of a comic. Only StatusRead and StatusUnread are stored.
type Status string

const (
	StatusRead   Status = "Read"
	StatusUnread Status = "Unread"
)

// ParseStatus accepts "read"/"unread" in any case.
func ParseStatus(raw string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "read":
		return StatusRead, nil
	case "unread":
		return StatusUnread, nil
	default:
		return "", fmt.Errorf("unknown status %q", raw)
	}
}

// Toggle flips Read and Unread. Anything else becomes Read, matching how an
// unset status is treated as Unread.
func (s Status) Toggle() Status {
	if s == StatusRead {
		return StatusUnread
	}
	return StatusRead
}

// NaturalKey identifies a comic independent of its storage id.
type NaturalKey struct {
	Series      string `json:"issue"`
	IssueNumber string `json:"issue_number"`
	StartYear   int    `json:"series_start_year"`
}

func (k NaturalKey) String() string {
	return fmt.Sprintf("%s #%s (%d)", k.Series, k.IssueNumber, k.StartYear)
}

// Comic is one owned issue. Empty strings are stored as NULL.
type Comic struct {
	ID              int64  `json:"id"`
	Series          string `json:"issue"`
	IssueNumber     string `json:"issue_number"`
	SeriesStartYear int    `json:"series_start_year"`
	IssueTitle      string `json:"issue_title,omitempty"`
	PublishedYear   int    `json:"issue_published_year"`
	TPB             string `json:"tbp,omitempty"`
	Availability    string `json:"availability,omitempty"`
	Storyline       string `json:"storyline,omitempty"`
	StoryOrder      int    `json:"story_order"`
	Status          Status `json:"status"`
	CoverImageURL   string `json:"cover_image_url,omitempty"`
}

func (c Comic) Key() NaturalKey {
	return NaturalKey{Series: c.Series, IssueNumber: c.IssueNumber, StartYear: c.SeriesStartYear}
}

// NeedsMetadata reports whether a lookup could still fill something in.
func (c Comic) NeedsMetadata() bool {
	return c.IssueTitle == "" || c.CoverImageURL == ""
}

// IssueMetadata is what a catalog lookup yields for one issue.
type IssueMetadata struct {
	IssueID       int64  `json:"issue_id"`
	Title         string `json:"name"`
	CoverImageURL string `json:"image_url"`
}
