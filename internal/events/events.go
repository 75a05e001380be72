package events

import "time"

// Event types carried on the feed.
const (
	TypeWelcome         = "welcome"
	TypeComicStatus     = "comic.status"
	TypeImportCompleted = "import.completed"
)

// Welcome is the first line every subscriber receives.
type Welcome struct {
	Type      string `json:"type"`
	Transport string `json:"transport"`
	Clients   int    `json:"clients"`
}

// ComicStatus announces a read-status toggle.
type ComicStatus struct {
	Type        string    `json:"type"`
	ComicID     int64     `json:"comic_id"`
	Series      string    `json:"issue"`
	IssueNumber string    `json:"issue_number"`
	Status      string    `json:"status"`
	At          time.Time `json:"at"`
}

// ImportCompleted announces a committed import.
type ImportCompleted struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id"`
	Rows      int       `json:"rows"`
	Created   int       `json:"created"`
	Updated   int       `json:"updated"`
	Unchanged int       `json:"unchanged"`
	Skipped   int       `json:"skipped"`
	At        time.Time `json:"at"`
}
