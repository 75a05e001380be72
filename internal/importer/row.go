package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"comicshelf/pkg/models"
)

// Column names as they appear in the CSV header.
const (
	ColIssue         = "Issue"
	ColIssueNumber   = "Issue Number"
	ColStartYear     = "Series Start Year"
	ColPublishedYear = "Issue Published Year"
	ColTPB           = "TBP"
	ColAvailability  = "Availability"
	ColStoryline     = "Storyline"
	ColStoryOrder    = "Story Order"
	ColStatus        = "Status"
)

// Columns is the full header in export order.
var Columns = []string{
	ColIssue, ColIssueNumber, ColStartYear, ColPublishedYear,
	ColTPB, ColAvailability, ColStoryline, ColStoryOrder, ColStatus,
}

var requiredColumns = []string{ColIssue, ColIssueNumber, ColStartYear}

// ErrMissingColumns means the header lacks a required column, so no row can
// be imported.
var ErrMissingColumns = errors.New("csv header missing required columns")

// cell trims and NFC-normalizes a CSV value so visually identical keys compare equal.
func cell(raw string) string {
	return norm.NFC.String(strings.TrimSpace(raw))
}

func headerKey(name string) string {
	return strings.ToLower(cell(strings.TrimPrefix(name, "\ufeff")))
}

type header map[string]int

func readHeader(r *csv.Reader) (header, error) {
	row, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("read header: empty file")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	h := make(header, len(row))
	for idx, name := range row {
		key := headerKey(name)
		if _, dup := h[key]; !dup {
			h[key] = idx
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := h[headerKey(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return h, nil
}

func (h header) valueAt(row []string, col string) string {
	idx, ok := h[headerKey(col)]
	if !ok || idx >= len(row) {
		return ""
	}
	return cell(row[idx])
}

// optInt is an integer cell that may be blank.
type optInt struct {
	value int
	set   bool
}

func parseOptInt(raw string) (optInt, error) {
	if raw == "" {
		return optInt{}, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return optInt{}, err
	}
	return optInt{value: n, set: true}, nil
}

// row is one validated CSV record. Blank optional cells stay blank so the
// update path can tell "not given" from "given".
type row struct {
	line          int
	key           models.NaturalKey
	publishedYear optInt
	tpb           string
	availability  string
	storyline     string
	storyOrder    optInt
	status        models.Status
}

// rowError is a problem with one row. The row is skipped; the import goes on.
type rowError struct {
	line   int
	reason string
}

func (e *rowError) Error() string {
	return fmt.Sprintf("line %d: %s", e.line, e.reason)
}

func parseRow(h header, line int, record []string) (row, error) {
	r := row{line: line}
	skip := func(format string, args ...any) (row, error) {
		return row{}, &rowError{line: line, reason: fmt.Sprintf(format, args...)}
	}

	series := h.valueAt(record, ColIssue)
	number := h.valueAt(record, ColIssueNumber)
	rawYear := h.valueAt(record, ColStartYear)
	if series == "" || number == "" || rawYear == "" {
		return skip("missing required field")
	}
	year, err := strconv.Atoi(rawYear)
	if err != nil {
		return skip("invalid %s %q", ColStartYear, rawYear)
	}
	r.key = models.NaturalKey{Series: series, IssueNumber: number, StartYear: year}

	if r.publishedYear, err = parseOptInt(h.valueAt(record, ColPublishedYear)); err != nil {
		return skip("invalid %s %q", ColPublishedYear, h.valueAt(record, ColPublishedYear))
	}
	if r.storyOrder, err = parseOptInt(h.valueAt(record, ColStoryOrder)); err != nil {
		return skip("invalid %s %q", ColStoryOrder, h.valueAt(record, ColStoryOrder))
	}
	if raw := h.valueAt(record, ColStatus); raw != "" {
		if r.status, err = models.ParseStatus(raw); err != nil {
			return skip("invalid %s %q", ColStatus, raw)
		}
	}

	r.tpb = h.valueAt(record, ColTPB)
	r.availability = h.valueAt(record, ColAvailability)
	r.storyline = h.valueAt(record, ColStoryline)
	return r, nil
}

// newComic builds the record inserted on first sight of a key.
func (r row) newComic(meta *models.IssueMetadata) models.Comic {
	c := models.Comic{
		Series:          r.key.Series,
		IssueNumber:     r.key.IssueNumber,
		SeriesStartYear: r.key.StartYear,
		PublishedYear:   r.publishedYear.value,
		TPB:             r.tpb,
		Availability:    r.availability,
		Storyline:       r.storyline,
		StoryOrder:      r.storyOrder.value,
		Status:          r.status,
	}
	if c.Status == "" {
		c.Status = models.StatusUnread
	}
	if meta != nil {
		c.IssueTitle = meta.Title
		c.CoverImageURL = meta.CoverImageURL
	}
	return c
}

// FieldChange is one column overwritten by an import.
type FieldChange struct {
	Field string `json:"field"`
	Old   string `json:"old"`
	New   string `json:"new"`
}

// apply overwrites every optional field the row gives that differs from c.
func (r row) apply(c *models.Comic) []FieldChange {
	var changes []FieldChange
	setInt := func(field string, dst *int, v optInt) {
		if v.set && v.value != *dst {
			changes = append(changes, FieldChange{Field: field, Old: strconv.Itoa(*dst), New: strconv.Itoa(v.value)})
			*dst = v.value
		}
	}
	setString := func(field string, dst *string, v string) {
		if v != "" && v != *dst {
			changes = append(changes, FieldChange{Field: field, Old: *dst, New: v})
			*dst = v
		}
	}

	setInt("issue_published_year", &c.PublishedYear, r.publishedYear)
	setString("tbp", &c.TPB, r.tpb)
	setString("availability", &c.Availability, r.availability)
	setString("storyline", &c.Storyline, r.storyline)
	setInt("story_order", &c.StoryOrder, r.storyOrder)
	if r.status != "" && r.status != c.Status {
		changes = append(changes, FieldChange{Field: "status", Old: string(c.Status), New: string(r.status)})
		c.Status = r.status
	}
	return changes
}

// fill sets the title and cover from meta where c has none.
func fill(c *models.Comic, meta *models.IssueMetadata) []FieldChange {
	var changes []FieldChange
	if c.CoverImageURL == "" && meta.CoverImageURL != "" {
		changes = append(changes, FieldChange{Field: "cover_image_url", New: meta.CoverImageURL})
		c.CoverImageURL = meta.CoverImageURL
	}
	if c.IssueTitle == "" && meta.Title != "" {
		changes = append(changes, FieldChange{Field: "issue_title", New: meta.Title})
		c.IssueTitle = meta.Title
	}
	return changes
}
