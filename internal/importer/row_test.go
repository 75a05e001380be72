package importer

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comicshelf/pkg/models"
)

func mustHeader(t *testing.T, line string) header {
	t.Helper()
	h, err := readHeader(csv.NewReader(strings.NewReader(line + "\n")))
	require.NoError(t, err)
	return h
}

func TestParseRow(t *testing.T) {
	h := mustHeader(t, strings.Join(Columns, ","))

	tests := []struct {
		name    string
		record  []string
		want    row
		skipped bool
	}{
		{
			name:   "required only",
			record: []string{"Batman", "1", "1940"},
			want:   row{line: 2, key: models.NaturalKey{Series: "Batman", IssueNumber: "1", StartYear: 1940}},
		},
		{
			name:   "all fields",
			record: []string{"Batman", "1", "1940", "1940", "Vol. 1", "Library", "Origins", "4", "READ"},
			want: row{
				line:          2,
				key:           models.NaturalKey{Series: "Batman", IssueNumber: "1", StartYear: 1940},
				publishedYear: optInt{value: 1940, set: true},
				tpb:           "Vol. 1",
				availability:  "Library",
				storyline:     "Origins",
				storyOrder:    optInt{value: 4, set: true},
				status:        models.StatusRead,
			},
		},
		{name: "explicit zero order", record: []string{"Batman", "1", "1940", "", "", "", "", "0"},
			want: row{line: 2, key: models.NaturalKey{Series: "Batman", IssueNumber: "1", StartYear: 1940}, storyOrder: optInt{set: true}}},
		{name: "blank series", record: []string{"  ", "1", "1940"}, skipped: true},
		{name: "short record", record: []string{"Batman", "1"}, skipped: true},
		{name: "float year", record: []string{"Batman", "1", "1940.0"}, skipped: true},
		{name: "bad status", record: []string{"Batman", "1", "1940", "", "", "", "", "", "done"}, skipped: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseRow(h, 2, tt.record)
			if tt.skipped {
				var rowErr *rowError
				require.True(t, errors.As(err, &rowErr))
				assert.Equal(t, 2, rowErr.line)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestApplyOnlyOverwritesGivenFields(t *testing.T) {
	c := models.Comic{
		Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940,
		TPB: "Vol. 1", Storyline: "Origins", StoryOrder: 2, Status: models.StatusRead,
	}
	r := row{storyOrder: optInt{value: 3, set: true}, availability: "Shelf"}

	changes := r.apply(&c)
	assert.Equal(t, []FieldChange{
		{Field: "availability", Old: "", New: "Shelf"},
		{Field: "story_order", Old: "2", New: "3"},
	}, changes)
	assert.Equal(t, "Vol. 1", c.TPB)
	assert.Equal(t, "Origins", c.Storyline)
	assert.Equal(t, models.StatusRead, c.Status)
}

func TestFillLeavesPresentValues(t *testing.T) {
	c := models.Comic{IssueTitle: "Kept"}
	changes := fill(&c, &models.IssueMetadata{Title: "New", CoverImageURL: "http://x/1.jpg"})
	assert.Equal(t, []FieldChange{{Field: "cover_image_url", New: "http://x/1.jpg"}}, changes)
	assert.Equal(t, "Kept", c.IssueTitle)

	assert.Empty(t, fill(&c, &models.IssueMetadata{}))
}
