package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"comicshelf/pkg/models"
)

// WriteCSV writes comics in the import format, so importing the output into
// the same collection changes nothing.
func WriteCSV(w io.Writer, comics []models.Comic) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, c := range comics {
		status := c.Status
		if status == "" {
			status = models.StatusUnread
		}
		record := []string{
			c.Series,
			c.IssueNumber,
			strconv.Itoa(c.SeriesStartYear),
			strconv.Itoa(c.PublishedYear),
			c.TPB,
			c.Availability,
			c.Storyline,
			strconv.Itoa(c.StoryOrder),
			string(status),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write %s: %w", c.Key(), err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
