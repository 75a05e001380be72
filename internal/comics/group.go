package comics

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"comicshelf/pkg/models"
)

// Sort orders understood by ListSorted.
const (
	SortStoryline = "storyline"
	SortID        = "id"
	SortYear      = "year"
)

const (
	allComicsLabel = "All Comics"
	ungroupedLabel = "Ungrouped"
)

// Group is one bucket of the collection view.
type Group struct {
	Storyline string         `json:"storyline"`
	Label     string         `json:"label"`
	Comics    []models.Comic `json:"comics"`
}

// NormalizeSort maps a user-supplied sort to one ListSorted understands.
func NormalizeSort(raw string) string {
	switch s := strings.ToLower(strings.TrimSpace(raw)); s {
	case SortID, SortYear:
		return s
	default:
		return SortStoryline
	}
}

// ListSorted returns the collection as ordered groups. "id" and "year" give a
// single "All Comics" group; anything else groups by storyline.
func (s *Store) ListSorted(ctx context.Context, sort string) ([]Group, error) {
	switch NormalizeSort(sort) {
	case SortID:
		comics, err := s.ListByID(ctx)
		if err != nil {
			return nil, err
		}
		return single(comics), nil
	case SortYear:
		comics, err := s.ListByYear(ctx)
		if err != nil {
			return nil, err
		}
		return single(comics), nil
	default:
		comics, err := s.ListByStoryline(ctx)
		if err != nil {
			return nil, err
		}
		return GroupByStoryline(comics), nil
	}
}

func single(comics []models.Comic) []Group {
	if len(comics) == 0 {
		return nil
	}
	return []Group{{Label: allComicsLabel, Comics: comics}}
}

// GroupByStoryline buckets comics by storyline, keeping their order within a
// bucket. Buckets are ordered by the smallest id they contain. Comics with no
// storyline share one bucket labelled "Ungrouped".
func GroupByStoryline(comics []models.Comic) []Group {
	index := make(map[string]int)
	minID := make(map[string]int64)
	var groups []Group

	for _, c := range comics {
		i, ok := index[c.Storyline]
		if !ok {
			label := c.Storyline
			if label == "" {
				label = ungroupedLabel
			}
			i = len(groups)
			index[c.Storyline] = i
			minID[c.Storyline] = c.ID
			groups = append(groups, Group{Storyline: c.Storyline, Label: label})
		}
		groups[i].Comics = append(groups[i].Comics, c)
		minID[c.Storyline] = min(minID[c.Storyline], c.ID)
	}

	slices.SortStableFunc(groups, func(a, b Group) int {
		return cmp.Compare(minID[a.Storyline], minID[b.Storyline])
	})
	return groups
}
