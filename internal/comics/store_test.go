package comics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"comicshelf/pkg/database"
	"comicshelf/pkg/models"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.OpenAndMigrate(database.Config{Path: filepath.Join(t.TempDir(), "comics.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db)
}

func seed(t *testing.T, s *Store, comics ...models.Comic) []models.Comic {
	t.Helper()
	out := make([]models.Comic, 0, len(comics))
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		for _, c := range comics {
			if err := tx.Insert(context.Background(), &c); err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	require.NoError(t, err)
	return out
}

func TestInsertAndFindByKey(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	want := models.Comic{
		Series:          "Action Comics",
		IssueNumber:     "1",
		SeriesStartYear: 1938,
		IssueTitle:      "Superman!",
		CoverImageURL:   "http://x/1.jpg",
	}
	seeded := seed(t, s, want)
	want.ID = seeded[0].ID
	want.Status = models.StatusUnread

	err := s.WithTx(ctx, func(tx *Tx) error {
		got, err := tx.FindByKey(ctx, want.Key())
		require.NoError(t, err)
		require.NotNil(t, got)
		if diff := cmp.Diff(want, *got); diff != "" {
			t.Errorf("FindByKey mismatch (-want +got):\n%s", diff)
		}

		missing, err := tx.FindByKey(ctx, models.NaturalKey{Series: "Action Comics", IssueNumber: "1", StartYear: 2011})
		require.NoError(t, err)
		assert.Nil(t, missing)
		return nil
	})
	require.NoError(t, err)
}

func TestEmptyStringsAreStoredAsNull(t *testing.T) {
	s := newTestStore(t)
	seeded := seed(t, s, models.Comic{Series: "Detective Comics", IssueNumber: "27", SeriesStartYear: 1937})

	var title, storyline any
	err := s.DB.QueryRow(`SELECT issue_title, storyline FROM comics WHERE id = ?`, seeded[0].ID).Scan(&title, &storyline)
	require.NoError(t, err)
	assert.Nil(t, title)
	assert.Nil(t, storyline)
}

func TestUpdateWritesMutableColumns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940})[0]

	c.Status = models.StatusRead
	c.Storyline = "Year One"
	c.StoryOrder = 3
	c.PublishedYear = 1940
	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error { return tx.Update(ctx, &c) }))

	got, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(c, *got); diff != "" {
		t.Errorf("stored comic mismatch (-want +got):\n%s", diff)
	}
}

func TestUpdateMissingComic(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.Update(ctx, &models.Comic{ID: 404, Status: models.StatusRead})
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx *Tx) error {
		require.NoError(t, tx.Insert(ctx, &models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940}))
		require.NoError(t, tx.Insert(ctx, &models.Comic{Series: "Batman", IssueNumber: "2", SeriesStartYear: 1940}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestInsertDuplicateKeyFails(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	seed(t, s, models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940})

	err := s.WithTx(ctx, func(tx *Tx) error {
		return tx.Insert(ctx, &models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940})
	})
	require.Error(t, err)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestToggleStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	c := seed(t, s, models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940})[0]

	got, err := s.ToggleStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, got.Status)

	got, err = s.ToggleStatus(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, got.Status)

	stored, err := s.Get(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, stored.Status)
}

func TestToggleStatusNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.ToggleStatus(context.Background(), 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestToggleStatusBusyWhileWriterHoldsLock(t *testing.T) {
	db, err := database.OpenAndMigrate(database.Config{
		Path:        filepath.Join(t.TempDir(), "comics.db"),
		BusyTimeout: 50 * time.Millisecond,
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	s := NewStore(db)
	seed(t, s, models.Comic{Series: "Batman", IssueNumber: "1", SeriesStartYear: 1940})
	ctx := context.Background()

	require.NoError(t, s.WithTx(ctx, func(tx *Tx) error {
		_, err := s.ToggleStatus(ctx, 1)
		assert.ErrorIs(t, err, ErrBusy)
		return nil
	}))

	c, err := s.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusUnread, c.Status)

	c, err = s.ToggleStatus(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, models.StatusRead, c.Status)
}

func TestGetMissing(t *testing.T) {
	s := newTestStore(t)
	got, err := s.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func ids(g Group) []int64 {
	out := make([]int64, 0, len(g.Comics))
	for _, c := range g.Comics {
		out = append(out, c.ID)
	}
	return out
}

func TestListSortedByStoryline(t *testing.T) {
	s := newTestStore(t)
	seed(t, s,
		models.Comic{Series: "A", IssueNumber: "1", SeriesStartYear: 2000, Storyline: "S1", StoryOrder: 2},
		models.Comic{Series: "A", IssueNumber: "2", SeriesStartYear: 2000, Storyline: "S2", StoryOrder: 1},
		models.Comic{Series: "A", IssueNumber: "3", SeriesStartYear: 2000, Storyline: "S1", StoryOrder: 1},
		models.Comic{Series: "A", IssueNumber: "4", SeriesStartYear: 2000},
	)

	groups, err := s.ListSorted(context.Background(), "storyline")
	require.NoError(t, err)
	require.Len(t, groups, 3)

	assert.Equal(t, "S1", groups[0].Label)
	assert.Equal(t, []int64{3, 1}, ids(groups[0]))
	assert.Equal(t, "S2", groups[1].Label)
	assert.Equal(t, []int64{2}, ids(groups[1]))
	assert.Equal(t, "Ungrouped", groups[2].Label)
	assert.Empty(t, groups[2].Storyline)
	assert.Equal(t, []int64{4}, ids(groups[2]))
}

func TestListSortedByIDAndYear(t *testing.T) {
	s := newTestStore(t)
	seed(t, s,
		models.Comic{Series: "A", IssueNumber: "1", SeriesStartYear: 2000, PublishedYear: 2003, Storyline: "S1"},
		models.Comic{Series: "A", IssueNumber: "2", SeriesStartYear: 2000, PublishedYear: 2001},
		models.Comic{Series: "A", IssueNumber: "3", SeriesStartYear: 2000, PublishedYear: 2002, Storyline: "S2"},
	)

	groups, err := s.ListSorted(context.Background(), "ID")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "All Comics", groups[0].Label)
	assert.Equal(t, []int64{1, 2, 3}, ids(groups[0]))

	groups, err = s.ListSorted(context.Background(), "year")
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, []int64{2, 3, 1}, ids(groups[0]))
}

func TestListSortedEmptyStore(t *testing.T) {
	s := newTestStore(t)
	for _, sort := range []string{"storyline", "id", "year", "bogus"} {
		groups, err := s.ListSorted(context.Background(), sort)
		require.NoError(t, err)
		assert.Empty(t, groups, sort)
	}
}

func TestGroupByStorylineOrdersByMinimumID(t *testing.T) {
	in := []models.Comic{
		{ID: 5, Storyline: "B", StoryOrder: 1},
		{ID: 2, Storyline: "B", StoryOrder: 2},
		{ID: 3, Storyline: "A", StoryOrder: 1},
	}
	groups := GroupByStoryline(in)
	require.Len(t, groups, 2)
	assert.Equal(t, "B", groups[0].Storyline)
	assert.Equal(t, []int64{5, 2}, ids(groups[0]), "order within a group is preserved")
	assert.Equal(t, "A", groups[1].Storyline)
}

func TestNormalizeSort(t *testing.T) {
	assert.Equal(t, SortID, NormalizeSort(" Id "))
	assert.Equal(t, SortYear, NormalizeSort("year"))
	assert.Equal(t, SortStoryline, NormalizeSort(""))
	assert.Equal(t, SortStoryline, NormalizeSort("title"))
}
