package comics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"comicshelf/pkg/models"
)

// ErrNotFound is returned when no comic has the requested id.
var ErrNotFound = errors.New("comic not found")

// ErrBusy is returned when another writer, normally an import, kept the
// database locked for longer than the busy timeout.
var ErrBusy = errors.New("collection is busy")

func isBusy(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && (se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked)
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	DB *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{DB: db}
}

const comicColumns = `id, issue, issue_number, issue_title, series_start_year, issue_published_year,
	tbp, availability, storyline, story_order, status, cover_image_url`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanComic(row rowScanner) (models.Comic, error) {
	var (
		c            models.Comic
		title        sql.NullString
		published    sql.NullInt64
		tbp          sql.NullString
		availability sql.NullString
		storyline    sql.NullString
		order        sql.NullInt64
		status       sql.NullString
		cover        sql.NullString
	)
	if err := row.Scan(
		&c.ID, &c.Series, &c.IssueNumber, &title, &c.SeriesStartYear, &published,
		&tbp, &availability, &storyline, &order, &status, &cover,
	); err != nil {
		return c, err
	}

	c.IssueTitle = title.String
	c.PublishedYear = int(published.Int64)
	c.TPB = tbp.String
	c.Availability = availability.String
	c.Storyline = storyline.String
	c.StoryOrder = int(order.Int64)
	c.Status = models.Status(status.String)
	if c.Status == "" {
		c.Status = models.StatusUnread
	}
	c.CoverImageURL = cover.String
	return c, nil
}

func nullString(raw string) sql.NullString {
	if raw == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: raw, Valid: true}
}

func get(ctx context.Context, q querier, id int64) (*models.Comic, error) {
	row := q.QueryRowContext(ctx, `SELECT `+comicColumns+` FROM comics WHERE id = ?`, id)
	c, err := scanComic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan comic %d: %w", id, err)
	}
	return &c, nil
}

func list(ctx context.Context, q querier, query string, args ...any) ([]models.Comic, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var out []models.Comic
	for rows.Next() {
		c, err := scanComic(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Get returns the comic with id, or nil if there is none.
func (s *Store) Get(ctx context.Context, id int64) (*models.Comic, error) {
	return get(ctx, s.DB, id)
}

func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM comics`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count comics: %w", err)
	}
	return n, nil
}

// ListByID returns every comic ordered by id.
func (s *Store) ListByID(ctx context.Context) ([]models.Comic, error) {
	return list(ctx, s.DB, `SELECT `+comicColumns+` FROM comics ORDER BY id`)
}

// ListByStoryline returns every comic ordered by storyline, story order, id.
// NULL storylines sort first.
func (s *Store) ListByStoryline(ctx context.Context) ([]models.Comic, error) {
	return list(ctx, s.DB, `SELECT `+comicColumns+` FROM comics ORDER BY storyline, story_order, id`)
}

// ListByYear returns every comic ordered by published year, then id.
func (s *Store) ListByYear(ctx context.Context) ([]models.Comic, error) {
	return list(ctx, s.DB, `SELECT `+comicColumns+` FROM comics ORDER BY issue_published_year, id`)
}

// ToggleStatus flips Read/Unread for one comic and returns the stored row.
// While an import holds the write lock it waits up to the busy timeout and
// then fails with ErrBusy.
func (s *Store) ToggleStatus(ctx context.Context, id int64) (*models.Comic, error) {
	var out *models.Comic
	err := s.WithTx(ctx, func(tx *Tx) error {
		c, err := get(ctx, tx.tx, id)
		if err != nil {
			return err
		}
		if c == nil {
			return ErrNotFound
		}
		c.Status = c.Status.Toggle()
		if _, err := tx.tx.ExecContext(ctx, `UPDATE comics SET status = ? WHERE id = ?`, string(c.Status), id); err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		out = c
		return nil
	})
	if isBusy(err) {
		return nil, fmt.Errorf("toggle comic %d: %w: %w", id, ErrBusy, err)
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Tx is a store transaction. All reads and writes of an import go through
// one Tx so they commit or roll back together.
type Tx struct {
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. An error from fn, or from commit,
// rolls back everything fn did.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx}); err != nil {
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// FindByKey returns the comic with the natural key, or nil.
func (t *Tx) FindByKey(ctx context.Context, key models.NaturalKey) (*models.Comic, error) {
	row := t.tx.QueryRowContext(ctx, `SELECT `+comicColumns+` FROM comics
		WHERE issue = ? AND issue_number = ? AND series_start_year = ?`,
		key.Series, key.IssueNumber, key.StartYear)
	c, err := scanComic(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find %s: %w", key, err)
	}
	return &c, nil
}

// Insert stores a new comic and sets its ID.
func (t *Tx) Insert(ctx context.Context, c *models.Comic) error {
	if c.Status == "" {
		c.Status = models.StatusUnread
	}
	res, err := t.tx.ExecContext(ctx, `
		INSERT INTO comics (issue, issue_number, issue_title, series_start_year, issue_published_year,
			tbp, availability, storyline, story_order, status, cover_image_url)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.Series, c.IssueNumber, nullString(c.IssueTitle), c.SeriesStartYear, c.PublishedYear,
		nullString(c.TPB), nullString(c.Availability), nullString(c.Storyline), c.StoryOrder,
		string(c.Status), nullString(c.CoverImageURL),
	)
	if err != nil {
		return fmt.Errorf("insert %s: %w", c.Key(), err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert %s id: %w", c.Key(), err)
	}
	c.ID = id
	return nil
}

// Update writes every mutable column of c.
func (t *Tx) Update(ctx context.Context, c *models.Comic) error {
	res, err := t.tx.ExecContext(ctx, `
		UPDATE comics SET
			issue_title = ?, issue_published_year = ?, tbp = ?, availability = ?,
			storyline = ?, story_order = ?, status = ?, cover_image_url = ?
		WHERE id = ?
	`,
		nullString(c.IssueTitle), c.PublishedYear, nullString(c.TPB), nullString(c.Availability),
		nullString(c.Storyline), c.StoryOrder, string(c.Status), nullString(c.CoverImageURL),
		c.ID,
	)
	if err != nil {
		return fmt.Errorf("update comic %d: %w", c.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update comic %d rows: %w", c.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("update comic %d: %w", c.ID, ErrNotFound)
	}
	return nil
}
