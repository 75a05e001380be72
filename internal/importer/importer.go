// Package importer reconciles a CSV of owned issues with the collection:
// unknown issues are inserted, known ones updated, and missing titles and
// covers are looked up in the catalog.
package importer

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"comicshelf/internal/comics"
	"comicshelf/internal/events"
	"comicshelf/internal/logging"
	"comicshelf/pkg/models"
)

// Resolver looks up catalog metadata for one issue.
type Resolver interface {
	Resolve(ctx context.Context, key models.NaturalKey) (*models.IssueMetadata, bool)
}

// Latch reports whether catalog lookups have been shut off for this process.
type Latch interface {
	Tripped() bool
}

// Publisher receives an event when an import commits.
type Publisher interface {
	BroadcastJSON(v any)
}

// RecordChange lists the fields one import changed on one comic.
type RecordChange struct {
	ComicID int64             `json:"comic_id"`
	Key     models.NaturalKey `json:"key"`
	Fields  []FieldChange     `json:"fields"`
}

// Result summarizes one import.
type Result struct {
	RunID     string         `json:"run_id"`
	Rows      int            `json:"rows"`
	Created   int            `json:"created"`
	Updated   int            `json:"updated"`
	Unchanged int            `json:"unchanged"`
	Skipped   int            `json:"skipped"`
	Changes   []RecordChange `json:"changes,omitempty"`
}

type Importer struct {
	store     *comics.Store
	resolver  Resolver
	latch     Latch
	publisher Publisher
	lockPath  string
	logger    *slog.Logger
}

type Option func(*Importer)

// WithResolver enables catalog lookups. latch may be nil.
func WithResolver(r Resolver, latch Latch) Option {
	return func(im *Importer) {
		im.resolver = r
		im.latch = latch
	}
}

func WithPublisher(p Publisher) Option {
	return func(im *Importer) { im.publisher = p }
}

// WithLockPath serializes imports across processes on an advisory lock file.
func WithLockPath(path string) Option {
	return func(im *Importer) { im.lockPath = path }
}

func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) { im.logger = logger }
}

func New(store *comics.Store, opts ...Option) *Importer {
	im := &Importer{store: store}
	for _, opt := range opts {
		opt(im)
	}
	im.logger = logging.OrDiscard(im.logger).With(slog.String("component", "importer"))
	return im
}

// LockPathFor is the lock file used for imports into the database at dbPath.
func LockPathFor(dbPath string) string {
	return dbPath + ".import.lock"
}

// ImportFile opens path and imports it.
func (im *Importer) ImportFile(ctx context.Context, path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return im.Import(ctx, f)
}

// Import applies every row of the CSV in r inside one transaction. A bad
// row is skipped; a bad file, a store error or a cancelled context rolls
// back the whole batch.
func (im *Importer) Import(ctx context.Context, r io.Reader) (*Result, error) {
	unlock, err := acquireLock(ctx, im.lockPath)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res := &Result{RunID: uuid.NewString()}
	logger := im.logger.With(slog.String("run_id", res.RunID))
	start := time.Now()

	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	err = im.store.WithTx(ctx, func(tx *comics.Tx) error {
		h, err := readHeader(cr)
		if err != nil {
			return err
		}
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			record, err := cr.Read()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("read csv: %w", err)
			}
			if isBlank(record) {
				continue
			}
			res.Rows++
			line, _ := cr.FieldPos(0)

			rw, err := parseRow(h, line, record)
			if err != nil {
				res.Skipped++
				logger.Warn("skipping row", slog.Int("line", line), slog.String("reason", err.Error()))
				continue
			}
			if err := im.reconcile(ctx, tx, logger, rw, res); err != nil {
				return err
			}
		}
	})
	if err != nil {
		logger.Error("import rolled back", slog.Any("error", err))
		return nil, err
	}

	logger.Info("import committed",
		slog.Int("rows", res.Rows),
		slog.Int("created", res.Created),
		slog.Int("updated", res.Updated),
		slog.Int("unchanged", res.Unchanged),
		slog.Int("skipped", res.Skipped),
		slog.Duration("elapsed", time.Since(start)))

	if im.publisher != nil {
		im.publisher.BroadcastJSON(events.ImportCompleted{
			Type:      events.TypeImportCompleted,
			RunID:     res.RunID,
			Rows:      res.Rows,
			Created:   res.Created,
			Updated:   res.Updated,
			Unchanged: res.Unchanged,
			Skipped:   res.Skipped,
			At:        time.Now().UTC(),
		})
	}
	return res, nil
}

func (im *Importer) reconcile(ctx context.Context, tx *comics.Tx, logger *slog.Logger, rw row, res *Result) error {
	existing, err := tx.FindByKey(ctx, rw.key)
	if err != nil {
		return err
	}
	logger = logger.With(slog.String("comic", rw.key.String()))

	if existing == nil {
		c := rw.newComic(im.lookup(ctx, logger, rw.key))
		if err := tx.Insert(ctx, &c); err != nil {
			return err
		}
		res.Created++
		logger.Info("added comic", slog.Int64("comic_id", c.ID))
		return nil
	}

	c := *existing
	changes := rw.apply(&c)
	if c.NeedsMetadata() {
		if meta := im.lookup(ctx, logger, rw.key); meta != nil {
			changes = append(changes, fill(&c, meta)...)
		}
	}
	if len(changes) == 0 {
		res.Unchanged++
		return nil
	}
	if err := tx.Update(ctx, &c); err != nil {
		return err
	}
	res.Updated++
	res.Changes = append(res.Changes, RecordChange{ComicID: c.ID, Key: rw.key, Fields: changes})
	logger.Info("updated comic", slog.Int64("comic_id", c.ID), slog.Any("changes", changes))
	return nil
}

// lookup calls the resolver at most once. It returns nil unless the resolver
// ran and found the issue.
func (im *Importer) lookup(ctx context.Context, logger *slog.Logger, key models.NaturalKey) *models.IssueMetadata {
	if im.resolver == nil {
		return nil
	}
	if im.latch != nil && im.latch.Tripped() {
		logger.Warn("catalog rate limit reached; skipping lookup")
		return nil
	}
	meta, ok := im.resolver.Resolve(ctx, key)
	if !ok {
		return nil
	}
	return meta
}

func isBlank(record []string) bool {
	for _, v := range record {
		if cell(v) != "" {
			return false
		}
	}
	return true
}
