package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"comicshelf/internal/comics"
	"comicshelf/internal/comicvine"
	"comicshelf/internal/importer"
	"comicshelf/pkg/models"
)

func newImportCommand(ctx *commandContext) *cobra.Command {
	var showChanges bool
	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import or reconcile a collection CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			res, err := a.NewImporter(nil).ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printImportResult(cmd.OutOrStdout(), res, showChanges)
			return nil
		},
	}
	cmd.Flags().BoolVar(&showChanges, "changes", false, "List every field that changed")
	return cmd
}

func printImportResult(out io.Writer, res *importer.Result, showChanges bool) {
	summary := newSheet("Import "+res.RunID, num("Rows"), num("Created"), num("Updated"), num("Unchanged"), num("Skipped"))
	summary.add(
		strconv.Itoa(res.Rows),
		strconv.Itoa(res.Created),
		strconv.Itoa(res.Updated),
		strconv.Itoa(res.Unchanged),
		strconv.Itoa(res.Skipped),
	)
	fmt.Fprintln(out, summary)

	if !showChanges || len(res.Changes) == 0 {
		return
	}
	changes := newSheet("Changes", num("ID"), col("Comic"), col("Field"), col("Old"), col("New"))
	for _, change := range res.Changes {
		for _, f := range change.Fields {
			changes.add(strconv.FormatInt(change.ComicID, 10), change.Key.String(), f.Field, f.Old, f.New)
		}
	}
	fmt.Fprintln(out, changes)
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var sortFlag string
	var jsonOut bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List comics grouped by storyline, or ordered by id or year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			sort := comics.NormalizeSort(sortFlag)
			groups, err := a.Store.ListSorted(cmd.Context(), sort)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				if groups == nil {
					groups = []comics.Group{}
				}
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(groups)
			}
			if len(groups) == 0 {
				fmt.Fprintln(out, "No comics yet. Import a CSV to get started.")
				return nil
			}
			for _, g := range groups {
				fmt.Fprintln(out, renderComics(g.Label, g.Comics))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sortFlag, "sort", comics.SortStoryline, "Ordering: storyline, id or year")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Print JSON instead of tables")
	return cmd
}

func renderComics(title string, list []models.Comic) string {
	sh := newSheet(title,
		num("ID"), col("Issue"), num("#"), num("Start"), num("Published"),
		col("Title"), col("Storyline"), num("Order"), col("Status"))
	for _, c := range list {
		sh.add(
			strconv.FormatInt(c.ID, 10),
			c.Series,
			c.IssueNumber,
			strconv.Itoa(c.SeriesStartYear),
			yearOrBlank(c.PublishedYear),
			c.IssueTitle,
			c.Storyline,
			yearOrBlank(c.StoryOrder),
			string(c.Status),
		)
	}
	return sh.String()
}

func yearOrBlank(v int) string {
	if v == 0 {
		return ""
	}
	return strconv.Itoa(v)
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status <id>",
		Short: "Toggle a comic between Read and Unread",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid comic id %q", args[0])
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			comic, err := a.Store.ToggleStatus(cmd.Context(), id)
			if errors.Is(err, comics.ErrNotFound) {
				return fmt.Errorf("comic %d not found", id)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", comic.Key(), comic.Status)
			return nil
		},
	}
}

func newExportCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "export <out.csv>",
		Short: "Write the collection as an importable CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			list, err := a.Store.ListByID(cmd.Context())
			if err != nil {
				return err
			}
			n, err := exportCSV(args[0], list)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "exported %d comics to %s\n", n, args[0])
			return nil
		},
	}
}

// exportCSV replaces path in one step so a reader never sees a partial file.
func exportCSV(path string, list []models.Comic) (int, error) {
	var buf bytes.Buffer
	if err := importer.WriteCSV(&buf, list); err != nil {
		return 0, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create export dir: %w", err)
		}
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(list), nil
}

func newLookupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "lookup <series> <issue-number> <start-year>",
		Short: "Look up an issue's title and cover on Comic Vine",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			year, err := strconv.Atoi(strings.TrimSpace(args[2]))
			if err != nil {
				return fmt.Errorf("invalid start year %q", args[2])
			}
			a, err := ctx.ensureApp()
			if err != nil {
				return err
			}
			if a.Catalog == nil {
				return errors.New("lookup needs COMIC_VINE_API_KEY or comic_vine.api_key")
			}

			key := models.NaturalKey{Series: strings.TrimSpace(args[0]), IssueNumber: strings.TrimSpace(args[1]), StartYear: year}
			meta, ok := comicvine.NewResolver(a.Catalog, a.Logger).Resolve(cmd.Context(), key)
			out := cmd.OutOrStdout()
			if !ok {
				if a.Catalog.Breaker().Tripped() {
					return errors.New("comic vine rate limit reached; try again later")
				}
				fmt.Fprintf(out, "%s: no match\n", key)
				return nil
			}
			found := newSheet(key.String(), num("Issue ID"), col("Title"), col("Cover"))
			found.add(strconv.FormatInt(meta.IssueID, 10), meta.Title, meta.CoverImageURL)
			fmt.Fprintln(out, found)
			return nil
		},
	}
}
