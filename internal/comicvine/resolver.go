package comicvine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"comicshelf/internal/logging"
	"comicshelf/pkg/models"
)

// PageSize is the page size used for every paginated search.
const PageSize = 100

// MaxPages bounds one listing scan.
const MaxPages = 50

// Caller is the one operation the resolver needs from a Client.
type Caller interface {
	Call(ctx context.Context, endpoint string, params url.Values, out any) bool
}

var (
	errNoMatch     = errors.New("no match")
	errUnavailable = errors.New("catalog unavailable")
)

// Resolver turns a natural key into issue metadata. The catalog has no
// lookup by series name, year and number, so it takes three calls at least:
// find the volume, find the issue in that volume, fetch the issue.
type Resolver struct {
	caller   Caller
	pageSize int
	logger   *slog.Logger
}

func NewResolver(caller Caller, logger *slog.Logger) *Resolver {
	return &Resolver{
		caller:   caller,
		pageSize: PageSize,
		logger:   logging.OrDiscard(logger).With(slog.String("component", "resolver")),
	}
}

// Resolve returns the title and cover of the issue, or false if any stage
// fails. Partial results are never returned.
func (r *Resolver) Resolve(ctx context.Context, key models.NaturalKey) (*models.IssueMetadata, bool) {
	logger := r.logger.With(
		slog.String("series", key.Series),
		slog.Int("start_year", key.StartYear),
		slog.String("issue_number", key.IssueNumber),
	)

	volume, err := scanPages(ctx, r, "/search/", url.Values{
		"query":     {key.Series},
		"resources": {"volume"},
	}, func(v Volume) bool {
		return yearMatches(v.StartYear, key.StartYear)
	})
	if err != nil {
		if errors.Is(err, errNoMatch) {
			logger.Info("series not found")
		}
		return nil, false
	}

	want := CanonicalIssueNumber(key.IssueNumber)
	issue, err := scanPages(ctx, r, "/issues/", url.Values{
		"filter": {fmt.Sprintf("volume:%d", volume.ID)},
	}, func(i IssueSummary) bool {
		return CanonicalIssueNumber(i.IssueNumber) == want
	})
	if err != nil {
		if errors.Is(err, errNoMatch) {
			logger.Info("issue not found", slog.Int64("volume_id", volume.ID))
		}
		return nil, false
	}

	var detail issueResponse
	if !r.caller.Call(ctx, fmt.Sprintf("/issue/4000-%d/", issue.ID), url.Values{}, &detail) {
		return nil, false
	}

	meta := &models.IssueMetadata{
		IssueID: detail.Results.ID,
		Title:   strings.TrimSpace(detail.Results.Name),
	}
	if detail.Results.Image != nil {
		meta.CoverImageURL = strings.TrimSpace(detail.Results.Image.OriginalURL)
	}
	if meta.IssueID == 0 {
		meta.IssueID = issue.ID
	}
	logger.Debug("issue resolved", slog.Int64("issue_id", meta.IssueID))
	return meta, true
}

// scanPages walks a listing page by page and returns the first item, in
// page order, that match accepts. It stops on a match, on a short or empty
// page, once the reported total has been read, when a page repeats the
// previous one, or after MaxPages pages.
func scanPages[T listed](ctx context.Context, r *Resolver, endpoint string, base url.Values, match func(T) bool) (T, error) {
	var zero T
	var prevFirst int64
	for n := 0; n < MaxPages; n++ {
		offset := n * r.pageSize
		params := url.Values{}
		for k, v := range base {
			params[k] = v
		}
		params.Set("offset", strconv.Itoa(offset))
		params.Set("limit", strconv.Itoa(r.pageSize))

		var p page[T]
		if !r.caller.Call(ctx, endpoint, params, &p) {
			return zero, errUnavailable
		}
		if len(p.Results) > 0 {
			first := p.Results[0].listingID()
			if n > 0 && first == prevFirst {
				r.logger.Warn("listing ignored offset", slog.String("endpoint", endpoint), slog.Int("offset", offset))
				return zero, errNoMatch
			}
			prevFirst = first
		}
		for _, item := range p.Results {
			if match(item) {
				return item, nil
			}
		}

		got := len(p.Results)
		if got < r.pageSize {
			return zero, errNoMatch
		}
		if p.NumberOfTotalResults > 0 && offset+got >= p.NumberOfTotalResults {
			return zero, errNoMatch
		}
	}
	r.logger.Warn("listing scan hit page cap", slog.String("endpoint", endpoint), slog.Int("pages", MaxPages))
	return zero, errNoMatch
}

func yearMatches(raw string, want int) bool {
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	return err == nil && year == want
}

// CanonicalIssueNumber normalizes an issue number for comparison. Decimal
// numbers lose leading and trailing zeros ("001" and "1.0" both become "1")
// without going through a float, so long numbers stay exact. Anything else
// is trimmed and lowercased.
func CanonicalIssueNumber(raw string) string {
	s := strings.TrimSpace(raw)
	if !isDecimal(s) {
		return strings.ToLower(s)
	}
	neg := strings.HasPrefix(s, "-")
	whole, frac, _ := strings.Cut(strings.TrimPrefix(s, "-"), ".")
	whole = strings.TrimLeft(whole, "0")
	frac = strings.TrimRight(frac, "0")
	if whole == "" {
		whole = "0"
	}
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg && out != "0" {
		out = "-" + out
	}
	return out
}

func isDecimal(s string) bool {
	s = strings.TrimPrefix(s, "-")
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}
