package comicvine

// envelope is the wrapper Comic Vine puts around every payload.
type envelope struct {
	Error                string `json:"error"`
	Limit                int    `json:"limit"`
	Offset               int    `json:"offset"`
	NumberOfPageResults  int    `json:"number_of_page_results"`
	NumberOfTotalResults int    `json:"number_of_total_results"`
	StatusCode           int    `json:"status_code"`
}

// Volume is a series/run in the catalog.
type Volume struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	StartYear    string `json:"start_year"`
	ResourceType string `json:"resource_type"`
}

func (v Volume) listingID() int64 { return v.ID }

// IssueSummary is one row of the issues-by-volume listing.
type IssueSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IssueNumber string `json:"issue_number"`
}

func (i IssueSummary) listingID() int64 { return i.ID }

// listed is a row of a paginated listing.
type listed interface {
	listingID() int64
}

// Image holds the cover URLs of an issue. Only the original is used.
type Image struct {
	OriginalURL string `json:"original_url"`
	MediumURL   string `json:"medium_url"`
	ThumbURL    string `json:"thumb_url"`
}

// IssueDetail is the single-issue payload.
type IssueDetail struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	IssueNumber string `json:"issue_number"`
	CoverDate   string `json:"cover_date"`
	Image       *Image `json:"image"`
}

// page is one slice of a paginated listing.
type page[T any] struct {
	envelope
	Results []T `json:"results"`
}

type issueResponse struct {
	envelope
	Results IssueDetail `json:"results"`
}

// statusOK is the envelope status_code for a successful call.
const statusOK = 1

func (e envelope) ok() bool {
	// 0 means the field was absent; trust the HTTP status in that case.
	return e.StatusCode == 0 || e.StatusCode == statusOK
}
