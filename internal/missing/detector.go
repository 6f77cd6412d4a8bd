package missing

import (
	"context"
	"log/slog"
	"strconv"

	"bookarr/internal/catalog"
	"bookarr/internal/logging"
	"bookarr/internal/services"
	"bookarr/internal/services/itunes"
	"bookarr/internal/services/openlibrary"
	"bookarr/internal/textutil"
)

// SourceBibliography tags works reported straight from the bibliography
// provider.
const SourceBibliography = "openlibrary"

// Work is a known-but-unowned title.
type Work struct {
	Title            string `json:"title"`
	ExternalID       string `json:"externalId,omitempty"`
	FirstPublishYear int    `json:"firstPublishYear,omitempty"`
	CoverURL         string `json:"coverUrl,omitempty"`
	Source           string `json:"source"`
}

// Bibliography lists an author's full known works.
type Bibliography interface {
	AuthorWorks(ctx context.Context, externalID string, limit int) ([]openlibrary.Work, error)
}

// CandidateProvider supplies cover candidates for works the bibliography
// lists without artwork.
type CandidateProvider interface {
	SearchCandidates(ctx context.Context, author, title string, limit int) ([]itunes.Candidate, error)
}

// Detector computes missing works per author.
type Detector struct {
	store        *catalog.Store
	bibliography Bibliography
	candidates   CandidateProvider
	logger       *slog.Logger
}

// New constructs a Detector. The candidate provider may be nil to skip
// cover enrichment.
func New(store *catalog.Store, bibliography Bibliography, candidates CandidateProvider, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Detector{
		store:        store,
		bibliography: bibliography,
		candidates:   candidates,
		logger:       logger.With(logging.String(logging.FieldComponent, "missing")),
	}
}

// MissingFor returns the author's known works not present in the library,
// deduplicated by normalized title. The result is empty, not an error, when
// the author owns everything.
func (d *Detector) MissingFor(ctx context.Context, authorID int64) ([]Work, error) {
	author, err := d.store.GetAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	if author == nil {
		return nil, services.Wrap(services.ErrNotFound, "catalog", "missing works", "author "+strconv.FormatInt(authorID, 10), nil)
	}
	if author.ExternalID == "" {
		return nil, services.Wrap(services.ErrValidation, "catalog", "missing works", "author has no bibliography identifier", nil)
	}

	known, err := d.bibliography.AuthorWorks(ctx, author.ExternalID, 0)
	if err != nil {
		return nil, err
	}

	owned, err := d.store.ListBooksByAuthor(ctx, authorID)
	if err != nil {
		return nil, err
	}
	ownedTitles := make(map[string]bool, len(owned))
	for _, book := range owned {
		ownedTitles[book.NormalizedTitle] = true
	}

	seen := make(map[string]bool, len(known))
	result := make([]Work, 0)
	for _, work := range known {
		normalized := textutil.NormalizeTitle(work.Title)
		if normalized == "" || ownedTitles[normalized] || seen[normalized] {
			continue
		}
		seen[normalized] = true
		result = append(result, Work{
			Title:            work.Title,
			ExternalID:       work.ExternalID,
			FirstPublishYear: work.FirstPublishYear,
			CoverURL:         work.CoverURL,
			Source:           SourceBibliography,
		})
	}

	d.enrichCovers(ctx, author.Name, result)

	d.logger.Debug("missing works computed",
		logging.Int64(logging.FieldAuthorID, authorID),
		logging.Int("known", len(known)),
		logging.Int("owned", len(owned)),
		logging.Int("missing", len(result)))
	return result, nil
}

// enrichCovers fills artwork for works the bibliography lists without one.
// Best-effort: a provider failure leaves the work as-is.
func (d *Detector) enrichCovers(ctx context.Context, authorName string, works []Work) {
	if d.candidates == nil {
		return
	}
	for i := range works {
		if works[i].CoverURL != "" {
			continue
		}
		candidates, err := d.candidates.SearchCandidates(ctx, authorName, works[i].Title, 1)
		if err != nil {
			d.logger.Debug("cover candidate lookup failed", logging.String("title", works[i].Title), logging.Error(err))
			continue
		}
		if len(candidates) > 0 && candidates[0].CoverURL != "" {
			works[i].CoverURL = candidates[0].CoverURL
			works[i].Source = candidates[0].Source
		}
	}
}
