package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ramonehamilton/NMJL-Companion/internal/api/response"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/analysis"
	"github.com/ramonehamilton/NMJL-Companion/internal/nmjl/catalog"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// PatternSource is the engine surface the pattern endpoints use.
type PatternSource interface {
	Catalog() *catalog.Catalog
	Variations(patternID string) ([]catalog.Variation, error)
}

// PatternHandler serves the active catalog.
type PatternHandler struct {
	source PatternSource
}

// NewPatternHandler creates a new PatternHandler.
func NewPatternHandler(source PatternSource) *PatternHandler {
	return &PatternHandler{source: source}
}

// PatternSummary is one catalog line.
type PatternSummary struct {
	ID            string `json:"id"`
	Section       string `json:"section"`
	Line          int    `json:"line"`
	Display       string `json:"display"`
	Points        int    `json:"points"`
	Difficulty    string `json:"difficulty"`
	ConcealedOnly bool   `json:"concealedOnly"`
	Variations    int    `json:"variations"`
	Error         string `json:"error,omitempty"`
}

// PatternDetail is a full pattern with its expansion status.
type PatternDetail struct {
	catalog.Pattern
	Variations int    `json:"variations"`
	Error      string `json:"error,omitempty"`
}

// CatalogListing is the response of GET /patterns.
type CatalogListing struct {
	Version  string           `json:"version"`
	Sections []string         `json:"sections"`
	Patterns []PatternSummary `json:"patterns"`
}

func summarize(e catalog.Entry) PatternSummary {
	s := PatternSummary{
		ID:            e.Pattern.ID,
		Section:       e.Pattern.Section,
		Line:          e.Pattern.Line,
		Display:       e.Pattern.Display,
		Points:        e.Pattern.Points,
		Difficulty:    e.Pattern.Difficulty,
		ConcealedOnly: e.Pattern.ConcealedOnly,
		Variations:    len(e.Variations),
	}
	if e.Err != nil {
		s.Error = e.Err.Error()
	}
	return s
}

// List returns every pattern, optionally filtered by ?section=.
func (h *PatternHandler) List(w http.ResponseWriter, r *http.Request) {
	cat := h.source.Catalog()
	section := strings.TrimSpace(r.URL.Query().Get("section"))

	entries, _ := cat.Entries(nil)
	out := CatalogListing{
		Version:  cat.Version(),
		Sections: cat.Sections(),
		Patterns: make([]PatternSummary, 0, len(entries)),
	}
	for _, e := range entries {
		if section != "" && !strings.EqualFold(e.Pattern.Section, section) {
			continue
		}
		out.Patterns = append(out.Patterns, summarize(e))
	}
	response.Success(w, out)
}

// Get returns one pattern.
func (h *PatternHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patternID")
	entry, ok := h.source.Catalog().Entry(id)
	if !ok {
		response.NotFound(w, errors.New("pattern not found"))
		return
	}

	detail := PatternDetail{Pattern: entry.Pattern, Variations: len(entry.Variations)}
	if entry.Err != nil {
		detail.Error = entry.Err.Error()
	}
	response.Success(w, detail)
}

// Variations returns a page of the pattern's concrete hands
// (?page=1&page_size=50).
func (h *PatternHandler) Variations(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "patternID")
	variations, err := h.source.Variations(id)
	if err != nil {
		if errors.Is(err, analysis.ErrUnknownPattern) {
			response.NotFound(w, err)
			return
		}
		response.BadRequest(w, err)
		return
	}

	page, err := queryInt(r, "page", 1)
	if err != nil || page < 1 {
		response.BadRequest(w, errors.New("page must be a positive integer"))
		return
	}
	pageSize, err := queryInt(r, "page_size", defaultPageSize)
	if err != nil || pageSize < 1 || pageSize > maxPageSize {
		response.BadRequest(w, errors.New("page_size must be between 1 and 500"))
		return
	}

	start := min((page-1)*pageSize, len(variations))
	end := min(start+pageSize, len(variations))
	response.Paginated(w, variations[start:end], page, pageSize, len(variations))
}

func queryInt(r *http.Request, key string, fallback int) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
