package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/timmy/pokedex/internal/domain"
	"github.com/timmy/pokedex/internal/service"
)

const maxSearchLimit = 50

// SearchHandler exposes the keyword index to the front end's result list.
type SearchHandler struct {
	searcher service.Searcher
}

// NewSearchHandler creates a new search handler.
// Parameters:
//   - searcher: keyword search backend.
// Returns:
//   - *SearchHandler: initialized handler.
func NewSearchHandler(searcher service.Searcher) *SearchHandler {
	return &SearchHandler{searcher: searcher}
}

// SearchResponse represents the search API response.
type SearchResponse struct {
	Query   string             `json:"query"`
	Results []domain.SearchHit `json:"results"`
	Total   int                `json:"total"`
}

// Search handles GET /api/v1/search?q=<query>&limit=<n>.
// Parameters:
//   - c: Gin request context.
// Returns: none (writes JSON response).
func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		writeError(c, domain.NewError(domain.KindValidation, "query parameter 'q' is required"))
		return
	}

	limit := 10
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(c, domain.NewError(domain.KindValidation, "limit must be a positive integer"))
			return
		}
		limit = min(n, maxSearchLimit)
	}

	hits, err := h.searcher.Search(c.Request.Context(), query, limit)
	if err != nil {
		writeError(c, domain.WrapError(domain.KindSearchFailed, err, "search failed"))
		return
	}
	if hits == nil {
		hits = []domain.SearchHit{}
	}

	c.JSON(http.StatusOK, SearchResponse{
		Query:   query,
		Results: hits,
		Total:   len(hits),
	})
}
