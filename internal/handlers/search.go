package handlers

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/agrotrade/chat/internal/metrics"
)

var searchWordRegex = regexp.MustCompile(`[a-z0-9]+`)

// stopWords are common words to exclude from search
var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true,
	"were": true, "this": true, "that": true, "with": true, "from": true,
	"into": true, "like": true, "have": true, "has": true,
}

// SearchResult represents a single search result.
type SearchResult struct {
	MessageID string `json:"id"`
	Product   string `json:"product"`
	From      string `json:"from"`
	Content   string `json:"content"`
	CreatedAt int64  `json:"ts"`
}

// SearchResponse represents the search response.
type SearchResponse struct {
	Query   string         `json:"query"`
	Results []SearchResult `json:"results"`
	Total   int            `json:"total"`
}

// tokenize extracts searchable words from text: lowercase word runs of at
// least three characters, deduplicated, capped at five tokens. Must stay in
// step with the Redis indexer.
func tokenize(text string) []string {
	lower := strings.ToLower(text)
	words := searchWordRegex.FindAllString(lower, -1)

	seen := make(map[string]bool)
	result := make([]string, 0, len(words))
	for _, w := range words {
		if len(w) >= 3 && !seen[w] && !stopWords[w] {
			seen[w] = true
			result = append(result, w)
		}
	}

	if len(result) > 5 {
		result = result[:5]
	}

	return result
}

// Search handles full-text search over the message log. Without Redis the
// index does not exist and the search degrades to an empty result.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.Error(w, http.StatusBadRequest, "query parameter 'q' is required")
		return
	}
	if len(query) > 100 {
		h.Error(w, http.StatusBadRequest, "query too long (max 100 chars)")
		return
	}

	limit := 20
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			limit = l
		}
	}
	if limit > 100 {
		limit = 100
	}

	metrics.SearchQueries.Inc()

	tokens := tokenize(query)
	if len(tokens) == 0 || h.redis == nil {
		h.JSON(w, http.StatusOK, SearchResponse{Query: query, Results: []SearchResult{}})
		return
	}

	ids, err := h.redis.SearchMessageIDs(r.Context(), tokens, limit)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "search failed")
		return
	}

	messages, err := h.db.GetMessagesByID(r.Context(), ids)
	if err != nil {
		h.Error(w, http.StatusInternalServerError, "failed to fetch messages")
		return
	}

	results := make([]SearchResult, 0, len(messages))
	for _, msg := range messages {
		from := ""
		if msg.Sender != nil {
			from = msg.Sender.Email
		}
		results = append(results, SearchResult{
			MessageID: msg.ID,
			Product:   msg.Product,
			From:      from,
			Content:   msg.Content,
			CreatedAt: msg.CreatedAt.UnixMilli(),
		})
	}

	h.JSON(w, http.StatusOK, SearchResponse{
		Query:   query,
		Results: results,
		Total:   len(results),
	})
}
