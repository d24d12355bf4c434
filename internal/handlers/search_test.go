package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"fresh tomatoes", []string{"fresh", "tomatoes"}},
		{"The Tomatoes And The Rice", []string{"tomatoes", "rice"}},
		{"a an to", []string{}},
		{"price?! price... PRICE", []string{"price"}},
		{"one two six ten too many tokens here now", []string{"one", "two", "six", "ten", "too"}},
	}

	for _, tt := range tests {
		got := tokenize(tt.input)
		if len(got) == 0 && len(tt.want) == 0 {
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("tokenize(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	h, _ := newTestHandler()

	req := httptest.NewRequest("GET", "/api/find", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}

	req = httptest.NewRequest("GET", "/api/find?q="+strings.Repeat("x", 101), nil)
	rec = httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("oversized query: status = %d, want 400", rec.Code)
	}
}

func TestSearchDegradesWithoutRedis(t *testing.T) {
	h, _ := newTestHandler() // no redis configured

	req := httptest.NewRequest("GET", "/api/find?q=tomatoes", nil)
	rec := httptest.NewRecorder()
	h.Search(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp SearchResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(resp.Results) != 0 {
		t.Errorf("results = %d, want 0", len(resp.Results))
	}
	if resp.Query != "tomatoes" {
		t.Errorf("query echoed as %q", resp.Query)
	}
}
