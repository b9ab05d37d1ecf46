package web

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSPAHandlerServesIndexForClientRoutes(t *testing.T) {
	h := SPAHandler()

	for _, path := range []string{"/", "/weather", "/market/prices"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rr.Code)
		}
		if !strings.Contains(rr.Body.String(), "SmartKissan") {
			t.Errorf("%s: expected index page, got %q", path, rr.Body.String())
		}
	}
}

func TestSPAHandlerUnknownAPIPathIsJSON404(t *testing.T) {
	rr := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/nope", nil))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("Expected 404, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON, got %q", ct)
	}
}

func TestSPAHandlerIndexIsNotCached(t *testing.T) {
	rr := httptest.NewRecorder()
	SPAHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/profile", nil))
	if got := rr.Header().Get("Cache-Control"); got != "no-cache" {
		t.Errorf("Expected no-cache on index, got %q", got)
	}
}
