package handler

import (
	"net/http"
	"slices"
	"testing"
)

func TestSearchHistoryHandler_AddListClear(t *testing.T) {
	env := newTestEnv(t, nil)

	if got := decodeJSON[searchHistoryResponse](t, env.get("/api/search-history")); len(got.History) != 0 {
		t.Fatalf("initial history = %v, want empty", got.History)
	}

	for _, term := range []string{"matrix", "  Inception ", "MATRIX", "   "} {
		resp := env.do(http.MethodPost, "/api/search-history", searchTermRequest{Term: term})
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("add %q status = %d", term, resp.StatusCode)
		}
	}

	got := decodeJSON[searchHistoryResponse](t, env.get("/api/search-history"))
	if want := []string{"MATRIX", "Inception"}; !slices.Equal(got.History, want) {
		t.Errorf("history = %v, want %v", got.History, want)
	}

	resp := env.do(http.MethodDelete, "/api/search-history", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}
	if got := decodeJSON[searchHistoryResponse](t, env.get("/api/search-history")); len(got.History) != 0 {
		t.Errorf("history after clear = %v", got.History)
	}
}

func TestSearchHistoryHandler_KeepsMostRecentTen(t *testing.T) {
	env := newTestEnv(t, nil)

	for _, term := range []string{"a1", "a2", "a3", "a4", "a5", "a6", "a7", "a8", "a9", "a10", "a11", "a12"} {
		env.do(http.MethodPost, "/api/search-history", searchTermRequest{Term: term})
	}

	got := decodeJSON[searchHistoryResponse](t, env.get("/api/search-history"))
	if len(got.History) != 10 {
		t.Fatalf("len = %d, want 10", len(got.History))
	}
	if got.History[0] != "a12" || got.History[9] != "a3" {
		t.Errorf("history = %v", got.History)
	}
}

func TestSearchHistoryHandler_InvalidBody(t *testing.T) {
	env := newTestEnv(t, nil)

	req, err := http.NewRequest(http.MethodPost, env.server.URL+"/api/search-history", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-CSRF-Token", env.csrfToken())
	resp, err := env.client.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}
