package handler

import (
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/hitoshi/movieverse/internal/contact"
	"github.com/hitoshi/movieverse/internal/model"
)

func contactForm() contact.Form {
	return contact.Form{
		Name:    "Morpheus",
		Email:   "morpheus@example.com",
		Subject: "Catalog",
		Message: "Please add more <em>classics</em>.",
	}
}

func TestContactHandler_SubmitAnonymous(t *testing.T) {
	env := newTestEnv(t, nil)

	resp := env.do(http.MethodPost, "/api/contact", contactForm())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	got := decodeJSON[contactResponse](t, resp)
	if !got.Success || got.Message != contact.MsgSent {
		t.Errorf("body = %+v", got)
	}

	saved := env.contacts.all()
	if len(saved) != 1 {
		t.Fatalf("saved = %d messages, want 1", len(saved))
	}
	if saved[0].UserID != "" {
		t.Errorf("UserID = %q, want empty for an anonymous sender", saved[0].UserID)
	}
	if strings.Contains(saved[0].Message, "<em>") {
		t.Errorf("Message = %q, want markup removed", saved[0].Message)
	}
}

func TestContactHandler_SubmitSignedIn(t *testing.T) {
	env := newTestEnv(t, nil)
	env.signUp("neo", "neo@example.com", "matrix1")

	resp := env.do(http.MethodPost, "/api/contact", contactForm())
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}
	saved := env.contacts.all()
	if len(saved) != 1 || saved[0].UserID == "" {
		t.Errorf("saved = %+v, want the signed-in user attached", saved)
	}
}

func TestContactHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		body       any
		storeErr   error
		wantStatus int
		wantCode   string
	}{
		{"invalid json", "not an object", nil, http.StatusBadRequest, "INVALID_REQUEST"},
		{"missing fields", contact.Form{Name: "Neo"}, nil, http.StatusBadRequest, model.ErrCodeValidation},
		{"bad email", func() contact.Form { f := contactForm(); f.Email = "neo"; return f }(), nil, http.StatusBadRequest, model.ErrCodeValidation},
		{"store failure", contactForm(), errors.New("db down"), http.StatusInternalServerError, model.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.contacts.err = tt.storeErr

			resp := env.do(http.MethodPost, "/api/contact", tt.body)
			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			if got := decodeJSON[apiErrorResponse](t, resp); got.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", got.Code, tt.wantCode)
			}
			if len(env.contacts.all()) != 0 {
				t.Error("nothing should be saved")
			}
		})
	}
}

func TestContactHandler_RequiresCSRF(t *testing.T) {
	env := newTestEnv(t, nil)

	resp, err := env.client.Post(env.server.URL+"/api/contact", "application/json", strings.NewReader(`{}`))
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusForbidden)
	}
}
