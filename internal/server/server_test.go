package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"authcore/internal/auth"
	"authcore/internal/security"
	"authcore/internal/session/repository"
	"authcore/internal/token"
)

type fakeVerifier struct {
	username  string
	password  string
	principal *token.Principal
}

func (f *fakeVerifier) Verify(ctx context.Context, username, password string) (*token.Principal, error) {
	if username == f.username && password == f.password {
		cp := *f.principal
		return &cp, nil
	}
	return nil, nil
}

type fixedLookup struct {
	principal *token.Principal
}

func (f *fixedLookup) ByID(ctx context.Context, id string) (*token.Principal, error) {
	if f.principal != nil && f.principal.ID == id {
		cp := *f.principal
		return &cp, nil
	}
	return nil, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *repository.MemoryStore) {
	t.Helper()
	codec, err := security.NewTestCodec()
	if err != nil {
		t.Fatalf("NewTestCodec: %v", err)
	}
	p := &token.Principal{ID: "p1", Roles: []string{"user"}, Active: true}
	store := repository.NewMemoryStore()
	tokens := token.NewService(store, codec, &fixedLookup{principal: p}, nil, nil, nil, 24*time.Hour)
	authSvc := auth.NewService(&fakeVerifier{username: "alice", password: "s3cret", principal: p}, tokens, nil)
	api := New(authSvc, tokens, store, nil)
	ts := httptest.NewServer(api.Router())
	t.Cleanup(ts.Close)
	return ts, store
}

func postJSON(t *testing.T, url string, body any, bearer string) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	return resp
}

func decodePair(t *testing.T, resp *http.Response) pairResponse {
	t.Helper()
	defer resp.Body.Close()
	var pair pairResponse
	if err := json.NewDecoder(resp.Body).Decode(&pair); err != nil {
		t.Fatalf("decode pair: %v", err)
	}
	return pair
}

func login(t *testing.T, ts *httptest.Server) pairResponse {
	t.Helper()
	resp := postJSON(t, ts.URL+"/auth/login", loginRequest{Username: "alice", Password: "s3cret"}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status: %d", resp.StatusCode)
	}
	return decodePair(t, resp)
}

func TestLoginEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)

	pair := login(t, ts)
	if pair.AccessToken == "" || pair.RefreshCredential == "" || pair.FamilyID == "" {
		t.Errorf("incomplete pair: %+v", pair)
	}

	resp := postJSON(t, ts.URL+"/auth/login", loginRequest{Username: "alice", Password: "wrong"}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("wrong password status: want 401, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/auth/login", loginRequest{Username: "alice"}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("missing password status: want 400, got %d", resp.StatusCode)
	}
}

func TestRefreshEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	pair := login(t, ts)

	resp := postJSON(t, ts.URL+"/auth/refresh", refreshRequest{RefreshCredential: pair.RefreshCredential}, "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("refresh status: %d", resp.StatusCode)
	}
	next := decodePair(t, resp)
	if next.RefreshCredential == pair.RefreshCredential {
		t.Error("refresh returned the same credential")
	}

	// Replay and an unknown credential must be externally indistinguishable.
	replay := postJSON(t, ts.URL+"/auth/refresh", refreshRequest{RefreshCredential: pair.RefreshCredential}, "")
	unknown := postJSON(t, ts.URL+"/auth/refresh", refreshRequest{RefreshCredential: "never-issued"}, "")
	for name, resp := range map[string]*http.Response{"replay": replay, "unknown": unknown} {
		var body map[string]string
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", name, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s status: want 401, got %d", name, resp.StatusCode)
		}
		if body["error"] != "reauthenticate" {
			t.Errorf("%s body: want reauthenticate, got %q", name, body["error"])
		}
	}
}

func TestLogoutEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	pair := login(t, ts)

	resp := postJSON(t, ts.URL+"/auth/logout", refreshRequest{RefreshCredential: pair.RefreshCredential}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout status: want 204, got %d", resp.StatusCode)
	}

	resp = postJSON(t, ts.URL+"/auth/refresh", refreshRequest{RefreshCredential: pair.RefreshCredential}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh after logout: want 401, got %d", resp.StatusCode)
	}
}

func TestValidateEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	pair := login(t, ts)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/validate", nil)
	req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("validate status: %d", resp.StatusCode)
	}
	var body struct {
		PrincipalID string `json:"principal_id"`
		FamilyID    string `json:"family_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.PrincipalID != "p1" || body.FamilyID != pair.FamilyID {
		t.Errorf("claims: %+v", body)
	}

	// No token and garbage token both fail closed.
	for _, bearer := range []string{"", "garbage"} {
		req, _ := http.NewRequest(http.MethodGet, ts.URL+"/auth/validate", nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("validate: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("bearer %q: want 401, got %d", bearer, resp.StatusCode)
		}
	}
}

func TestSessionAdminEndpoints(t *testing.T) {
	ts, _ := newTestServer(t)
	deviceA := login(t, ts)
	deviceB := login(t, ts)

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/sessions", nil)
	req.Header.Set("Authorization", "Bearer "+deviceA.AccessToken)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list sessions: %v", err)
	}
	var listBody struct {
		Sessions []sessionResponse `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&listBody); err != nil {
		t.Fatalf("decode sessions: %v", err)
	}
	resp.Body.Close()
	if len(listBody.Sessions) != 2 {
		t.Fatalf("sessions: want 2, got %d", len(listBody.Sessions))
	}
	currents := 0
	for _, s := range listBody.Sessions {
		if s.Current {
			currents++
			if s.FamilyID != deviceA.FamilyID {
				t.Errorf("current flag on wrong family %s", s.FamilyID)
			}
		}
	}
	if currents != 1 {
		t.Errorf("current sessions: want 1, got %d", currents)
	}

	// Revoke device B's family from device A.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+deviceB.FamilyID, nil)
	req.Header.Set("Authorization", "Bearer "+deviceA.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("revoke session: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("revoke status: want 204, got %d", resp.StatusCode)
	}

	// Device B can no longer refresh.
	resp = postJSON(t, ts.URL+"/auth/refresh", refreshRequest{RefreshCredential: deviceB.RefreshCredential}, "")
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("refresh revoked family: want 401, got %d", resp.StatusCode)
	}

	// Unknown family id is a 404.
	req, _ = http.NewRequest(http.MethodDelete, ts.URL+"/sessions/no-such-family", nil)
	req.Header.Set("Authorization", "Bearer "+deviceA.AccessToken)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("revoke unknown: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("revoke unknown: want 404, got %d", resp.StatusCode)
	}
}

func TestLogoutAllEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	deviceA := login(t, ts)
	deviceB := login(t, ts)

	resp := postJSON(t, ts.URL+"/auth/logout_all", struct{}{}, deviceA.AccessToken)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("logout_all status: want 204, got %d", resp.StatusCode)
	}

	for _, cred := range []string{deviceA.RefreshCredential, deviceB.RefreshCredential} {
		resp := postJSON(t, ts.URL+"/auth/refresh", refreshRequest{RefreshCredential: cred}, "")
		resp.Body.Close()
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("refresh after logout_all: want 401, got %d", resp.StatusCode)
		}
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts, _ := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status: want 200, got %d", resp.StatusCode)
	}
}
