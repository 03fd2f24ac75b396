package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"

	"courtline/internal/config"
	"courtline/internal/db"
	"courtline/internal/domain"
	"courtline/internal/engine"
	"courtline/internal/migrate"
	"courtline/internal/session"
)

type testServer struct {
	URL    string
	Engine engine.Engine
	client *http.Client
	close  func()
}

func (s *testServer) Client() *http.Client { return s.client }
func (s *testServer) Close()               { s.close() }

func newTestServer(t *testing.T, cfg *config.Config) (*testServer, func()) {
	t.Helper()
	workspace := t.TempDir()
	if cfg == nil {
		cfg = config.Default()
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	e := engine.New(conn, cfg)
	sessions := session.NewStore(conn, cfg, nil)
	handler, err := New(Config{Engine: e, Sessions: sessions, BasePath: "/v1"})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	ln, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := &http.Server{Handler: handler}
	go srv.Serve(ln)
	testSrv := &testServer{
		URL:    "http://" + ln.Addr().String(),
		Engine: e,
		client: &http.Client{},
		close: func() {
			srv.Shutdown(context.Background())
			ln.Close()
			conn.Close()
		},
	}
	return testSrv, func() { testSrv.Close() }
}

func (s *testServer) seedUser(t *testing.T, username, password, role string) domain.User {
	t.Helper()
	hash, err := session.HashPassword(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	now := time.Now().UTC().Format(time.RFC3339)
	u := domain.User{
		ID:           uuid.NewString(),
		Email:        username + "@example.org",
		Username:     username,
		PasswordHash: hash,
		FullName:     "Test " + username,
		Role:         role,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Engine.Repo.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return u
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	res, data := doJSON(t, s.client, http.MethodPost, s.URL+"/v1/auth/login", map[string]any{
		"identifier": username,
		"password":   password,
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("login status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal login: %v", err)
	}
	return out.Token
}

func bearer(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func doJSON(t *testing.T, client *http.Client, method, url string, body any, headers map[string]string) (*http.Response, []byte) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	res, err := client.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer res.Body.Close()
	data, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return res, data
}

func TestRegisterLoginMe(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", map[string]any{
		"email":     "funke@example.org",
		"username":  "funke",
		"password":  "sufficient-secret",
		"full_name": "Funke A",
	}, nil)
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("register status %d: %s", res.StatusCode, string(data))
	}

	// duplicate email refused
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/register", map[string]any{
		"email":     "funke@example.org",
		"username":  "funke2",
		"password":  "sufficient-secret",
		"full_name": "Funke B",
	}, nil)
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for duplicate email, got %d", res.StatusCode)
	}

	token := srv.login(t, "funke", "sufficient-secret")
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/me", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("me status %d: %s", res.StatusCode, string(data))
	}
	var me domain.User
	if err := json.Unmarshal(data, &me); err != nil {
		t.Fatalf("unmarshal me: %v", err)
	}
	if me.Username != "funke" || me.Role != domain.RoleSingle {
		t.Fatalf("unexpected me: %+v", me)
	}

	// no token means 401
	res, _ = doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/me", nil, nil)
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", res.StatusCode)
	}
}

func TestApplicationWorkflowOverHTTP(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	srv.seedUser(t, "single", "sufficient-secret", domain.RoleSingle)
	srv.seedUser(t, "member", "sufficient-secret", domain.RoleCommitteeMember)
	singleToken := srv.login(t, "single", "sufficient-secret")
	memberToken := srv.login(t, "member", "sufficient-secret")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications", map[string]any{
		"applicant_type": "brother",
		"partner_name":   "Sister Grace",
		"age":            30,
		"occupation":     "engineer",
	}, bearer(singleToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var app domain.Application
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("unmarshal application: %v", err)
	}

	// the applicant may not advance stages
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/stage", map[string]any{}, bearer(singleToken))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for single advancing, got %d", res.StatusCode)
	}

	// skipping ahead conflicts
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/stage", map[string]any{
		"stage": domain.StageCourtship,
	}, bearer(memberToken))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for skip, got %d: %s", res.StatusCode, string(data))
	}

	// the immediate successor works
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/stage", map[string]any{}, bearer(memberToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("advance status %d: %s", res.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, &app); err != nil {
		t.Fatalf("unmarshal advanced: %v", err)
	}
	if app.CurrentStage != domain.StageFormReview {
		t.Fatalf("stage = %s", app.CurrentStage)
	}

	// the applicant sees their own application
	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/applications/"+app.ID, nil, bearer(singleToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("get status %d: %s", res.StatusCode, string(data))
	}
	var detail ApplicationDetail
	if err := json.Unmarshal(data, &detail); err != nil {
		t.Fatalf("unmarshal detail: %v", err)
	}
	if len(detail.History) != 2 {
		t.Fatalf("expected 2 history records, got %d", len(detail.History))
	}
}

func TestPacingViolationReturns422(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	single := srv.seedUser(t, "couple", "sufficient-secret", domain.RoleSingle)
	srv.seedUser(t, "pacer", "sufficient-secret", domain.RoleCommitteeMember)
	singleToken := srv.login(t, "couple", "sufficient-secret")
	memberToken := srv.login(t, "pacer", "sufficient-secret")

	res, data := doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications", map[string]any{
		"applicant_type": "sister",
		"partner_name":   "Brother John",
	}, bearer(singleToken))
	if res.StatusCode != http.StatusCreated {
		t.Fatalf("create status %d: %s", res.StatusCode, string(data))
	}
	var app domain.Application
	_ = json.Unmarshal(data, &app)
	_ = single

	for i := 0; i < 6; i++ {
		res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/stage", map[string]any{}, bearer(memberToken))
		if res.StatusCode != http.StatusOK {
			t.Fatalf("advance %d status %d: %s", i, res.StatusCode, string(data))
		}
	}
	_ = json.Unmarshal(data, &app)
	if app.CurrentStage != domain.StageCourtship {
		t.Fatalf("stage = %s", app.CurrentStage)
	}

	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/courtship/weeks/1/complete", map[string]any{}, bearer(singleToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("complete week 1 status %d: %s", res.StatusCode, string(data))
	}

	// the second completion inside the window is refused
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/courtship/weeks/2/complete", map[string]any{}, bearer(singleToken))
	if res.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "pacing_violation" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}
	if envelope.Error.Details["next_allowed"] == "" {
		t.Fatalf("expected next_allowed detail")
	}

	// completing out of order conflicts
	res, _ = doJSON(t, client, http.MethodPost, srv.URL+"/v1/applications/"+app.ID+"/courtship/weeks/5/complete", map[string]any{}, bearer(singleToken))
	if res.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409 for wrong week, got %d", res.StatusCode)
	}
}

func TestSessionExpiryOverHTTP(t *testing.T) {
	cfg := config.Default()
	cfg.Session.IdleTimeout = "50ms"
	srv, cleanup := newTestServer(t, cfg)
	defer cleanup()
	client := srv.Client()

	srv.seedUser(t, "sleepy", "sufficient-secret", domain.RoleSingle)
	token := srv.login(t, "sleepy", "sufficient-secret")

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/me", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("fresh session status %d", res.StatusCode)
	}

	time.Sleep(100 * time.Millisecond)
	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/auth/me", nil, bearer(token))
	if res.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 after idle timeout, got %d: %s", res.StatusCode, string(data))
	}
	var envelope struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		t.Fatalf("unmarshal error: %v", err)
	}
	if envelope.Error.Code != "session_expired" {
		t.Fatalf("code = %s", envelope.Error.Code)
	}

	// the next login carries the inactivity marker
	res, data = doJSON(t, client, http.MethodPost, srv.URL+"/v1/auth/login", map[string]any{
		"identifier": "sleepy",
		"password":   "sufficient-secret",
	}, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("relogin status %d: %s", res.StatusCode, string(data))
	}
	var out LoginResponse
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("unmarshal relogin: %v", err)
	}
	if out.LogoutReason != session.ReasonInactivity {
		t.Fatalf("logout reason = %s", out.LogoutReason)
	}
}

func TestDashboardRequiresCommitteeRole(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	srv.seedUser(t, "plain", "sufficient-secret", domain.RoleSingle)
	srv.seedUser(t, "seer", "sufficient-secret", domain.RoleOverseer)
	plainToken := srv.login(t, "plain", "sufficient-secret")
	seerToken := srv.login(t, "seer", "sufficient-secret")

	res, _ := doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/stats", nil, bearer(plainToken))
	if res.StatusCode != http.StatusForbidden {
		t.Fatalf("expected 403 for single, got %d", res.StatusCode)
	}

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/stats", nil, bearer(seerToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("dashboard status %d: %s", res.StatusCode, string(data))
	}
	var dash DashboardResponse
	if err := json.Unmarshal(data, &dash); err != nil {
		t.Fatalf("unmarshal dashboard: %v", err)
	}
	if dash.ByRole[domain.RoleSingle] != 1 || dash.ByRole[domain.RoleOverseer] != 1 {
		t.Fatalf("unexpected role counts: %+v", dash.ByRole)
	}
	if dash.Sessions != 2 {
		t.Fatalf("expected 2 live sessions, got %d", dash.Sessions)
	}

	res, data = doJSON(t, client, http.MethodGet, srv.URL+"/v1/dashboard/recent-activity", nil, bearer(seerToken))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("recent activity status %d: %s", res.StatusCode, string(data))
	}
	var activity []domain.Event
	if err := json.Unmarshal(data, &activity); err != nil {
		t.Fatalf("unmarshal activity: %v", err)
	}
	for _, evt := range activity {
		if evt.Type == "" || evt.TS == "" {
			t.Fatalf("incomplete event: %+v", evt)
		}
	}
}

func TestCurriculumEndpoint(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	srv.seedUser(t, "reader", "sufficient-secret", domain.RoleSingle)
	token := srv.login(t, "reader", "sufficient-secret")

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/courtship/curriculum", nil, bearer(token))
	if res.StatusCode != http.StatusOK {
		t.Fatalf("curriculum status %d: %s", res.StatusCode, string(data))
	}
	var topics []map[string]any
	if err := json.Unmarshal(data, &topics); err != nil {
		t.Fatalf("unmarshal topics: %v", err)
	}
	if len(topics) != domain.CourtshipWeeks {
		t.Fatalf("expected %d topics, got %d", domain.CourtshipWeeks, len(topics))
	}
}

func TestOpenAPIServedWithoutAuth(t *testing.T) {
	srv, cleanup := newTestServer(t, nil)
	defer cleanup()
	client := srv.Client()

	res, data := doJSON(t, client, http.MethodGet, srv.URL+"/v1/openapi.json", nil, nil)
	if res.StatusCode != http.StatusOK {
		t.Fatalf("openapi status %d: %s", res.StatusCode, string(data))
	}
	var oas map[string]any
	if err := json.Unmarshal(data, &oas); err != nil {
		t.Fatalf("unmarshal openapi: %v", err)
	}
	if _, ok := oas["paths"]; !ok {
		t.Fatal("openapi document has no paths")
	}
}
