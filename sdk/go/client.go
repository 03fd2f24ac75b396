package courtlinesdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Courtline HTTP API client.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration

	// OnUnauthorized runs when the server answers 401, so callers can
	// drop a stale session token and re-login.
	OnUnauthorized func()
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// User represents an account (partial).
type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
	Region   string `json:"region,omitempty"`
	Division string `json:"division,omitempty"`
	IsActive bool   `json:"is_active"`
}

// Application represents a marriage application (partial).
type Application struct {
	ID                string  `json:"id"`
	ApplicationNumber string  `json:"application_number"`
	ApplicantID       string  `json:"applicant_id"`
	PartnerName       string  `json:"partner_name"`
	CurrentStage      string  `json:"current_stage"`
	Status            string  `json:"status"`
	ApprovedAt        *string `json:"approved_at,omitempty"`
	CreatedAt         string  `json:"created_at"`
}

// StageRecord is one stage history entry.
type StageRecord struct {
	ID            string  `json:"id"`
	ApplicationID string  `json:"application_id"`
	StageName     string  `json:"stage_name"`
	StageOrder    int     `json:"stage_order"`
	Status        string  `json:"status"`
	Notes         string  `json:"notes,omitempty"`
	StartedAt     string  `json:"started_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
}

// ApplicationDetail bundles an application with its history.
type ApplicationDetail struct {
	Application Application   `json:"application"`
	History     []StageRecord `json:"history"`
}

// CourtshipWeek is one curriculum unit.
type CourtshipWeek struct {
	ApplicationID  string  `json:"application_id"`
	Week           int     `json:"week"`
	Status         string  `json:"status"`
	CoupleNotes    string  `json:"couple_notes,omitempty"`
	CounselorNotes string  `json:"counselor_notes,omitempty"`
	CompletedAt    *string `json:"completed_at,omitempty"`
}

// CourtshipProgress summarizes tracker state.
type CourtshipProgress struct {
	ApplicationID  string          `json:"application_id"`
	CurrentWeek    int             `json:"current_week"`
	CompletedWeeks int             `json:"completed_weeks"`
	TotalWeeks     int             `json:"total_weeks"`
	Done           bool            `json:"done"`
	Weeks          []CourtshipWeek `json:"weeks"`
}

// Notification is one inbox entry.
type Notification struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Read      bool   `json:"read"`
	CreatedAt string `json:"created_at"`
}

// LoginResult is the login response.
type LoginResult struct {
	Token        string `json:"token"`
	User         User   `json:"user"`
	ReturnPath   string `json:"return_path,omitempty"`
	LogoutReason string `json:"logout_reason,omitempty"`
}

// APIError wraps non-2xx responses using the server's error envelope.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
}

// Login authenticates and stores the session token on the client.
func (c *Client) Login(ctx context.Context, identifier, password string) (LoginResult, error) {
	body := map[string]any{
		"identifier": identifier,
		"password":   password,
	}
	var resp LoginResult
	if err := c.do(ctx, http.MethodPost, "auth/login", body, &resp); err != nil {
		return LoginResult{}, err
	}
	c.Token = resp.Token
	return resp, nil
}

// Logout ends the current session.
func (c *Client) Logout(ctx context.Context, returnPath string) error {
	body := map[string]any{"return_path": returnPath}
	err := c.do(ctx, http.MethodPost, "auth/logout", body, nil)
	if err == nil {
		c.Token = ""
	}
	return err
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context) (User, error) {
	var resp User
	err := c.do(ctx, http.MethodGet, "auth/me", nil, &resp)
	return resp, err
}

// CreateApplication submits a new application. Fields follow the API
// body for POST /applications.
func (c *Client) CreateApplication(ctx context.Context, fields map[string]any) (Application, error) {
	var resp Application
	err := c.do(ctx, http.MethodPost, "applications", fields, &resp)
	return resp, err
}

// ApplicationsPage is a paginated application listing.
type ApplicationsPage struct {
	Items []Application `json:"items"`
	Meta  struct {
		Page    int `json:"page"`
		PerPage int `json:"per_page"`
		Total   int `json:"total"`
	} `json:"meta"`
}

// Applications lists applications visible to the caller.
func (c *Client) Applications(ctx context.Context, page int) (ApplicationsPage, error) {
	endpoint := "applications"
	if page > 0 {
		endpoint = fmt.Sprintf("%s?page=%d", endpoint, page)
	}
	var resp ApplicationsPage
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// Application fetches one application with its stage history.
func (c *Client) Application(ctx context.Context, id string) (ApplicationDetail, error) {
	var resp ApplicationDetail
	err := c.do(ctx, http.MethodGet, "applications/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// AdvanceStage completes or rejects the current stage.
func (c *Client) AdvanceStage(ctx context.Context, id, outcome, notes string) (Application, error) {
	body := map[string]any{
		"outcome": outcome,
		"notes":   notes,
	}
	var resp Application
	endpoint := fmt.Sprintf("applications/%s/stage", url.PathEscape(id))
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Courtship returns tracker progress for an application.
func (c *Client) Courtship(ctx context.Context, applicationID string) (CourtshipProgress, error) {
	var resp CourtshipProgress
	endpoint := fmt.Sprintf("applications/%s/courtship", url.PathEscape(applicationID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp, err
}

// StartWeek begins the given curriculum week.
func (c *Client) StartWeek(ctx context.Context, applicationID string, week int) (CourtshipWeek, error) {
	var resp CourtshipWeek
	endpoint := fmt.Sprintf("applications/%s/courtship/weeks/%d/start", url.PathEscape(applicationID), week)
	err := c.do(ctx, http.MethodPost, endpoint, map[string]any{}, &resp)
	return resp, err
}

// CompleteWeek finishes the given curriculum week.
func (c *Client) CompleteWeek(ctx context.Context, applicationID string, week int, coupleNotes string) (CourtshipWeek, error) {
	body := map[string]any{}
	if coupleNotes != "" {
		body["couple_notes"] = coupleNotes
	}
	var resp CourtshipWeek
	endpoint := fmt.Sprintf("applications/%s/courtship/weeks/%d/complete", url.PathEscape(applicationID), week)
	err := c.do(ctx, http.MethodPost, endpoint, body, &resp)
	return resp, err
}

// Notifications lists the caller's inbox.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool) ([]Notification, int, error) {
	endpoint := "notifications"
	if unreadOnly {
		endpoint += "?unread=true"
	}
	var resp struct {
		Items  []Notification `json:"items"`
		Unread int            `json:"unread_count"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, resp.Unread, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	target := c.base() + "/v1/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, target, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		b, _ := io.ReadAll(resp.Body)
		_ = json.Unmarshal(b, apiErr)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(b))
		}
		if resp.StatusCode == http.StatusUnauthorized {
			c.Token = ""
			if c.OnUnauthorized != nil {
				c.OnUnauthorized()
			}
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
