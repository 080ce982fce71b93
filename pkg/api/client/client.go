package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is used when no API address is configured.
const DefaultBaseURL = "http://localhost:5000"

// Client provides typed access to the KYC API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = DefaultBaseURL
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// FieldError is a single validation failure reported by the API.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Fields  []FieldError
}

func (e APIError) Error() string {
	msg := e.Message
	if msg == "" && len(e.Fields) > 0 {
		parts := make([]string, 0, len(e.Fields))
		for _, f := range e.Fields {
			parts = append(parts, f.Field+": "+f.Message)
		}
		msg = strings.Join(parts, "; ")
	}
	if msg == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, msg)
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	var (
		reader      io.Reader
		contentType string
	)
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
		contentType = "application/json"
	}
	return c.send(ctx, method, path, reader, contentType, token, v)
}

func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return extractError(resp.StatusCode, resp.Body)
	}
	if v == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	if body == nil {
		return apiErr
	}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Message string       `json:"message"`
		Errors  []FieldError `json:"errors"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Message)
	apiErr.Fields = payload.Errors
	return apiErr
}

type messageResponse struct {
	Message string `json:"message"`
}

// Register creates a regular user account and returns the server message.
func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	body := map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
	}
	var resp messageResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/register", body, "", &resp); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// LoginResponse captures the token payload emitted by the API.
type LoginResponse struct {
	Token string `json:"token"`
	Role  string `json:"role"`
}

// Login exchanges credentials for an access token.
func (c *Client) Login(ctx context.Context, email, password string) (LoginResponse, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp LoginResponse
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, "", &resp); err != nil {
		return LoginResponse{}, err
	}
	return resp, nil
}

// Owner is the user projection embedded in admin listings.
type Owner struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Submission mirrors a KYC submission payload. User holds the owner id, or
// the owner projection in admin listings.
type Submission struct {
	ID           string          `json:"id"`
	User         json.RawMessage `json:"user"`
	DocumentPath string          `json:"documentPath"`
	Status       string          `json:"status"`
	SubmittedAt  time.Time       `json:"submittedAt"`
}

// Owner decodes the embedded owner projection, if present.
func (s Submission) Owner() (Owner, bool) {
	var owner Owner
	if len(s.User) == 0 || s.User[0] != '{' {
		return owner, false
	}
	if err := json.Unmarshal(s.User, &owner); err != nil {
		return owner, false
	}
	return owner, true
}

// SubmissionResult pairs a submission with the server message.
type SubmissionResult struct {
	Message    string     `json:"message"`
	Submission Submission `json:"submission"`
}

// SubmitDocument uploads a KYC document as multipart form data.
func (c *Client) SubmitDocument(ctx context.Context, token, filename string, content io.Reader) (SubmissionResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("document", filename)
	if err != nil {
		return SubmissionResult{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := io.Copy(part, content); err != nil {
		return SubmissionResult{}, fmt.Errorf("copy document: %w", err)
	}
	if err := mw.Close(); err != nil {
		return SubmissionResult{}, fmt.Errorf("finish multipart body: %w", err)
	}
	var resp SubmissionResult
	if err := c.send(ctx, http.MethodPost, "/api/kyc", &buf, mw.FormDataContentType(), token, &resp); err != nil {
		return SubmissionResult{}, err
	}
	return resp, nil
}

// Status returns the caller's own submission.
func (c *Client) Status(ctx context.Context, token string) (Submission, error) {
	var sub Submission
	if err := c.do(ctx, http.MethodGet, "/api/kyc/status", nil, token, &sub); err != nil {
		return Submission{}, err
	}
	return sub, nil
}

// ListSubmissions returns every submission with its owner. Admin only.
func (c *Client) ListSubmissions(ctx context.Context, token string) ([]Submission, error) {
	var subs []Submission
	if err := c.do(ctx, http.MethodGet, "/api/kyc", nil, token, &subs); err != nil {
		return nil, err
	}
	return subs, nil
}

// Decide records an approved or rejected verdict. Admin only.
func (c *Client) Decide(ctx context.Context, token, submissionID, status string) (SubmissionResult, error) {
	path := fmt.Sprintf("/api/kyc/%s", url.PathEscape(submissionID))
	var resp SubmissionResult
	if err := c.do(ctx, http.MethodPatch, path, map[string]string{"status": status}, token, &resp); err != nil {
		return SubmissionResult{}, err
	}
	return resp, nil
}

// DashboardStats are the admin overview counters.
type DashboardStats struct {
	TotalUsers          int64 `json:"totalUsers"`
	TotalKYCSubmissions int64 `json:"totalKycSubmissions"`
	PendingCount        int64 `json:"pendingCount"`
	ApprovedCount       int64 `json:"approvedCount"`
	RejectedCount       int64 `json:"rejectedCount"`
}

// Dashboard fetches the admin counters.
func (c *Client) Dashboard(ctx context.Context, token string) (DashboardStats, error) {
	var stats DashboardStats
	if err := c.do(ctx, http.MethodGet, "/api/admin/dashboard", nil, token, &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}
