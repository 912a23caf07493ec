// Spellbook - ThoughtSpot Admin Augmentation Toolkit
// Copyright 2026 boonhapus
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/boonhapus/spellbook-thoughtspot

package thoughtspot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/boonhapus/spellbook-thoughtspot/internal/config"
)

// Version is the Spellbook release version reported in the user-agent.
const Version = "0.1.0"

// API endpoints relative to the cluster base URL.
const (
	endpointLogin       = "api/rest/2.0/auth/token/full"
	endpointIsActive    = "callosum/v1/session/isactive"
	endpointSearchUsers = "api/rest/2.0/users/search"
	endpointLogsFetch   = "api/rest/2.0/logs/fetch"
)

// maxErrorBodySize limits how much of a response body is read back for
// error reporting, preventing unbounded allocation on large error pages.
const maxErrorBodySize = 64 * 1024 // 64KB

// Client is a small shim around the ThoughtSpot REST API.
//
// Every request carries the fixed Spellbook identity headers and, once
// Login has succeeded, an Authorization bearer token. HTTP error statuses
// are NOT turned into errors by the client itself; callers inspect the
// returned APIResponse. Only transport failures surface as errors.
//
// Thread safety: safe for concurrent use. The bearer token is the only
// mutable state and is mutex-guarded because the keep-alive task, the log
// collector and request handlers share one client across goroutines.
type Client struct {
	baseURL       string
	username      string
	secretKey     string
	tokenValidity time.Duration
	httpClient    *http.Client

	mu    sync.RWMutex
	token string
}

// NewClient creates a ThoughtSpot API client from the provided configuration.
func NewClient(cfg *config.ThoughtSpotConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 300 * time.Second
	}
	validity := cfg.TokenValidity
	if validity <= 0 {
		validity = 60000 * time.Second
	}
	return &Client{
		baseURL:       strings.TrimRight(cfg.Host, "/"),
		username:      cfg.Username,
		secretKey:     cfg.SecretKey,
		tokenValidity: validity,
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// APIResponse is the raw outcome of one API call. It exists because the
// upstream contract is "return the response regardless of outcome, the
// caller decides what a failure means".
type APIResponse struct {
	StatusCode int
	Body       []byte
}

// IsSuccess reports whether the response carries a 2xx status.
func (r *APIResponse) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// StatusError describes a non-2xx response in places where the caller asked
// for an explicit status check (IsActive).
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("thoughtspot API returned HTTP %d: %s", e.StatusCode, truncateBody(e.Body))
}

// truncateBody trims a response body for inclusion in an error message.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBodySize {
		return string(body[:maxErrorBodySize]) + "... (truncated)"
	}
	return string(body)
}

// loginRequest is the auth/token payload.
type loginRequest struct {
	Username          string `json:"username"`
	SecretKey         string `json:"secret_key"`
	ValidityTimeInSec int    `json:"validity_time_in_sec"`
}

// loginResponse is the subset of the auth/token body the client consumes.
type loginResponse struct {
	Token string `json:"token"`
}

// Login authenticates against the cluster with the trusted-auth secret key.
//
// On a 2xx response the bearer token from the body is installed on the
// client for all subsequent calls. The raw response is returned regardless
// of outcome; a non-2xx status is not an error.
func (c *Client) Login(ctx context.Context) (*APIResponse, error) {
	payload := loginRequest{
		Username:          c.username,
		SecretKey:         c.secretKey,
		ValidityTimeInSec: int(c.tokenValidity.Seconds()),
	}

	resp, err := c.post(ctx, endpointLogin, payload)
	if err != nil {
		return nil, err
	}

	if resp.IsSuccess() {
		var body loginResponse
		if err := json.Unmarshal(resp.Body, &body); err != nil {
			return resp, fmt.Errorf("failed to decode login response: %w", err)
		}
		c.setToken(body.Token)
	}

	return resp, nil
}

// IsActive issues a lightweight liveness probe against the session.
// Unlike the other operations it converts a non-2xx status into an error,
// because its only caller is the keep-alive loop which wants a single
// "alive or not" answer.
func (c *Client) IsActive(ctx context.Context) error {
	resp, err := c.get(ctx, endpointIsActive)
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return &StatusError{StatusCode: resp.StatusCode, Body: resp.Body}
	}
	return nil
}

// SortOptions orders a user search.
type SortOptions struct {
	FieldName string `json:"field_name,omitempty"`
	Order     string `json:"order,omitempty"`
}

// UserSearchRequest is the users/search filter/sort/pagination payload.
type UserSearchRequest struct {
	RecordOffset   int          `json:"record_offset"`
	RecordSize     int          `json:"record_size"`
	OrgIdentifiers []string     `json:"org_identifiers,omitempty"`
	Privileges     []string     `json:"privileges,omitempty"`
	NamePattern    string       `json:"name_pattern,omitempty"`
	SortOptions    *SortOptions `json:"sort_options,omitempty"`
}

// SearchUsers posts an arbitrary filter/sort payload to the user-search
// endpoint. Pagination is caller-supplied via RecordOffset/RecordSize.
func (c *Client) SearchUsers(ctx context.Context, req UserSearchRequest) (*APIResponse, error) {
	return c.post(ctx, endpointSearchUsers, req)
}

// logsFetchRequest is the logs/fetch payload.
type logsFetchRequest struct {
	LogType                string `json:"log_type"`
	StartEpochTimeInMillis int64  `json:"start_epoch_time_in_millis"`
	EndEpochTimeInMillis   int64  `json:"end_epoch_time_in_millis"`
	GetAllLogs             bool   `json:"get_all_logs"`
}

// FetchLogs retrieves the security audit log records for one time window.
func (c *Client) FetchLogs(ctx context.Context, w Window) (*APIResponse, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	payload := logsFetchRequest{
		LogType:                "SECURITY_AUDIT",
		StartEpochTimeInMillis: w.Since.UnixMilli(),
		EndEpochTimeInMillis:   w.Until.UnixMilli(),
		GetAllLogs:             true,
	}
	return c.post(ctx, endpointLogsFetch, payload)
}

// Token returns the installed bearer token, or "" before a successful login.
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Username returns the admin username this client authenticates as.
func (c *Client) Username() string {
	return c.username
}

func (c *Client) setToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

// post issues a JSON POST against a cluster endpoint.
func (c *Client) post(ctx context.Context, endpoint string, payload any) (*APIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", endpoint, err)
	}
	return c.do(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
}

// get issues a GET against a cluster endpoint.
func (c *Client) get(ctx context.Context, endpoint string) (*APIResponse, error) {
	return c.do(ctx, http.MethodGet, endpoint, http.NoBody)
}

// do performs one HTTP request with the Spellbook identity headers and the
// bearer token (if installed), reading the full response body.
func (c *Client) do(ctx context.Context, method, endpoint string, body io.Reader) (*APIResponse, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+"/"+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpoint, err)
	}

	req.Header.Set("x-requested-by", "ThoughtSpot Spellbook")
	req.Header.Set("user-agent", fmt.Sprintf("Spellbook v%s (+github: boonhapus/spellbook-thoughtspot)", Version))
	req.Header.Set("accept", "application/json")
	if method == http.MethodPost {
		req.Header.Set("content-type", "application/json")
	}
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s request failed: %w", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s response: %w", endpoint, err)
	}

	return &APIResponse{StatusCode: resp.StatusCode, Body: data}, nil
}
