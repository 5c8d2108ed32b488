package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/minewebstore/mwsync/internal/model"
)

// APIPath is the REST namespace of the storefront plugin.
const APIPath = "/wp-json/mcapi/v1"

// DefaultFetchLimit is the page size requested by FetchPending.
const DefaultFetchLimit = 50

// maxResponseBytes bounds how much of a response body is read.
const maxResponseBytes = 4 << 20

// HTTPSource implements Source over the storefront's REST API.
//
// The server key returned by registration is kept in memory and sent as a
// bearer token on every later call.
//
// Thread-safety: safe for concurrent use.
type HTTPSource struct {
	baseURL    string
	secretKey  string
	fetchLimit int
	userAgent  string
	client     *http.Client

	mu        sync.RWMutex
	serverKey string
}

// HTTPOption configures an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithFetchLimit sets the maximum number of commands per fetch.
func WithFetchLimit(n int) HTTPOption {
	return func(s *HTTPSource) {
		if n > 0 {
			s.fetchLimit = n
		}
	}
}

// WithHTTPClient replaces the HTTP client. Tests use it to talk to an
// httptest server.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) HTTPOption {
	return func(s *HTTPSource) {
		s.userAgent = ua
	}
}

// WithServerKey preloads a credential, skipping registration.
func WithServerKey(key string) HTTPOption {
	return func(s *HTTPSource) {
		s.serverKey = key
	}
}

// NewHTTPSource creates a source for the storefront at baseURL.
//
// timeout bounds both connection setup and each whole request.
func NewHTTPSource(baseURL, secretKey string, timeout time.Duration, opts ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		baseURL:    strings.TrimRight(baseURL, "/"),
		secretKey:  secretKey,
		fetchLimit: DefaultFetchLimit,
		userAgent:  "mwsync",
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				DialContext:           (&net.Dialer{Timeout: timeout}).DialContext,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
				MaxIdleConnsPerHost:   4,
				IdleConnTimeout:       90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registered reports whether a server key is held.
func (s *HTTPSource) Registered() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serverKey != ""
}

// RegisterServer implements Source.
func (s *HTTPSource) RegisterServer(ctx context.Context, server string) (string, error) {
	req := registerRequest{SecretKey: s.secretKey, ServerName: server}
	var resp registerResponse
	if err := s.do(ctx, "register", http.MethodPost, "/register", nil, req, false, &resp); err != nil {
		return "", err
	}
	if resp.ServerKey == "" {
		return "", &Error{Op: "register", Message: "response carried no server key"}
	}

	s.mu.Lock()
	s.serverKey = resp.ServerKey
	s.mu.Unlock()

	slog.Info("registered with storefront", "server", server, "message", resp.Message)
	return resp.ServerKey, nil
}

// FetchPending implements Source.
func (s *HTTPSource) FetchPending(ctx context.Context, server string) ([]model.Command, error) {
	q := url.Values{}
	q.Set("server_name", server)
	q.Set("limit", strconv.Itoa(s.fetchLimit))

	var resp commandsResponse
	if err := s.do(ctx, "fetch", http.MethodGet, "/commands", q, nil, true, &resp); err != nil {
		return nil, err
	}
	return resp.Commands, nil
}

// AcknowledgeRead implements Source.
func (s *HTTPSource) AcknowledgeRead(ctx context.Context, server string, ids []int) error {
	req := readRequest{ServerName: server, CommandIDs: ids}
	var resp readResponse
	if err := s.do(ctx, "acknowledge", http.MethodPost, "/commands/read", nil, req, true, &resp); err != nil {
		return err
	}
	if resp.UpdatedCount != len(ids) {
		slog.Debug("acknowledgement updated fewer commands than sent",
			"sent", len(ids), "updated", resp.UpdatedCount)
	}
	return nil
}

// ReportStatus implements Source.
func (s *HTTPSource) ReportStatus(ctx context.Context, server string, id int, status model.Status, message string) error {
	req := statusRequest{ServerName: server, Status: status, Message: message}
	var resp baseResponse
	path := "/commands/" + strconv.Itoa(id)
	return s.do(ctx, "report", http.MethodPut, path, nil, req, true, &resp)
}

// SyncPlayers implements Source.
func (s *HTTPSource) SyncPlayers(ctx context.Context, server string, names []string, previousDigest string) error {
	if names == nil {
		names = []string{}
	}
	req := playersRequest{ServerName: server, Players: names, PlayerHash: previousDigest}
	var resp playersResponse
	if err := s.do(ctx, "sync players", http.MethodPost, "/players", nil, req, true, &resp); err != nil {
		return err
	}
	slog.Debug("storefront accepted player list", "updated", resp.Updated, "hash", resp.Hash)
	return nil
}

// CheckStatus calls the unauthenticated status endpoint. A 404 means the
// storefront plugin is not installed or not active.
func (s *HTTPSource) CheckStatus(ctx context.Context) (*ServerStatus, error) {
	var resp ServerStatus
	err := s.do(ctx, "status", http.MethodGet, "/status", nil, nil, false, &resp)
	if StatusCodeOf(err) == http.StatusNotFound {
		return nil, &Error{
			Op:         "status",
			StatusCode: http.StatusNotFound,
			Message:    "storefront plugin not found; is it installed and active?",
		}
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one API call and decodes the response envelope into out.
func (s *HTTPSource) do(
	ctx context.Context,
	op, method, path string,
	query url.Values,
	body any,
	auth bool,
	out envelope,
) error {
	var token string
	if auth {
		s.mu.RLock()
		token = s.serverKey
		s.mu.RUnlock()
		if token == "" {
			return ErrNotRegistered
		}
	}

	u := s.baseURL + APIPath + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Message: "encode request", Err: err}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Op: op, Message: "build request", Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", s.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return &Error{Op: op, Message: "request failed", Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: errorMessage(raw, resp.Status)}
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	if ok, msg := out.result(); !ok {
		if msg == "" {
			msg = "storefront reported failure"
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	return nil
}

// errorMessage extracts the "message" field WordPress puts in error
// bodies, falling back to the HTTP status text.
func errorMessage(raw []byte, fallback string) string {
	var body struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		if body.Code != "" {
			return fmt.Sprintf("%s (%s)", body.Message, body.Code)
		}
		return body.Message
	}
	return fallback
}
