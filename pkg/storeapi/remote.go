package storeapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/grovetools/storefront/logging"
	"github.com/grovetools/storefront/pkg/metrics"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/version"
	"github.com/sirupsen/logrus"
)

const (
	storesPath = "/api/stores/"
	streamPath = "/api/stores/ws/"

	// maxErrorBody bounds how much of a failed response is kept for diagnostics.
	maxErrorBody = 512
)

// Option configures a RemoteClient.
type Option func(*RemoteClient)

// WithTimeout sets the timeout for list and create requests.
func WithTimeout(d time.Duration) Option {
	return func(c *RemoteClient) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithHandshakeTimeout sets the WebSocket handshake timeout.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(c *RemoteClient) {
		if d > 0 {
			c.dialer.HandshakeTimeout = d
		}
	}
}

// WithReadLimit caps the size of a single stream frame in bytes.
func WithReadLimit(n int64) Option {
	return func(c *RemoteClient) {
		if n > 0 {
			c.readLimit = n
		}
	}
}

// WithHTTPClient replaces the HTTP client used for list and create requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *RemoteClient) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logrus.Entry) Option {
	return func(c *RemoteClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// RemoteClient implements Client against the orchestration service's HTTP API.
type RemoteClient struct {
	baseURL    *url.URL
	authMu     sync.RWMutex
	auth       Auth
	httpClient *http.Client
	dialer     *websocket.Dialer
	readLimit  int64
	userAgent  string
	logger     *logrus.Entry
}

// NewRemoteClient creates a client for the service at baseURL, authenticating with auth.
func NewRemoteClient(baseURL string, auth Auth, opts ...Option) (*RemoteClient, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}
	u.Path = strings.TrimSuffix(u.Path, "/")

	c := &RemoteClient{
		baseURL: u,
		auth:    auth,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
		readLimit: 1 << 20,
		userAgent: version.UserAgent(),
		logger:    logging.NewLogger("storeapi"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// SetAuth replaces the session credential used by subsequent requests.
func (c *RemoteClient) SetAuth(auth Auth) {
	c.authMu.Lock()
	defer c.authMu.Unlock()
	c.auth = auth
}

func (c *RemoteClient) currentAuth() Auth {
	c.authMu.RLock()
	defer c.authMu.RUnlock()
	return c.auth
}

// ListStores returns every store visible to the current session.
func (c *RemoteClient) ListStores(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	err := c.do(ctx, http.MethodGet, storesPath, nil, &stores)
	metrics.RecordRequest("list_stores", err)
	if err != nil {
		return nil, fmt.Errorf("failed to list stores: %w", err)
	}
	if stores == nil {
		stores = []models.Store{}
	}
	return stores, nil
}

// CreateStore requests provisioning of a new store.
func (c *RemoteClient) CreateStore(ctx context.Context, name string) (models.Store, error) {
	var store models.Store
	err := c.do(ctx, http.MethodPost, storesPath, map[string]string{"name": name}, &store)
	metrics.RecordRequest("create_store", err)
	if err != nil {
		return models.Store{}, fmt.Errorf("failed to create store: %w", err)
	}
	if store.ID == "" {
		return models.Store{}, fmt.Errorf("failed to create store: response has no id")
	}
	return store, nil
}

// do sends an authenticated JSON request and decodes a 2xx response into out.
func (c *RemoteClient) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	c.currentAuth().apply(req.Header)

	c.logger.WithFields(logrus.Fields{"method": method, "path": path}).Debug("Sending request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.WithFields(logrus.Fields{"method": method, "path": path, "status": resp.StatusCode}).
			Debug("Request rejected")
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *RemoteClient) endpoint(path string) string {
	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	return u.String()
}

// streamURL maps the HTTP base URL onto the ws/wss stream endpoint for a store.
func (c *RemoteClient) streamURL(storeID string) string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}
	u.Path = c.baseURL.Path + streamPath + url.PathEscape(storeID)
	return u.String()
}

// OpenStream connects to the provisioning log stream of a store.
func (c *RemoteClient) OpenStream(ctx context.Context, storeID string) (Stream, error) {
	if storeID == "" {
		return nil, fmt.Errorf("store id is required")
	}

	header := http.Header{}
	header.Set("User-Agent", c.userAgent)
	c.currentAuth().apply(header)

	target := c.streamURL(storeID)
	c.logger.WithField("store_id", storeID).Debug("Opening log stream")

	conn, resp, err := c.dialer.DialContext(ctx, target, header)
	if err != nil {
		metrics.RecordRequest("open_stream", err)
		if resp != nil {
			defer resp.Body.Close()
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
			return nil, fmt.Errorf("failed to connect to stream: %w",
				&StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))})
		}
		return nil, fmt.Errorf("failed to connect to stream: %w", err)
	}
	metrics.RecordRequest("open_stream", nil)
	conn.SetReadLimit(c.readLimit)

	return &wsStream{conn: conn}, nil
}

// Close cleans up any resources used by the client.
func (c *RemoteClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// wsStream adapts a gorilla WebSocket connection to Stream.
type wsStream struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closeErr  error
}

// Next returns the next text frame. Normal closures are reported as io.EOF.
func (s *wsStream) Next() (string, error) {
	for {
		msgType, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseNoStatusReceived) {
				return "", io.EOF
			}
			return "", err
		}
		switch msgType {
		case websocket.TextMessage, websocket.BinaryMessage:
			return string(data), nil
		}
	}
}

// Close sends a best-effort close frame and releases the connection.
func (s *wsStream) Close() error {
	s.closeOnce.Do(func() {
		deadline := time.Now().Add(time.Second)
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = s.conn.WriteControl(websocket.CloseMessage, msg, deadline)
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// Ensure RemoteClient implements Client interface.
var _ Client = (*RemoteClient)(nil)
