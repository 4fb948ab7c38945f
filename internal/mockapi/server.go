// Package mockapi provides an in-process stand-in for the store orchestration
// service. It speaks the same HTTP and WebSocket protocol, scripts the
// provisioning log feed, and is used by tests and the mock-server command.
package mockapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/grovetools/storefront/pkg/models"
	"github.com/grovetools/storefront/pkg/stream"
	"github.com/sirupsen/logrus"
)

// naiveTimeLayout matches the zone-less timestamps the real service emits.
const naiveTimeLayout = "2006-01-02T15:04:05.000000"

// CloseStoreNotFound is the close code sent when a stream is opened for an unknown store.
const CloseStoreNotFound = 4004

// Script controls how a provisioning stream plays out.
type Script struct {
	// Lines are sent in order after the opening line.
	Lines []string
	// Fail ends the job with PROVISIONING_FAILED instead of READY.
	Fail bool
	// CredentialsFirst sends the credential payload before the completion sentinel.
	CredentialsFirst bool
	// DropBeforeSentinel closes the stream after Lines without any terminal frame.
	DropBeforeSentinel bool
	// Delay is the pause between frames.
	Delay time.Duration
	// Hold keeps the stream open after Lines until the client disconnects.
	Hold bool
}

// DefaultScript mimics a chart install.
var DefaultScript = Script{
	Lines: []string{
		"Release \"%s\" does not exist. Installing it now.",
		"NAME: %s",
		"STATUS: deployed",
		"Store provisioned successfully!",
	},
	Delay: 200 * time.Millisecond,
}

// Server is a mock orchestration service.
type Server struct {
	logger     *logrus.Entry
	server     *http.Server
	upgrader   websocket.Upgrader
	cookieName string
	token      string

	mu           sync.Mutex
	order        []string
	stores       map[string]*models.Store
	script       Script
	listStatus   int
	createStatus int
	listCalls    int
	createCalls  int
	streams      int
	hidden       map[string]struct{}
	listLag      time.Duration
}

// New creates a mock service. When token is non-empty, every request must
// carry it in the cookieName cookie.
func New(logger *logrus.Entry, cookieName, token string) *Server {
	if logger == nil {
		logger = logrus.NewEntry(logrus.New())
	}
	return &Server{
		logger:     logger,
		cookieName: cookieName,
		token:      token,
		stores:     make(map[string]*models.Store),
		hidden:     make(map[string]struct{}),
		script:     DefaultScript,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// SetScript replaces the provisioning script for subsequent streams.
func (s *Server) SetScript(script Script) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.script = script
}

// FailList makes the list endpoint answer with status until reset with 0.
func (s *Server) FailList(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listStatus = status
}

// FailCreate makes the create endpoint answer with status until reset with 0.
func (s *Server) FailCreate(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createStatus = status
}

// Hide keeps a store out of list responses, simulating replication lag.
func (s *Server) Hide(id string, hidden bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hidden {
		s.hidden[id] = struct{}{}
	} else {
		delete(s.hidden, id)
	}
}

// SetListLag hides every store created from now on for d before it shows up
// in list responses. Zero disables the lag.
func (s *Server) SetListLag(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listLag = d
}

// Seed adds a store directly, bypassing the create endpoint.
func (s *Server) Seed(store models.Store) models.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	if store.ID == "" {
		store.ID = uuid.NewString()
	}
	if store.Status == "" {
		store.Status = models.StatusProvisioning
	}
	if store.CreatedAt.IsZero() {
		store.CreatedAt = models.Timestamp{Time: time.Now().UTC()}
	}
	s.addLocked(&store)
	return store
}

// Store returns the server-side record of a store.
func (s *Server) Store(id string) (models.Store, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.stores[id]
	if !ok {
		return models.Store{}, false
	}
	return *st, true
}

// ListCalls returns the number of list requests served.
func (s *Server) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

// CreateCalls returns the number of create requests received.
func (s *Server) CreateCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createCalls
}

// Streams returns the number of currently open log streams.
func (s *Server) Streams() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.streams
}

// Handler returns the HTTP handler for the mock service.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/api/stores/", s.handleStores)
	mux.HandleFunc("/api/stores/ws/", s.handleStream)

	return mux
}

// ListenAndServe serves the mock service on addr. It blocks until the server stops.
func (s *Server) ListenAndServe(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	s.server = &http.Server{Handler: s.Handler()}
	s.logger.WithField("addr", listener.Addr().String()).Info("Mock orchestration service listening")
	return s.server.Serve(listener)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down mock orchestration service...")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) authorized(r *http.Request) bool {
	if s.token == "" {
		return true
	}
	c, err := r.Cookie(s.cookieName)
	return err == nil && c.Value == s.token
}

// handleStores serves GET (list) and POST (create) on /api/stores/.
func (s *Server) handleStores(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/api/stores/" {
		http.NotFound(w, r)
		return
	}
	if !s.authorized(r) {
		http.Error(w, `{"detail":"Not authenticated"}`, http.StatusUnauthorized)
		return
	}

	switch r.Method {
	case http.MethodGet:
		s.handleList(w)
	case http.MethodPost:
		s.handleCreate(w, r)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *Server) handleList(w http.ResponseWriter) {
	s.mu.Lock()
	s.listCalls++
	if s.listStatus != 0 {
		status := s.listStatus
		s.mu.Unlock()
		http.Error(w, "list unavailable", status)
		return
	}
	result := make([]storeRecord, 0, len(s.order))
	for _, id := range s.order {
		if _, hidden := s.hidden[id]; hidden {
			continue
		}
		result = append(result, toRecord(*s.stores[id]))
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.createCalls++
	if s.createStatus != 0 {
		status := s.createStatus
		s.mu.Unlock()
		http.Error(w, "create unavailable", status)
		return
	}
	store := &models.Store{
		ID:        uuid.NewString(),
		Name:      req.Name,
		Status:    models.StatusProvisioning,
		CreatedAt: models.Timestamp{Time: time.Now().UTC()},
	}
	s.addLocked(store)
	created := *store
	lag := s.listLag
	s.mu.Unlock()

	if lag > 0 {
		s.Hide(created.ID, true)
		time.AfterFunc(lag, func() { s.Hide(created.ID, false) })
	}

	s.logger.WithFields(logrus.Fields{"id": created.ID, "name": created.Name}).Info("Store created")
	writeJSON(w, http.StatusOK, toRecord(created))
}

// handleStream plays the provisioning script over a WebSocket.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		http.Error(w, "not authenticated", http.StatusUnauthorized)
		return
	}
	storeID := strings.TrimPrefix(r.URL.Path, "/api/stores/ws/")

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to upgrade stream connection")
		return
	}
	defer conn.Close()

	s.mu.Lock()
	s.streams++
	store, ok := s.stores[storeID]
	var snapshot models.Store
	if ok {
		snapshot = *store
	}
	script := s.script
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.streams--
		s.mu.Unlock()
	}()

	if !ok {
		msg := websocket.FormatCloseMessage(CloseStoreNotFound, "Store not found")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		return
	}

	// Reader goroutine notices client disconnects.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(text string) bool {
		if script.Delay > 0 {
			select {
			case <-gone:
				return false
			case <-time.After(script.Delay):
			}
		}
		return conn.WriteMessage(websocket.TextMessage, []byte(text)) == nil
	}

	if snapshot.Status != models.StatusProvisioning {
		send(fmt.Sprintf("Store is already %s", snapshot.Status))
		s.closeNormally(conn)
		return
	}

	if !send(fmt.Sprintf("Starting provisioning for %s...", snapshot.Name)) {
		return
	}
	for _, line := range script.Lines {
		if strings.Contains(line, "%s") {
			line = fmt.Sprintf(line, snapshot.Name)
		}
		if !send(line) {
			return
		}
	}

	if script.Hold {
		<-gone
		return
	}
	if script.DropBeforeSentinel {
		s.closeNormally(conn)
		return
	}

	final := s.finish(storeID, !script.Fail)
	if script.Fail {
		send(stream.SentinelFailed)
		s.closeNormally(conn)
		return
	}

	creds, _ := json.Marshal(models.Credentials{
		URL:           final.URL,
		AdminUser:     final.AdminUser,
		AdminPassword: final.AdminPassword,
	})
	if script.CredentialsFirst {
		send(string(creds))
		send(stream.SentinelComplete)
	} else {
		send(stream.SentinelComplete)
		send(string(creds))
	}
	s.closeNormally(conn)
}

// finish records the outcome of a provisioning job.
func (s *Server) finish(id string, ok bool) models.Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stores[id]
	if ok {
		st.Status = models.StatusReady
		st.URL = fmt.Sprintf("http://%s.localhost", st.Name)
		st.AdminUser = "user"
		st.AdminPassword = "password"
	} else {
		st.Status = models.StatusFailed
	}
	return *st
}

func (s *Server) closeNormally(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (s *Server) addLocked(store *models.Store) {
	if _, exists := s.stores[store.ID]; !exists {
		s.order = append(s.order, store.ID)
	}
	s.stores[store.ID] = store
}

// storeRecord is the wire shape of a store, with the service's naive timestamps.
type storeRecord struct {
	ID            string             `json:"id"`
	Name          string             `json:"name"`
	Status        models.StoreStatus `json:"status"`
	URL           *string            `json:"url"`
	AdminUser     *string            `json:"admin_user"`
	AdminPassword *string            `json:"admin_password"`
	CreatedAt     string             `json:"created_at"`
}

func toRecord(st models.Store) storeRecord {
	rec := storeRecord{
		ID:        st.ID,
		Name:      st.Name,
		Status:    st.Status,
		CreatedAt: st.CreatedAt.UTC().Format(naiveTimeLayout),
	}
	if st.Status == models.StatusReady {
		rec.URL = &st.URL
		rec.AdminUser = &st.AdminUser
		rec.AdminPassword = &st.AdminPassword
	}
	return rec
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
