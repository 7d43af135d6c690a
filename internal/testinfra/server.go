// Dispatchlink - IPTV Admin Real-Time Event Client
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/dispatchlink

package testinfra

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/dispatchlink/internal/envelope"
	"github.com/tomtom215/dispatchlink/internal/models"
)

const writeWait = time.Second

// Server is a fake admin server.
type Server struct {
	URL string

	srv      *httptest.Server
	upgrader websocket.Upgrader
	pageSize int
	sendAck  bool

	mu          sync.Mutex
	tokens      map[string]bool
	clients     map[*websocket.Conn]struct{}
	collections map[models.ResourceKind][]map[string]any
	requests    map[models.ResourceKind]int
	dials       int
	rejected    int
	changed     chan struct{}
}

// Option configures a Server.
type Option func(*Server)

// WithTokens sets the accepted tokens. Default: "test-token".
func WithTokens(tokens ...string) Option {
	return func(s *Server) {
		s.tokens = make(map[string]bool, len(tokens))
		for _, tok := range tokens {
			s.tokens[tok] = true
		}
	}
}

// WithPageSize splits list responses into pages of n. Zero serves a bare
// JSON array.
func WithPageSize(n int) Option {
	return func(s *Server) { s.pageSize = n }
}

// WithoutAck skips the connection_established frame on connect.
func WithoutAck() Option {
	return func(s *Server) { s.sendAck = false }
}

// NewServer starts a fake server that is closed with t.
func NewServer(t testing.TB, opts ...Option) *Server {
	t.Helper()

	s := &Server{
		upgrader:    websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		sendAck:     true,
		tokens:      map[string]bool{"test-token": true},
		clients:     make(map[*websocket.Conn]struct{}),
		collections: make(map[models.ResourceKind][]map[string]any),
		requests:    make(map[models.ResourceKind]int),
		changed:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Get("/ws/", s.serveSocket)
	for _, kind := range models.AllKinds() {
		r.Get(kind.Endpoint(), s.serveList(kind))
	}

	s.srv = httptest.NewServer(r)
	s.URL = s.srv.URL
	t.Cleanup(s.Close)
	return s
}

// Close drops every client and stops the server.
func (s *Server) Close() {
	s.DropClients()
	s.srv.Close()
}

// SetTokens replaces the accepted tokens. Existing sockets stay open.
func (s *Server) SetTokens(tokens ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokens = make(map[string]bool, len(tokens))
	for _, tok := range tokens {
		s.tokens[tok] = true
	}
}

// Seed replaces the collection served for kind.
func (s *Server) Seed(kind models.ResourceKind, items ...map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections[kind] = items
}

// Requests returns the number of list requests served for kind.
func (s *Server) Requests(kind models.ResourceKind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[kind]
}

// Dials returns the number of accepted socket handshakes.
func (s *Server) Dials() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dials
}

// Rejected returns the number of handshakes refused for a bad token.
func (s *Server) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// Clients returns the number of open sockets.
func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// WaitForClients blocks until n sockets are open.
func (s *Server) WaitForClients(t testing.TB, n int) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		s.mu.Lock()
		got, changed := len(s.clients), s.changed
		s.mu.Unlock()
		if got == n {
			return
		}
		select {
		case <-changed:
		case <-deadline:
			t.Fatalf("waited for %d clients, have %d", n, got)
		}
	}
}

// Push broadcasts an event frame to every open socket.
func (s *Server) Push(t testing.TB, eventType string, data map[string]any) {
	t.Helper()
	raw, err := envelope.Encode(eventType, data)
	if err != nil {
		t.Fatalf("encode %s: %v", eventType, err)
	}
	s.PushRaw(raw)
}

// PushRaw broadcasts raw as a text frame.
func (s *Server) PushRaw(raw []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		_ = c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, raw); err != nil {
			s.removeLocked(c)
		}
	}
}

// DropClients closes every open socket without a close handshake.
func (s *Server) DropClients() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		s.removeLocked(c)
	}
}

func (s *Server) removeLocked(c *websocket.Conn) {
	if _, ok := s.clients[c]; !ok {
		return
	}
	_ = c.Close()
	delete(s.clients, c)
	s.notifyLocked()
}

func (s *Server) notifyLocked() {
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *Server) authorized(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return token != "" && s.tokens[token]
}

func (s *Server) serveSocket(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r.URL.Query().Get("token")) {
		s.mu.Lock()
		s.rejected++
		s.mu.Unlock()
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s.mu.Lock()
	s.dials++
	if s.sendAck {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		ack := []byte(`{"type":"connection_established","data":{"message":"Connected"}}`)
		if err := conn.WriteMessage(websocket.TextMessage, ack); err != nil {
			s.mu.Unlock()
			_ = conn.Close()
			return
		}
	}
	s.clients[conn] = struct{}{}
	s.notifyLocked()
	s.mu.Unlock()

	// The read loop answers pings and notices client closes.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				s.mu.Lock()
				s.removeLocked(conn)
				s.mu.Unlock()
				return
			}
		}
	}()
}

func (s *Server) serveList(kind models.ResourceKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !s.authorized(token) {
			http.Error(w, `{"detail":"Authentication credentials were not provided."}`, http.StatusUnauthorized)
			return
		}

		s.mu.Lock()
		s.requests[kind]++
		items := s.collections[kind]
		pageSize := s.pageSize
		s.mu.Unlock()
		if items == nil {
			items = []map[string]any{}
		}

		w.Header().Set("Content-Type", "application/json")
		if pageSize <= 0 {
			_ = json.NewEncoder(w).Encode(items)
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page < 1 {
			page = 1
		}
		start := min((page-1)*pageSize, len(items))
		end := min(start+pageSize, len(items))

		var next *string
		if end < len(items) {
			u := s.URL + kind.Endpoint() + "?page=" + strconv.Itoa(page+1)
			next = &u
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"count":   len(items),
			"next":    next,
			"results": items[start:end],
		})
	}
}
