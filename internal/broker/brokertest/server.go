// Package brokertest provides an in-process fake of the management API.
package brokertest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"

	"github.com/MalithGihan/rabbitflow/internal/broker"
)

const (
	Login    = "guest"
	Password = "guest"
)

// Request is a recorded call against the fake.
type Request struct {
	Path     string // escaped path
	User     string
	Password string
	Accept   string
}

// Server serves a fixed topology per vhost. Fields may be changed between
// requests through the setters; they are guarded by a mutex.
type Server struct {
	*httptest.Server

	mu        sync.Mutex
	vhosts    []broker.Vhost
	queues    map[string][]broker.Queue
	exchanges map[string][]broker.Exchange
	stats     map[string]map[string]any
	bindings  map[string]map[string][]broker.Binding
	failures  map[string]int
	hooks     map[string]func()
	requests  []Request
}

func New() *Server {
	s := &Server{
		vhosts:    []broker.Vhost{{Name: "/"}},
		queues:    map[string][]broker.Queue{},
		exchanges: map[string][]broker.Exchange{},
		stats:     map[string]map[string]any{},
		bindings:  map[string]map[string][]broker.Binding{},
		failures:  map[string]int{},
		hooks:     map[string]func(){},
	}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

func (s *Server) SetVhosts(names ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vhosts = s.vhosts[:0]
	for _, n := range names {
		s.vhosts = append(s.vhosts, broker.Vhost{Name: n})
	}
}

// AddQueue registers a queue in vhost with its details payload (anything that
// marshals to the management API shape) and its bindings.
func (s *Server) AddQueue(vhost, name string, details any, bindings ...broker.Binding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queues[vhost] = append(s.queues[vhost], broker.Queue{Name: name, Vhost: vhost})
	if s.stats[vhost] == nil {
		s.stats[vhost] = map[string]any{}
		s.bindings[vhost] = map[string][]broker.Binding{}
	}
	if details == nil {
		details = broker.QueueStats{Name: name}
	}
	s.stats[vhost][name] = details
	for i := range bindings {
		if bindings[i].Destination == "" {
			bindings[i].Destination = name
		}
	}
	s.bindings[vhost][name] = bindings
}

func (s *Server) AddExchange(vhost, name, typ string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.exchanges[vhost] = append(s.exchanges[vhost], broker.Exchange{Name: name, Type: typ, Vhost: vhost})
}

// Fail makes requests whose escaped path equals path answer with status.
func (s *Server) Fail(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[path] = status
}

// OnRequest runs fn (outside the lock) before answering path.
func (s *Server) OnRequest(path string, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hooks[path] = fn
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	path := r.URL.EscapedPath()
	user, pass, _ := r.BasicAuth()

	s.mu.Lock()
	s.requests = append(s.requests, Request{Path: path, User: user, Password: pass, Accept: r.Header.Get("Accept")})
	hook := s.hooks[path]
	s.mu.Unlock()

	if hook != nil {
		hook()
	}

	if user != Login || pass != Password {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if code, ok := s.failures[path]; ok {
		w.WriteHeader(code)
		return
	}

	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	for i := range parts {
		parts[i], _ = url.PathUnescape(parts[i])
	}

	switch {
	case len(parts) == 1 && parts[0] == "vhosts":
		writeJSON(w, s.vhosts)
	case len(parts) == 2 && parts[0] == "queues":
		writeJSON(w, nonNil(s.queues[parts[1]]))
	case len(parts) == 2 && parts[0] == "exchanges":
		writeJSON(w, nonNil(s.exchanges[parts[1]]))
	case len(parts) == 3 && parts[0] == "queues":
		d, ok := s.stats[parts[1]][parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, d)
	case len(parts) == 4 && parts[0] == "queues" && parts[3] == "bindings":
		b, ok := s.bindings[parts[1]][parts[2]]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeJSON(w, nonNil(b))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}
