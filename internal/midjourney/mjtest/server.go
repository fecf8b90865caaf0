// Package mjtest runs a scripted fake of the remote generator for tests.
package mjtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/go-chi/chi/v5"
)

// Server replays canned responses. Submit responses are consumed in order
// (the last one repeats); fetch responses are scripted per task id the same
// way. Raw bodies are written verbatim so tests can send malformed payloads.
type Server struct {
	*httptest.Server

	mu      sync.Mutex
	submits []string
	fetches map[string][]string
	list    string

	Submitted []map[string]any
	Fetched   map[string]int
	Listed    [][]string
}

func NewServer() *Server {
	s := &Server{
		fetches: map[string][]string{},
		Fetched: map[string]int{},
	}

	r := chi.NewRouter()
	r.Post("/submit", s.submit)
	r.Get("/task/{id}/fetch", s.fetch)
	r.Post("/task/list-by-condition", s.listByCondition)
	s.Server = httptest.NewServer(r)
	return s
}

// OnSubmit queues raw JSON bodies for the submit endpoint.
func (s *Server) OnSubmit(bodies ...string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.submits = append(s.submits, bodies...)
	return s
}

// OnFetch queues raw JSON bodies for one task's fetch endpoint.
func (s *Server) OnFetch(id string, bodies ...string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches[id] = append(s.fetches[id], bodies...)
	return s
}

// OnList sets the raw JSON body for the list-by-condition endpoint.
func (s *Server) OnList(body string) *Server {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = body
	return s
}

func (s *Server) FetchCount(id string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Fetched[id]
}

func (s *Server) SubmitCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.Submitted)
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.Submitted = append(s.Submitted, body)
	resp := next(&s.submits)
	s.mu.Unlock()

	write(w, resp)
}

func (s *Server) fetch(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	s.Fetched[id]++
	queue, ok := s.fetches[id]
	var resp string
	if ok {
		resp = next(&queue)
		s.fetches[id] = queue
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	write(w, resp)
}

func (s *Server) listByCondition(w http.ResponseWriter, r *http.Request) {
	var body struct {
		IDs []string `json:"ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.Listed = append(s.Listed, body.IDs)
	resp := s.list
	s.mu.Unlock()

	write(w, resp)
}

// next pops the head of the queue, leaving the final element in place.
func next(queue *[]string) string {
	q := *queue
	if len(q) == 0 {
		return "{}"
	}
	head := q[0]
	if len(q) > 1 {
		*queue = q[1:]
	}
	return head
}

func write(w http.ResponseWriter, body string) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(body))
}
