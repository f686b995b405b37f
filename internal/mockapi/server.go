// Package mockapi is an in-memory implementation of the chat REST backend.
// It serves tests and the mock-server command.
package mockapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/andertben/skillspot-chat/internal/logging"
	"github.com/andertben/skillspot-chat/internal/models"
)

// Service is a bookable service listing owned by a provider.
type Service struct {
	ID           string
	Title        string
	ProviderSub  string
	ProviderName string
}

type user struct {
	subject string
	name    string
}

type thread struct {
	id           string
	serviceID    string
	requesterSub string
	providerSub  string
	createdAt    time.Time
	updatedAt    time.Time
	messages     []messageDTO
}

type messageDTO struct {
	MessageID string `json:"messageId"`
	ThreadID  string `json:"threadId"`
	SenderSub string `json:"senderSub"`
	Text      string `json:"text"`
	CreatedAt string `json:"createdAt"`
}

type threadDTO struct {
	ThreadID        string `json:"threadId"`
	ServiceID       string `json:"dienstleistungId"`
	ServiceTitle    string `json:"dienstleistungTitle,omitempty"`
	CounterpartName string `json:"anbieterName,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

type summaryDTO struct {
	ThreadID        string `json:"threadId"`
	ServiceTitle    string `json:"dienstleistungTitle,omitempty"`
	CounterpartName string `json:"anbieterName,omitempty"`
	LastMessageText string `json:"lastMessageText,omitempty"`
	LastMessageAt   string `json:"lastMessageAt,omitempty"`
	UnreadCount     int    `json:"unreadCount"`
}

type fault struct {
	status int
}

// Server is the mock backend. All methods are safe for concurrent use.
type Server struct {
	mu       sync.Mutex
	users    map[string]user // token -> user
	names    map[string]string
	services map[string]Service
	threads  map[string]*thread
	// read[subject][threadID] is the number of messages the subject has read.
	read   map[string]map[string]int
	faults map[string][]fault
	hits   map[string]int
	nextID int

	now    func() time.Time
	router *mux.Router
	logger zerolog.Logger
}

// New creates an empty mock backend.
func New() *Server {
	s := &Server{
		users:    make(map[string]user),
		names:    make(map[string]string),
		services: make(map[string]Service),
		threads:  make(map[string]*thread),
		read:     make(map[string]map[string]int),
		faults:   make(map[string][]fault),
		hits:     make(map[string]int),
		nextID:   1,
		now:      time.Now,
		logger:   logging.Component("mockapi"),
	}
	s.router = mux.NewRouter()
	s.register(s.router)
	return s
}

// SetClock overrides the server clock.
func (s *Server) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// AddUser registers a bearer token for subject.
func (s *Server) AddUser(token, subject, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[token] = user{subject: subject, name: name}
	s.names[subject] = name
}

// AddService registers a service listing.
func (s *Server) AddService(svc Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
	if svc.ProviderName != "" {
		s.names[svc.ProviderSub] = svc.ProviderName
	}
}

// CreateThread opens a thread directly, bypassing HTTP. It returns the
// thread ID.
func (s *Server) CreateThread(serviceID, requesterSub string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, status := s.createThreadLocked(serviceID, requesterSub)
	return idOf(th), status < 300
}

// PostMessage appends a message as subject, bypassing HTTP.
func (s *Server) PostMessage(threadID, senderSub, text string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	th, ok := s.threads[threadID]
	if !ok {
		return "", false
	}
	msg := s.appendLocked(th, senderSub, text)
	return msg.MessageID, true
}

// FailNext makes the next request to path answer with status.
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[path] = append(s.faults[path], fault{status: status})
}

// Hits returns how many requests were received for "METHOD path".
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) register(r *mux.Router) {
	r.Use(s.recordAndFault)

	chat := r.PathPrefix("/chat").Subrouter()
	chat.Use(s.requireBearer)
	chat.HandleFunc("/threads", s.listThreads).Methods(http.MethodGet)
	chat.HandleFunc("/threads", s.createThread).Methods(http.MethodPost)
	chat.HandleFunc("/unread-count", s.unreadCount).Methods(http.MethodGet)
	chat.HandleFunc("/threads/{id}", s.getThread).Methods(http.MethodGet)
	chat.HandleFunc("/threads/{id}/read", s.markRead).Methods(http.MethodPost)
	chat.HandleFunc("/threads/{id}/messages", s.listMessages).Methods(http.MethodGet)
	chat.HandleFunc("/threads/{id}/messages", s.sendMessage).Methods(http.MethodPost)
}

func (s *Server) recordAndFault(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.hits[r.Method+" "+r.URL.Path]++
		var injected *fault
		if queue := s.faults[r.URL.Path]; len(queue) > 0 {
			injected = &queue[0]
			s.faults[r.URL.Path] = queue[1:]
		}
		s.mu.Unlock()

		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		if injected != nil {
			writeError(w, injected.status, "injected", "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type subjectKey struct{}

func (s *Server) requireBearer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized", "bearer token required")
			return
		}
		s.mu.Lock()
		u, known := s.users[strings.TrimSpace(token)]
		s.mu.Unlock()
		if !known {
			writeError(w, http.StatusUnauthorized, "unauthorized", "unknown token")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), subjectKey{}, u.subject)))
	})
}

func subjectOf(r *http.Request) string {
	sub, _ := r.Context().Value(subjectKey{}).(string)
	return sub
}

func (s *Server) listThreads(w http.ResponseWriter, r *http.Request) {
	sub := subjectOf(r)

	s.mu.Lock()
	var rows []*thread
	for _, th := range s.threads {
		if th.participant(sub) {
			rows = append(rows, th)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].updatedAt.Equal(rows[j].updatedAt) {
			return rows[i].id < rows[j].id
		}
		return rows[i].updatedAt.After(rows[j].updatedAt)
	})
	out := make([]summaryDTO, 0, len(rows))
	for _, th := range rows {
		svc := s.services[th.serviceID]
		row := summaryDTO{
			ThreadID:        th.id,
			ServiceTitle:    svc.Title,
			CounterpartName: s.names[th.counterpart(sub)],
			UnreadCount:     s.unreadLocked(sub, th),
		}
		if n := len(th.messages); n > 0 {
			row.LastMessageText = th.messages[n-1].Text
			row.LastMessageAt = th.messages[n-1].CreatedAt
		}
		out = append(out, row)
	}
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, out)
}

func (s *Server) createThread(w http.ResponseWriter, r *http.Request) {
	var req models.CreateThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	sub := subjectOf(r)
	s.mu.Lock()
	th, status := s.createThreadLocked(strings.TrimSpace(req.ServiceID), sub)
	var dto threadDTO
	if th != nil {
		dto = s.threadDTOLocked(th, sub)
	}
	s.mu.Unlock()

	switch status {
	case http.StatusNotFound:
		writeError(w, status, "not_found", "service not found")
	case http.StatusBadRequest:
		writeError(w, status, "invalid_request", "cannot contact your own service")
	default:
		writeJSON(w, status, dto)
	}
}

func (s *Server) getThread(w http.ResponseWriter, r *http.Request) {
	th, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	dto := s.threadDTOLocked(th, subjectOf(r))
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, dto)
}

func (s *Server) markRead(w http.ResponseWriter, r *http.Request) {
	th, ok := s.lookup(w, r)
	if !ok {
		return
	}
	sub := subjectOf(r)
	s.mu.Lock()
	if s.read[sub] == nil {
		s.read[sub] = make(map[string]int)
	}
	s.read[sub][th.id] = len(th.messages)
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	th, ok := s.lookup(w, r)
	if !ok {
		return
	}
	s.mu.Lock()
	out := make([]messageDTO, len(th.messages))
	copy(out, th.messages)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	th, ok := s.lookup(w, r)
	if !ok {
		return
	}
	var req models.SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "invalid json")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)

	s.mu.Lock()
	msg := s.appendLocked(th, subjectOf(r), text)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) unreadCount(w http.ResponseWriter, r *http.Request) {
	sub := subjectOf(r)
	s.mu.Lock()
	total := 0
	for _, th := range s.threads {
		if th.participant(sub) {
			total += s.unreadLocked(sub, th)
		}
	}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]int{"unreadCount": total})
}

// lookup resolves {id} and enforces participation.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*thread, bool) {
	id := mux.Vars(r)["id"]
	s.mu.Lock()
	th, ok := s.threads[id]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", "thread not found")
		return nil, false
	}
	if !th.participant(subjectOf(r)) {
		writeError(w, http.StatusForbidden, "forbidden", "not a participant")
		return nil, false
	}
	return th, true
}

func (s *Server) createThreadLocked(serviceID, requesterSub string) (*thread, int) {
	svc, ok := s.services[serviceID]
	if !ok {
		return nil, http.StatusNotFound
	}
	if svc.ProviderSub == requesterSub {
		return nil, http.StatusBadRequest
	}
	for _, th := range s.threads {
		if th.serviceID == serviceID && th.requesterSub == requesterSub {
			return th, http.StatusOK
		}
	}
	now := s.now().UTC()
	th := &thread{
		id:           uuid.New().String(),
		serviceID:    serviceID,
		requesterSub: requesterSub,
		providerSub:  svc.ProviderSub,
		createdAt:    now,
		updatedAt:    now,
	}
	s.threads[th.id] = th
	return th, http.StatusCreated
}

func (s *Server) appendLocked(th *thread, senderSub, text string) messageDTO {
	now := s.now().UTC()
	msg := messageDTO{
		MessageID: strconv.Itoa(s.nextID),
		ThreadID:  th.id,
		SenderSub: senderSub,
		Text:      text,
		CreatedAt: now.Format(time.RFC3339Nano),
	}
	s.nextID++
	th.messages = append(th.messages, msg)
	th.updatedAt = now

	// The sender has implicitly read everything up to their own message.
	if s.read[senderSub] == nil {
		s.read[senderSub] = make(map[string]int)
	}
	s.read[senderSub][th.id] = len(th.messages)
	return msg
}

func (s *Server) unreadLocked(sub string, th *thread) int {
	n := len(th.messages) - s.read[sub][th.id]
	if n < 0 {
		return 0
	}
	return n
}

func (s *Server) threadDTOLocked(th *thread, viewer string) threadDTO {
	svc := s.services[th.serviceID]
	return threadDTO{
		ThreadID:        th.id,
		ServiceID:       th.serviceID,
		ServiceTitle:    svc.Title,
		CounterpartName: s.names[th.counterpart(viewer)],
		CreatedAt:       th.createdAt.Format(time.RFC3339Nano),
		UpdatedAt:       th.updatedAt.Format(time.RFC3339Nano),
	}
}

func (t *thread) participant(sub string) bool {
	return sub != "" && (sub == t.requesterSub || sub == t.providerSub)
}

func (t *thread) counterpart(sub string) string {
	if sub == t.providerSub {
		return t.requesterSub
	}
	return t.providerSub
}

func idOf(th *thread) string {
	if th == nil {
		return ""
	}
	return th.id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}
