package session

import (
	"context"
	"fmt"
	"io"
	"log"
	"sort"
	"sync"
	"sync/atomic"
)

type participantLog struct {
	info Participant

	mu     sync.Mutex
	events []string
	closed bool
}

// append reports false once the log has been evicted.
func (p *participantLog) append(event string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	p.events = append(p.events, event)
	return true
}

func (p *participantLog) close() {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
}

func (p *participantLog) snapshot() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string{}, p.events...)
}

// match is one open match session. Its participant map is replaced, never
// emptied in place, so a close is a single pointer swap.
type match struct {
	id   string
	logs sync.Map // int64 -> *participantLog
}

// ServerManager keeps one event log per participant of a dedicated server's
// match session. RecordEvent for different participants never contends on a
// shared lock; lifecycle calls are serialized among themselves.
type ServerManager struct {
	backend ServerBackend
	log     *log.Logger

	lifecycle sync.Mutex
	current   atomic.Pointer[match]
}

// NewServerManager creates a manager with no open match session.
func NewServerManager(backend ServerBackend, logger *log.Logger) *ServerManager {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &ServerManager{backend: backend, log: logger}
}

// MatchID returns the open match session's backend id, or "".
func (s *ServerManager) MatchID() string {
	if m := s.current.Load(); m != nil {
		return m.id
	}
	return ""
}

// OpenMatchSession registers the match with the backend and creates an empty
// log for every participant. It fails without contacting the backend when a
// match is already open or a participant id repeats.
func (s *ServerManager) OpenMatchSession(ctx context.Context, serverURL, matchSessionID string, participants []Participant) (string, error) {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	if m := s.current.Load(); m != nil {
		return "", fmt.Errorf("%w: %s", ErrMatchSessionActive, m.id)
	}
	seen := make(map[int64]struct{}, len(participants))
	for _, p := range participants {
		if _, dup := seen[p.FunticoUserID]; dup {
			return "", fmt.Errorf("%w: %d", ErrParticipantRegistered, p.FunticoUserID)
		}
		seen[p.FunticoUserID] = struct{}{}
	}

	id, err := s.backend.CreateMatchSession(ctx, MatchRequest{
		ServerURL:    serverURL,
		SessionID:    matchSessionID,
		Participants: participants,
	})
	if err != nil {
		return "", err
	}

	m := &match{id: id}
	for _, p := range participants {
		m.logs.Store(p.FunticoUserID, &participantLog{info: p, events: []string{}})
	}
	s.current.Store(m)
	s.log.Printf("match %s opened with %d participants", id, len(participants))
	return id, nil
}

// RecordEvent appends to one participant's log. An unregistered participant
// is logged and reported as ErrUnknownParticipant; other logs are untouched.
func (s *ServerManager) RecordEvent(participantID int64, event string) error {
	p, err := s.lookup(participantID)
	if err != nil {
		s.log.Printf("dropped event for participant %d: %v", participantID, err)
		return err
	}
	if !p.append(event) {
		err := fmt.Errorf("%w: %d (left the match)", ErrUnknownParticipant, participantID)
		s.log.Printf("dropped event for participant %d: %v", participantID, err)
		return err
	}
	return nil
}

// Events returns a copy of one participant's log.
func (s *ServerManager) Events(participantID int64) ([]string, error) {
	p, err := s.lookup(participantID)
	if err != nil {
		return nil, err
	}
	return p.snapshot(), nil
}

// Participant returns one registered participant.
func (s *ServerManager) Participant(participantID int64) (Participant, error) {
	p, err := s.lookup(participantID)
	if err != nil {
		return Participant{}, err
	}
	return p.info, nil
}

// Participants returns the registered participants ordered by id.
func (s *ServerManager) Participants() []Participant {
	m := s.current.Load()
	if m == nil {
		return nil
	}
	var out []Participant
	m.logs.Range(func(_, v any) bool {
		out = append(out, v.(*participantLog).info)
		return true
	})
	sort.Slice(out, func(i, j int) bool { return out[i].FunticoUserID < out[j].FunticoUserID })
	return out
}

// LeaveParticipant reports a participant's departure to the backend and then
// drops that participant's log. Other participants are unaffected.
func (s *ServerManager) LeaveParticipant(ctx context.Context, participantID int64) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	m := s.current.Load()
	if m == nil {
		return ErrNoMatchSession
	}
	v, ok := m.logs.Load(participantID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownParticipant, participantID)
	}
	if err := s.backend.LeaveMatchSession(ctx, m.id, participantID); err != nil {
		return err
	}
	m.logs.Delete(participantID)
	v.(*participantLog).close()
	return nil
}

// CloseMatchSession closes the match on the backend and then drops every
// log at once. If the backend call fails nothing is removed and the call may
// be retried.
func (s *ServerManager) CloseMatchSession(ctx context.Context) error {
	s.lifecycle.Lock()
	defer s.lifecycle.Unlock()

	m := s.current.Load()
	if m == nil {
		return ErrNoMatchSession
	}
	if err := s.backend.CloseMatchSession(ctx, m.id); err != nil {
		return err
	}
	s.current.Store(nil)
	m.logs.Range(func(_, v any) bool {
		v.(*participantLog).close()
		return true
	})
	s.log.Printf("match %s closed", m.id)
	return nil
}

func (s *ServerManager) lookup(participantID int64) (*participantLog, error) {
	m := s.current.Load()
	if m == nil {
		return nil, fmt.Errorf("%w: %d (no match session)", ErrUnknownParticipant, participantID)
	}
	v, ok := m.logs.Load(participantID)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownParticipant, participantID)
	}
	return v.(*participantLog), nil
}
