package sandbox

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/session"
)

// GET /Session/any-unfinished-sessions
func (s *Server) handleUnfinished(w http.ResponseWriter, r *http.Request) {
	me := callerFrom(r).platformID
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	var open []*savedSession
	for _, sv := range s.st.sessions {
		if sv.owner == me && !sv.finished {
			open = append(open, sv)
		}
	}
	if len(open) == 0 {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "no unfinished sessions", ""))
		return
	}
	sort.Slice(open, func(i, j int) bool { return open[i].updated.After(open[j].updated) })
	out := make([]envelope.Envelope, len(open))
	for i, sv := range open {
		out[i] = sv.env
	}
	writeJSON(w, http.StatusOK, out)
}

// GET /Session/reconnect-to-session?saveSessionId=
func (s *Server) handleReconnect(w http.ResponseWriter, r *http.Request) {
	me := callerFrom(r).platformID
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sv, ok := s.st.sessions[r.URL.Query().Get("saveSessionId")]
	if !ok || sv.owner != me {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "session not found", "saveSessionId"))
		return
	}
	writeJSON(w, http.StatusOK, sv.env)
}

// POST /Session/create-session
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var env envelope.Envelope
	if !decodeBody(w, r, &env) {
		return
	}
	me := callerFrom(r).platformID
	if !s.checkTag(w, me, env) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if env.SaveSessionID == "" {
		env.SaveSessionID = s.st.newID()
	} else if prev, ok := s.st.sessions[env.SaveSessionID]; ok && prev.owner != me {
		writeJSON(w, http.StatusConflict, errObj("CONFLICT", "save session id in use", "saveSessionId"))
		return
	}
	if env.SessionID == "" {
		if p := s.st.openPart(env.EventID, me); p != nil {
			env.SessionID = p.id
		} else {
			env.SessionID = s.st.newID()
		}
	}
	s.st.sessions[env.SaveSessionID] = &savedSession{owner: me, env: env, updated: s.st.now()}
	writeJSON(w, http.StatusOK, env)
}

// POST /Session/update-session
func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var env envelope.Envelope
	if !decodeBody(w, r, &env) {
		return
	}
	me := callerFrom(r).platformID
	if !s.checkTag(w, me, env) {
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	sv, ok := s.st.sessions[env.SaveSessionID]
	if !ok || sv.owner != me {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "session not found", "saveSessionId"))
		return
	}
	if env.SessionID == "" {
		env.SessionID = sv.env.SessionID
	}
	sv.env = env
	sv.updated = s.st.now()
	w.WriteHeader(http.StatusOK)
}

// checkTag refuses envelopes whose integrity tag does not verify for the
// caller. Only the tag is checked; the payload stays opaque.
func (s *Server) checkTag(w http.ResponseWriter, platformID int64, env envelope.Envelope) bool {
	if err := s.codec.VerifyTag(platformID, envelope.Sealed{Data: env.Data, Hash: env.Hash}); err != nil {
		s.log.Printf("rejected envelope %s for player %d: %v", env.SaveSessionID, platformID, err)
		writeJSON(w, http.StatusBadRequest, errObj("BAD_HASH", "envelope tag rejected", "hash"))
		return false
	}
	return true
}

// POST /Session/create-server-session
func (s *Server) handleOpenMatch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		URL       string `json:"Url"`
		SessionID string `json:"SessionId"`
		Players   string `json:"Players"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	var players []session.Participant
	if err := json.Unmarshal([]byte(body.Players), &players); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errObj("VALIDATION_ERROR", "Players must be a JSON array", "Players"))
		return
	}

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m := &matchSession{
		id:        s.st.newID(),
		serverURL: body.URL,
		sessionID: body.SessionID,
		players:   make(map[int64]session.Participant, len(players)),
	}
	for _, p := range players {
		m.players[p.FunticoUserID] = p
	}
	s.st.matches[m.id] = m
	s.log.Printf("match %s opened by %s with %d players", m.id, body.URL, len(players))
	writeJSON(w, http.StatusOK, map[string]string{"Id": m.id})
}

// GET /Session/server-session-user-leave?id=&userId=
func (s *Server) handleLeaveMatch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid, err := strconv.ParseInt(q.Get("userId"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errObj("VALIDATION_ERROR", "userId must be an integer", "userId"))
		return
	}
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.matches[q.Get("id")]
	if !ok || m.closed {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "match not found", "id"))
		return
	}
	if _, ok := m.players[uid]; !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "player not in match", "userId"))
		return
	}
	delete(m.players, uid)
	w.WriteHeader(http.StatusOK)
}

// GET /Session/close-server-session?id=
func (s *Server) handleCloseMatch(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	m, ok := s.st.matches[r.URL.Query().Get("id")]
	if !ok || m.closed {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "match not found", "id"))
		return
	}
	m.closed = true
	w.WriteHeader(http.StatusOK)
}
