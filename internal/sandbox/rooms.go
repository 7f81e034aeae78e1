package sandbox

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

// GET /Rooms/get-room?roomId=
func (s *Server) handleRoom(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	room, ok := s.st.rooms[r.URL.Query().Get("roomId")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "room not found", "roomId"))
		return
	}
	writeJSON(w, http.StatusOK, room)
}

// GET /Rooms/get-rooms?limit=&roomType=
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	limit := clampInt(qInt(r, "limit", 30), 1, 100)
	typ := qInt(r, "roomType", 0)

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	out := []*rooms.Room{}
	for _, id := range s.st.order {
		room := s.st.rooms[id]
		if room.Type.Ordinal() != typ {
			continue
		}
		out = append(out, room)
		if len(out) == limit {
			break
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out, "cursor": ""})
}

// GET /Rooms/tiers
func (s *Server) handleTiers(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	tiers := s.st.tiers
	if tiers == nil {
		tiers = []rooms.TierInfo{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": tiers})
}

// GET /Rooms/pre-paid
func (s *Server) handlePrePaid(w http.ResponseWriter, r *http.Request) {
	me := callerFrom(r).platformID
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	out := []rooms.PrePaid{}
	for _, id := range s.st.order {
		if p := s.st.openPart(id, me); p != nil {
			out = append(out, rooms.PrePaid{
				ID:              id,
				AttemptsLeft:    1,
				ParticipationID: p.id,
				GameSessionID:   p.id,
				VoucherUsed:     rooms.FlexibleBool(p.voucherUsed),
			})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// GET /Rooms/leaders?session_or_match_id=&eventId=[&matchId=]
func (s *Server) handleLeaders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	room, ok := s.st.rooms[q.Get("eventId")]
	if !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "room not found", "eventId"))
		return
	}
	if id := q.Get("session_or_match_id"); id != "" {
		_, isPart := s.st.parts[id]
		_, isMatch := s.st.matches[id]
		if !isPart && !isMatch {
			writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "session not found", "session_or_match_id"))
			return
		}
	}
	leaders := s.st.ranking(room)
	leaders.MatchID = q.Get("matchId")
	writeJSON(w, http.StatusOK, leaders)
}

// GET /Rooms/get-history?sessionId=&withEvent=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	c := callerFrom(r)
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	p, ok := s.st.parts[q.Get("sessionId")]
	if !ok || (!c.server && p.platformID != c.platformID) {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "session not found", "sessionId"))
		return
	}
	room := s.st.rooms[p.eventID]
	registered := p.registered
	h := rooms.SessionHistory{GameSession: rooms.GameSession{
		ID:           p.id,
		RegisteredAt: &registered,
		StartedAt:    &registered,
		Score:        p.score,
		ScoredAt:     p.scored,
		GameID:       room.GameID,
		UserID:       strconv.FormatInt(p.platformID, 10),
		EventID:      p.eventID,
		VoucherUsed:  rooms.FlexibleBool(p.voucherUsed),
	}}
	if q.Get("withEvent") == "true" {
		h.Event = room
	}
	writeJSON(w, http.StatusOK, h)
}

// POST /Rooms/join-room?idempotencyKey=&getLobbyQuote=
func (s *Server) handleJoin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TournamentID string  `json:"tournamentId"`
		CommunityID  *string `json:"communityId"`
		Password     string  `json:"password"`
		UseVoucher   bool    `json:"UseVoucher"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	key := r.URL.Query().Get("idempotencyKey")
	me := callerFrom(r).platformID

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if prev, ok := s.st.joins[key]; ok && key != "" {
		writeJSON(w, http.StatusOK, prev)
		return
	}
	room, ok := s.st.rooms[body.TournamentID]
	if !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "room not found", "tournamentId"))
		return
	}
	player, ok := s.currentPlayer(w, r)
	if !ok {
		return
	}

	var resp map[string]any
	if p := s.st.openPart(room.ID, me); p != nil {
		resp = map[string]any{"id": s.st.newID(), "game_session_id_or_match_id": p.id}
	} else {
		if err := charge(player, room, body.UseVoucher); err != nil {
			writeJSON(w, http.StatusPaymentRequired, errObj("PAYMENT_REQUIRED", err.Error(), ""))
			return
		}
		quote := s.st.newID()
		s.st.lobbies[quote] = lobbyEntry{platformID: me, eventID: room.ID, voucherUsed: body.UseVoucher}
		resp = map[string]any{"id": s.st.newID(), "lobby_quote": map[string]string{"id": quote}}
	}
	if key != "" {
		s.st.joins[key] = resp
	}
	writeJSON(w, http.StatusOK, resp)
}

func charge(p *Player, room *rooms.Room, useVoucher bool) error {
	if useVoucher {
		for i := range p.Vouchers {
			v := &p.Vouchers[i]
			if v.Tier == room.Tier() && v.Usable() {
				v.Count--
				return nil
			}
		}
		return errNoVoucher
	}
	fee, ok := room.Ticket.CurrencyFee()
	if !ok {
		return nil
	}
	if p.Coins < float64(fee) {
		return errInsufficient
	}
	p.Coins -= float64(fee)
	return nil
}

// POST /Rooms/start-room-sp?eventId=&sessionOrMatchId=&isLobby=
func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	me := callerFrom(r).platformID
	s.st.mu.Lock()
	defer s.st.mu.Unlock()

	quote := q.Get("sessionOrMatchId")
	lobby, ok := s.st.lobbies[quote]
	if !ok || lobby.platformID != me || lobby.eventID != q.Get("eventId") {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "lobby entry not found", "sessionOrMatchId"))
		return
	}
	p, err := s.st.register(lobby.eventID, me, quote)
	if err != nil {
		writeJSON(w, http.StatusConflict, errObj("CONFLICT", err.Error(), "eventId"))
		return
	}
	p.voucherUsed = lobby.voucherUsed
	delete(s.st.lobbies, quote)
	s.log.Printf("player %d entered %s as %s", me, lobby.eventID, p.id)
	writeJSON(w, http.StatusOK, map[string]string{"id": p.id})
}

// register adds a participation, refusing when the room is at capacity.
func (st *state) register(eventID string, platformID int64, id string) (*participation, error) {
	room := st.rooms[eventID]
	if n := room.Capacity(); n > 0 && len(st.roomParts(eventID)) >= n {
		return nil, errRoomFull
	}
	if id == "" {
		id = st.newID()
	}
	p := &participation{id: id, eventID: eventID, platformID: platformID, registered: st.now()}
	st.parts[id] = p
	return p, nil
}

type endBody struct {
	EncryptedData string   `json:"EncryptedData"`
	TournamentID  string   `json:"TournamentId"`
	Hash          string   `json:"Hash"`
	Score         *int64   `json:"Score"`
	UserID        int64    `json:"UserId"`
	GameEvents    []string `json:"GameEvents"`
}

// POST /Rooms/end-room-sp?eventId=&gameSessionIrOrMatchId=
func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	var body endBody
	if !decodeBody(w, r, &body) {
		return
	}
	q := r.URL.Query()
	eventID, sessionID := q.Get("eventId"), q.Get("gameSessionIrOrMatchId")
	c := callerFrom(r)

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.rooms[eventID]; !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "room not found", "eventId"))
		return
	}

	sub := body
	var p *participation
	if c.server {
		player, ok := s.st.playerByAnyID(body.UserID)
		if !ok {
			writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "player not found", "UserId"))
			return
		}
		var err error
		if p, err = s.st.serverPart(eventID, player.PlatformID, sessionID); err != nil {
			writeJSON(w, http.StatusConflict, errObj("CONFLICT", err.Error(), "eventId"))
			return
		}
	} else {
		if body.EncryptedData == "" {
			writeJSON(w, http.StatusUnprocessableEntity, errObj("VALIDATION_ERROR", "sealed score required", "EncryptedData"))
			return
		}
		sub = endBody{}
		if err := s.codec.OpenScore(sessionID, envelope.Sealed{Data: body.EncryptedData, Hash: body.Hash}, &sub); err != nil {
			s.log.Printf("rejected score for %s: %v", sessionID, err)
			writeJSON(w, http.StatusBadRequest, errObj("BAD_SEAL", "score seal rejected", "Hash"))
			return
		}
		var ok bool
		p, ok = s.st.parts[sessionID]
		if !ok || p.platformID != c.platformID || p.eventID != eventID {
			writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "session not found", "gameSessionIrOrMatchId"))
			return
		}
		if me := s.st.players[c.platformID]; me != nil && sub.UserID != 0 && sub.UserID != me.UserID {
			writeJSON(w, http.StatusForbidden, errObj("FORBIDDEN", "score reported for another user", "UserId"))
			return
		}
	}
	if p.finished {
		writeJSON(w, http.StatusConflict, errObj("CONFLICT", "score already submitted", "gameSessionIrOrMatchId"))
		return
	}
	s.st.finish(p, sub.Score, sub.GameEvents)
	s.st.finishSaved(sessionID)
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

// serverPart finds the participation a dedicated server reports for: the
// named session, else the player's open run, else a new run for players
// matched outside the sandbox.
func (st *state) serverPart(eventID string, platformID int64, sessionID string) (*participation, error) {
	if p, ok := st.parts[sessionID]; ok && p.platformID == platformID {
		return p, nil
	}
	if p := st.openPart(eventID, platformID); p != nil {
		return p, nil
	}
	return st.register(eventID, platformID, "")
}

func (st *state) finish(p *participation, score *int64, events []string) {
	now := st.now()
	p.score = score
	p.events = append([]string{}, events...)
	p.finished = true
	p.scored = &now
	p.reason = rooms.FinishOK
	if score == nil {
		p.reason = rooms.FinishUnfinished
	}
}

// POST /Rooms/end-room-all-users?eventId=&gameSessionIrOrMatchId=
func (s *Server) handleEndAll(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Users []rooms.FinishedUser `json:"Users"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	q := r.URL.Query()
	eventID, matchID := q.Get("eventId"), q.Get("gameSessionIrOrMatchId")

	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.rooms[eventID]; !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "room not found", "eventId"))
		return
	}
	var errs []error
	for _, u := range body.Users {
		player, ok := s.st.playerByAnyID(u.FunticoUserID)
		if !ok {
			player, ok = s.st.playerByAnyID(u.UserID)
		}
		if !ok {
			errs = append(errs, errors.New("unknown user "+strconv.FormatInt(u.UserID, 10)))
			continue
		}
		p, err := s.st.serverPart(eventID, player.PlatformID, "")
		if err != nil {
			errs = append(errs, err)
			continue
		}
		score := u.Score
		s.st.finish(p, &score, u.GameEvents)
	}
	if err := errors.Join(errs...); err != nil {
		writeJSON(w, http.StatusConflict, errObj("CONFLICT", err.Error(), "Users"))
		return
	}
	s.log.Printf("match %s of %s finished with %d players", matchID, eventID, len(body.Users))
	writeJSON(w, http.StatusOK, map[string]bool{"accepted": true})
}

func qInt(r *http.Request, key string, def int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil {
		return def
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
