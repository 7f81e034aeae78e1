package sandbox

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

const tokenTTL = time.Hour

// Config configures a sandbox server.
type Config struct {
	// Addr is the listen address used by Start, e.g. "127.0.0.1:8088".
	Addr string
	// PublicKey must match the X-User-Key header when set.
	PublicKey string
	// PrivateKey is the shared game secret. It verifies envelope tags,
	// opens score seals and checks X-Server-Key.
	PrivateKey string
	// SigningKey signs issued SDK tokens. Random when empty.
	SigningKey []byte
	Logger     *log.Logger
}

// Server serves the sandbox API.
type Server struct {
	cfg        Config
	codec      *envelope.Codec
	st         *state
	log        *log.Logger
	httpServer *http.Server
}

// New creates an empty sandbox. Seed it with AddPlayer and AddRoom.
func New(cfg Config) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "127.0.0.1:8088"
	}
	if len(cfg.SigningKey) == 0 {
		cfg.SigningKey = make([]byte, 32)
		if _, err := rand.Read(cfg.SigningKey); err != nil {
			panic(fmt.Sprintf("sandbox: signing key: %v", err))
		}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Server{
		cfg:   cfg,
		codec: envelope.NewCodec(cfg.PrivateKey),
		st:    newState(),
		log:   logger,
	}
}

// AddPlayer seeds or replaces a player, keyed by platform id.
func (s *Server) AddPlayer(p Player) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	cp := p
	cp.Vouchers = append([]rooms.Voucher(nil), p.Vouchers...)
	s.st.players[p.PlatformID] = &cp
}

// AddRoom seeds or replaces a room.
func (s *Server) AddRoom(r rooms.Room) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.rooms[r.ID]; !ok {
		s.st.order = append(s.st.order, r.ID)
	}
	s.st.rooms[r.ID] = &r
}

// SetTiers seeds the tier list.
func (s *Server) SetTiers(tiers []rooms.TierInfo) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.tiers = tiers
}

// SetVoucherCatalogue seeds the voucher static data.
func (s *Server) SetVoucherCatalogue(statics []VoucherStatic) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.statics = statics
}

// Settle moves a room's ranking to state and attaches the prize rows to the
// finished places.
func (s *Server) Settle(roomID string, st rooms.LeadersState) error {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.rooms[roomID]; !ok {
		return fmt.Errorf("sandbox: settle %s: %w", roomID, errNotFound)
	}
	s.st.settled[roomID] = st
	return nil
}

// Events returns the event log a session's score was submitted with.
func (s *Server) Events(sessionID string) ([]string, bool) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	p, ok := s.st.parts[sessionID]
	if !ok || !p.finished {
		return nil, false
	}
	return append([]string(nil), p.events...), true
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequest)

	r.Get("/api/v1/web/users", s.handlePlatformUsers)

	r.Group(func(r chi.Router) {
		r.Use(s.requireGame)
		r.Post("/Auth/funtico-auth", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)

			r.Route("/User", func(r chi.Router) {
				r.Use(requirePlayer)
				r.Get("/get-full-data", s.handleUserData)
				r.Get("/get-balance", s.handleBalance)
				r.Get("/vouchers", s.handleVouchers)
				r.Get("/vouchers-data", s.handleVoucherStatics)
			})

			r.Route("/Rooms", func(r chi.Router) {
				r.Get("/get-room", s.handleRoom)
				r.Get("/get-rooms", s.handleRooms)
				r.Get("/tiers", s.handleTiers)
				r.Get("/leaders", s.handleLeaders)
				r.Get("/get-history", s.handleHistory)
				r.Post("/end-room-sp", s.handleEnd)
				r.With(requireServer).Post("/end-room-all-users", s.handleEndAll)
				r.With(requirePlayer).Get("/pre-paid", s.handlePrePaid)
				r.With(requirePlayer).Post("/join-room", s.handleJoin)
				r.With(requirePlayer).Post("/start-room-sp", s.handleStart)
			})

			r.Route("/Session", func(r chi.Router) {
				r.Group(func(r chi.Router) {
					r.Use(requirePlayer)
					r.Get("/any-unfinished-sessions", s.handleUnfinished)
					r.Get("/reconnect-to-session", s.handleReconnect)
					r.Post("/create-session", s.handleCreateSession)
					r.Post("/update-session", s.handleUpdateSession)
				})
				r.Group(func(r chi.Router) {
					r.Use(requireServer)
					r.Post("/create-server-session", s.handleOpenMatch)
					r.Get("/server-session-user-leave", s.handleLeaveMatch)
					r.Get("/close-server-session", s.handleCloseMatch)
				})
			})
		})
	})
	return r
}

// Start listens on the configured address and serves in a goroutine. It
// returns once the socket is bound.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.Routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("sandbox: listen %s: %w", s.cfg.Addr, err)
	}
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Printf("serve: %v", err)
		}
	}()
	s.log.Printf("listening on %s", ln.Addr())
	return nil
}

// Shutdown gracefully stops a started server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// ========== Auth ==========

type ctxKey int

const callerKey ctxKey = iota

// caller is the authenticated side of a request: a player holding an SDK
// token, or a dedicated server proving the game secret.
type caller struct {
	platformID int64
	server     bool
}

func callerFrom(r *http.Request) caller {
	c, _ := r.Context().Value(callerKey).(caller)
	return c
}

func (s *Server) requireGame(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.PublicKey != "" && r.Header.Get("X-User-Key") != s.cfg.PublicKey {
			writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "unknown game key", "X-User-Key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var c caller
		if key := r.Header.Get("X-Server-Key"); key != "" {
			want := transport.ServerKey(s.cfg.PrivateKey, s.cfg.PublicKey)
			if !hmac.Equal([]byte(key), []byte(want)) {
				writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "invalid server key", "X-Server-Key"))
				return
			}
			c.server = true
		}
		if bearer, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && !c.server {
			id, err := s.verifyToken(bearer)
			if err != nil {
				writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "invalid token", "Authorization"))
				return
			}
			c.platformID = id
		}
		if !c.server && c.platformID == 0 {
			writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "missing credentials", ""))
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), callerKey, c)))
	})
}

func requirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if callerFrom(r).platformID == 0 {
			writeJSON(w, http.StatusForbidden, errObj("FORBIDDEN", "player token required", "Authorization"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func requireServer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !callerFrom(r).server {
			writeJSON(w, http.StatusForbidden, errObj("FORBIDDEN", "server key required", "X-Server-Key"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) issueToken(platformID int64) (string, error) {
	now := s.st.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(platformID, 10),
		Issuer:    "funtico-sandbox",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.SigningKey)
}

func (s *Server) verifyToken(token string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.cfg.SigningKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer("funtico-sandbox"))
	if err != nil {
		return 0, err
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

// POST /Auth/funtico-auth
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"Token"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	s.st.mu.Lock()
	p, ok := s.st.playerByToken(body.Token)
	s.st.mu.Unlock()
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "unknown platform token", "Token"))
		return
	}
	tok, err := s.issueToken(p.PlatformID)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errObj("SERVER_ERROR", "failed to sign token", ""))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"token": tok})
}

// GET /api/v1/web/users?ids[]=..
func (s *Server) handlePlatformUsers(w http.ResponseWriter, r *http.Request) {
	bearer, _ := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	if _, ok := s.st.playerByToken(bearer); !ok {
		writeJSON(w, http.StatusUnauthorized, errObj("UNAUTHORIZED", "unknown platform token", "Authorization"))
		return
	}

	type image struct {
		URL string `json:"url"`
	}
	type user struct {
		ID     uint64 `json:"id"`
		Name   string `json:"name"`
		Avatar *image `json:"avatar,omitempty"`
		Border *image `json:"border,omitempty"`
	}
	out := []user{}
	for _, raw := range r.URL.Query()["ids[]"] {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, errObj("VALIDATION_ERROR", "ids must be integers", "ids[]"))
			return
		}
		p, ok := s.st.players[id]
		if !ok {
			continue
		}
		u := user{ID: uint64(p.PlatformID), Name: p.Name}
		if p.AvatarURL != "" {
			u.Avatar = &image{URL: p.AvatarURL}
		}
		if p.BorderURL != "" {
			u.Border = &image{URL: p.BorderURL}
		}
		out = append(out, u)
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": out})
}

// ========== Helpers ==========

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, errObj("VALIDATION_ERROR", "invalid JSON", ""))
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errObj(code, msg, field string) map[string]any {
	e := map[string]any{
		"code":    code,
		"message": msg,
	}
	if field != "" {
		e["field"] = field
	}
	return map[string]any{"error": e}
}

func (s *Server) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Printf("%s %s %d %dms", r.Method, r.URL.Path, ww.Status(), time.Since(start).Milliseconds())
	})
}
