package sandbox

import (
	"net/http"

	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

func (s *Server) currentPlayer(w http.ResponseWriter, r *http.Request) (*Player, bool) {
	p, ok := s.st.players[callerFrom(r).platformID]
	if !ok {
		writeJSON(w, http.StatusNotFound, errObj("NOT_FOUND", "player not found", ""))
	}
	return p, ok
}

// GET /User/get-full-data
func (s *Server) handleUserData(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	p, ok := s.currentPlayer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        p.Name,
		"coins":       p.Coins,
		"diamonds":    p.Diamonds,
		"level":       p.Level,
		"platformId":  p.PlatformID,
		"userId":      p.UserID,
		"kycVerified": p.KYCVerified,
	})
}

// GET /User/get-balance
func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	p, ok := s.currentPlayer(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"coins":       p.Coins,
		"diamonds":    p.Diamonds,
		"kycVerified": p.KYCVerified,
	})
}

// GET /User/vouchers
func (s *Server) handleVouchers(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	p, ok := s.currentPlayer(w, r)
	if !ok {
		return
	}
	held := p.Vouchers
	if held == nil {
		held = []rooms.Voucher{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": held})
}

// GET /User/vouchers-data
func (s *Server) handleVoucherStatics(w http.ResponseWriter, r *http.Request) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	statics := s.st.statics
	if statics == nil {
		statics = []VoucherStatic{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": statics})
}
