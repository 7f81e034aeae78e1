package sandbox_test

import (
	"context"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MJE43/funtico-sdk-go/internal/sandbox"
	"github.com/MJE43/funtico-sdk-go/pkg/account"
	"github.com/MJE43/funtico-sdk-go/pkg/auth"
	"github.com/MJE43/funtico-sdk-go/pkg/envelope"
	"github.com/MJE43/funtico-sdk-go/pkg/leaderboard"
	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
	"github.com/MJE43/funtico-sdk-go/pkg/session"
	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

const (
	publicKey  = "demo-public"
	privateKey = "demo-secret"
)

func startSandbox(t *testing.T, players int) (*sandbox.Server, *httptest.Server) {
	t.Helper()
	sb := sandbox.New(sandbox.Config{PublicKey: publicKey, PrivateKey: privateKey, SigningKey: []byte("test-signing-key")})
	sandbox.SeedDemo(sb, players)
	srv := httptest.NewTLSServer(sb.Routes())
	t.Cleanup(srv.Close)
	return sb, srv
}

type player struct {
	http     *transport.Client
	auth     *auth.Authenticator
	account  *account.Service
	rooms    *rooms.Client
	sessions *session.ClientManager
	board    *leaderboard.Aggregator
}

func login(t *testing.T, srv *httptest.Server, n int) *player {
	t.Helper()
	tc := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		PublicGameKey:  publicKey,
		SessionID:      fmt.Sprintf("client-%d", n),
		HTTPClient:     srv.Client(),
		MaxRetries:     1,
		BaseRetryDelay: time.Millisecond,
	})
	a := auth.New(tc, nil)
	tc.SetTokens(a)
	if _, err := a.Login(context.Background(), fmt.Sprintf("demo-token-%d", n)); err != nil {
		t.Fatalf("login player %d: %v", n, err)
	}
	codec := envelope.NewCodec(privateKey)
	acct := account.NewService(tc)
	rc := rooms.NewClient(tc, codec, nil)
	return &player{
		http:    tc,
		auth:    a,
		account: acct,
		rooms:   rc,
		sessions: session.NewClientManager(session.ClientConfig{
			Backend: session.NewHTTPBackend(tc),
			Codec:   codec,
			Users:   acct,
		}),
		board: leaderboard.NewAggregator(rc, leaderboard.NewPlatformResolver(tc, srv.URL+"/api/v1/web/users", a), acct, nil),
	}
}

func (p *player) play(t *testing.T, score int64, useVoucher bool, events ...string) rooms.Entry {
	t.Helper()
	ctx := context.Background()
	entry, err := p.rooms.Join(ctx, rooms.JoinRequest{RoomID: sandbox.DemoRoomID, UseVoucher: useVoucher})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	user, err := p.account.UserData(ctx, false)
	if err != nil {
		t.Fatal(err)
	}
	err = p.rooms.FinishClient(ctx, entry.EventID, entry.SessionOrMatchID, rooms.ScoreSubmission{
		Score: &score, UserID: user.UserID, GameEvents: events,
	})
	if err != nil {
		t.Fatalf("finish: %v", err)
	}
	return entry
}

func TestSessionCheckpointAndReconnect(t *testing.T) {
	ctx := context.Background()
	_, srv := startSandbox(t, 2)
	p := login(t, srv, 1)

	if got, err := p.sessions.HasUnfinishedSession(ctx); err != nil || len(got) != 0 {
		t.Fatalf("fresh player: %v %v", got, err)
	}

	id, err := p.sessions.CreateSession(ctx, "level-1", "runner", sandbox.DemoRoomID, "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if id.SaveSessionID == "" || id.SessionID == "" {
		t.Fatalf("backend did not assign ids: %+v", id)
	}
	p.sessions.RecordEvent("jump")
	p.sessions.RecordEvent("coin")
	if err := p.sessions.Checkpoint(ctx, "level-2"); err != nil {
		t.Fatalf("Checkpoint: %v", err)
	}

	cands, err := p.sessions.HasUnfinishedSession(ctx)
	if err != nil || len(cands) != 1 || cands[0].SaveSessionID != id.SaveSessionID {
		t.Fatalf("unfinished = %+v, %v", cands, err)
	}

	restarted := login(t, srv, 1)
	data, err := restarted.sessions.Reconnect(ctx, id.SaveSessionID)
	if err != nil {
		t.Fatalf("Reconnect: %v", err)
	}
	if data != "level-2" {
		t.Errorf("data = %q", data)
	}
	if ev := restarted.sessions.Events(); len(ev) != 2 || ev[0] != "jump" || ev[1] != "coin" {
		t.Errorf("events = %v", ev)
	}

	other := login(t, srv, 2)
	if _, err := other.sessions.Reconnect(ctx, id.SaveSessionID); !errors.Is(err, session.ErrSessionNotFound) {
		t.Errorf("other player reconnect: %v", err)
	}
}

func TestSessionRejectsBadTag(t *testing.T) {
	_, srv := startSandbox(t, 1)
	p := login(t, srv, 1)

	env := envelope.Envelope{EventID: sandbox.DemoRoomID, Data: "AAAA", Hash: "00", GameType: "runner"}
	_, err := p.http.Post(context.Background(), "/Session/create-session", env)
	var te *transport.Error
	if !errors.As(err, &te) || te.StatusCode != 400 {
		t.Fatalf("expected 400, got %v", err)
	}
}

func TestFinishingRoomClosesSavedSession(t *testing.T) {
	ctx := context.Background()
	sb, srv := startSandbox(t, 1)
	p := login(t, srv, 1)

	entry, err := p.rooms.Join(ctx, rooms.JoinRequest{RoomID: sandbox.DemoRoomID})
	if err != nil {
		t.Fatal(err)
	}
	id, err := p.sessions.CreateSession(ctx, "start", "runner", sandbox.DemoRoomID, "")
	if err != nil {
		t.Fatal(err)
	}
	if id.SessionID != entry.SessionOrMatchID {
		t.Errorf("saved session bound to %q, want %q", id.SessionID, entry.SessionOrMatchID)
	}
	p.sessions.RecordEvent("finish-line")

	score := int64(420)
	err = p.rooms.FinishClient(ctx, entry.EventID, entry.SessionOrMatchID, rooms.ScoreSubmission{
		Score: &score, UserID: 1, GameEvents: p.sessions.Events(),
	})
	if err != nil {
		t.Fatalf("FinishClient: %v", err)
	}
	if ev, ok := sb.Events(entry.SessionOrMatchID); !ok || len(ev) != 1 || ev[0] != "finish-line" {
		t.Errorf("submitted events = %v %v", ev, ok)
	}
	if cands, err := p.sessions.HasUnfinishedSession(ctx); err != nil || len(cands) != 0 {
		t.Errorf("after finish: %+v %v", cands, err)
	}

	err = p.rooms.FinishClient(ctx, entry.EventID, entry.SessionOrMatchID, rooms.ScoreSubmission{Score: &score, UserID: 1})
	var te *transport.Error
	if !errors.As(err, &te) || te.StatusCode != 409 {
		t.Errorf("second finish: %v", err)
	}
}

func TestJoinChargesAndResumes(t *testing.T) {
	ctx := context.Background()
	_, srv := startSandbox(t, 2)
	p := login(t, srv, 1)

	first, err := p.rooms.Join(ctx, rooms.JoinRequest{RoomID: sandbox.DemoRoomID})
	if err != nil || first.Resumed {
		t.Fatalf("join: %+v %v", first, err)
	}
	again, err := p.rooms.Join(ctx, rooms.JoinRequest{RoomID: sandbox.DemoRoomID})
	if err != nil || !again.Resumed || again.SessionOrMatchID != first.SessionOrMatchID {
		t.Fatalf("rejoin: %+v %v", again, err)
	}
	bal, err := p.account.Balance(ctx, true)
	if err != nil || bal.Coins != 900 {
		t.Errorf("balance = %+v %v", bal, err)
	}

	q := login(t, srv, 2)
	if _, err := q.rooms.Join(ctx, rooms.JoinRequest{RoomID: sandbox.DemoRoomID, UseVoucher: true}); err != nil {
		t.Fatal(err)
	}
	if bal, _ := q.account.Balance(ctx, true); bal.Coins != 1000 {
		t.Errorf("voucher entry charged coins: %v", bal.Coins)
	}
	vs, err := q.account.Vouchers(ctx, true)
	if err != nil {
		t.Fatal(err)
	}
	v, ok := rooms.VoucherForTier(vs, rooms.TierChallenger)
	if !ok || v.Count != 0 || v.ItemName != "Challenger Pass" {
		t.Errorf("challenger voucher = %+v %v", v, ok)
	}
	if len(vs) != 3 {
		t.Errorf("catalogue merge = %d vouchers", len(vs))
	}
}

func TestLeaderboardPendingThenSettled(t *testing.T) {
	ctx := context.Background()
	sb, srv := startSandbox(t, 3)
	players := []*player{login(t, srv, 1), login(t, srv, 2), login(t, srv, 3)}
	scores := []int64{900, 500, 700}
	var entries []rooms.Entry
	for i, p := range players {
		entries = append(entries, p.play(t, scores[i], false, "start", "end"))
	}

	req := leaderboard.Request{EventID: sandbox.DemoRoomID, SessionID: entries[0].SessionOrMatchID, PredictPending: true}
	view, err := players[0].board.Leaderboard(ctx, req)
	if err != nil {
		t.Fatalf("Leaderboard: %v", err)
	}
	if !view.Pending || len(view.Entries) != 8 {
		t.Fatalf("pending=%v entries=%d", view.Pending, len(view.Entries))
	}
	wantIDs := []uint64{1001, 1003, 1002}
	wantEarn := []int64{400, 200, 120}
	for i := range wantIDs {
		e := view.Entries[i]
		if e.ID != wantIDs[i] || e.Earnings != wantEarn[i] {
			t.Errorf("entry %d = id %d earnings %d", i, e.ID, e.Earnings)
		}
	}
	if view.Entries[0].Identity.Name != "Player 1" || !view.Entries[0].IsMe {
		t.Errorf("viewer entry = %+v", view.Entries[0])
	}
	if !view.Entries[3].IsEmpty || view.Entries[3].Identity.Name != leaderboard.LabelPlayerNeeded {
		t.Errorf("placeholder = %+v", view.Entries[3])
	}
	if view.Viewer == nil || view.Viewer.Earnings != 400 {
		t.Errorf("viewer = %+v", view.Viewer)
	}
	third := view.Entries[2]
	if len(third.Prizes) != 2 {
		t.Errorf("third place prizes = %+v", third.Prizes)
	}

	if err := sb.Settle(sandbox.DemoRoomID, rooms.StateDistributed); err != nil {
		t.Fatal(err)
	}
	settled, err := players[1].board.Leaderboard(ctx, leaderboard.Request{
		EventID: sandbox.DemoRoomID, SessionID: entries[1].SessionOrMatchID, PredictPending: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	if settled.Pending || settled.State != rooms.StateDistributed {
		t.Errorf("settled view pending=%v state=%v", settled.Pending, settled.State)
	}
	if settled.Viewer == nil || settled.Viewer.Earnings != 120 {
		t.Errorf("player 2 viewer = %+v", settled.Viewer)
	}

	dist, err := players[0].board.Distribution(ctx, sandbox.DemoRoomID)
	if err != nil {
		t.Fatal(err)
	}
	if len(dist.Places) != 3 || dist.Places[0].Payout != 400 || dist.TotalPlayers != 8 {
		t.Errorf("distribution = %+v", dist)
	}
}

func TestLeaderboardUnknownRoom(t *testing.T) {
	_, srv := startSandbox(t, 1)
	p := login(t, srv, 1)
	_, err := p.board.Leaderboard(context.Background(), leaderboard.Request{EventID: "missing"})
	if !errors.Is(err, leaderboard.ErrRoomUnavailable) {
		t.Errorf("err = %v", err)
	}
}

func TestServerMatchLifecycle(t *testing.T) {
	ctx := context.Background()
	_, srv := startSandbox(t, 2)

	tc := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		PublicGameKey:  publicKey,
		PrivateGameKey: privateKey,
		SessionID:      "server-1",
		Server:         true,
		HTTPClient:     srv.Client(),
		MaxRetries:     1,
		BaseRetryDelay: time.Millisecond,
	})
	mgr := session.NewServerManager(session.NewHTTPBackend(tc), nil)
	rc := rooms.NewClient(tc, nil, nil)

	matchID, err := mgr.OpenMatchSession(ctx, "wss://game.example.test", "local-match", []session.Participant{
		{JoinKey: "a", FunticoUserID: 1001, SDKUserID: 1},
		{JoinKey: "b", FunticoUserID: 1002, SDKUserID: 2},
	})
	if err != nil {
		t.Fatalf("OpenMatchSession: %v", err)
	}
	if err := mgr.RecordEvent(1001, "kill"); err != nil {
		t.Fatal(err)
	}
	if err := mgr.LeaveParticipant(ctx, 1002); err != nil {
		t.Fatalf("LeaveParticipant: %v", err)
	}

	events, _ := mgr.Events(1001)
	if err := rc.FinishServer(ctx, sandbox.DemoRoomID, matchID, rooms.ScoreSubmission{
		Score: ptr(int64(77)), UserID: 1, GameEvents: events,
	}); err != nil {
		t.Fatalf("FinishServer: %v", err)
	}
	if err := rc.FinishAllServer(ctx, sandbox.DemoRoomID, matchID, []rooms.FinishedUser{
		{Score: 12, UserID: 2, FunticoUserID: 1002},
	}); err != nil {
		t.Fatalf("FinishAllServer: %v", err)
	}
	if err := mgr.CloseMatchSession(ctx); err != nil {
		t.Fatalf("CloseMatchSession: %v", err)
	}

	leaders, err := rc.Leaders(ctx, sandbox.DemoRoomID, matchID, matchID)
	if err != nil {
		t.Fatal(err)
	}
	if len(leaders.Leaders) != 2 || leaders.Leaders[0].ID != 1001 || leaders.Leaders[0].Score != 77 {
		t.Errorf("leaders = %+v", leaders.Leaders)
	}
}

func TestServerKeyRequired(t *testing.T) {
	_, srv := startSandbox(t, 1)
	tc := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		PublicGameKey:  publicKey,
		PrivateGameKey: "wrong",
		Server:         true,
		HTTPClient:     srv.Client(),
		MaxRetries:     1,
		BaseRetryDelay: time.Millisecond,
	})
	_, err := session.NewHTTPBackend(tc).CreateMatchSession(context.Background(), session.MatchRequest{ServerURL: "x"})
	var te *transport.Error
	if !errors.As(err, &te) || te.StatusCode != 401 {
		t.Errorf("expected 401, got %v", err)
	}
}

func TestUnauthenticatedPlayer(t *testing.T) {
	_, srv := startSandbox(t, 1)
	tc := transport.NewClient(transport.Config{
		BaseURL:        srv.URL,
		PublicGameKey:  publicKey,
		HTTPClient:     srv.Client(),
		MaxRetries:     1,
		BaseRetryDelay: time.Millisecond,
	})
	_, err := account.NewService(tc).UserData(context.Background(), true)
	var te *transport.Error
	if !errors.As(err, &te) || te.StatusCode != 401 {
		t.Errorf("expected 401, got %v", err)
	}

	a := auth.New(tc, nil)
	if _, err := a.Login(context.Background(), "not-a-player"); err == nil {
		t.Error("unknown platform token should not log in")
	}
}

func ptr[T any](v T) *T { return &v }
