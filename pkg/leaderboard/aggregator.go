package leaderboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MJE43/funtico-sdk-go/pkg/rooms"
)

// ErrRoomUnavailable is returned when the room or its ranking cannot be
// fetched.
var ErrRoomUnavailable = errors.New("leaderboard: room unavailable")

// RoomSource fetches room data. *rooms.Client implements it.
type RoomSource interface {
	Room(ctx context.Context, id string) (*rooms.Room, error)
	Leaders(ctx context.Context, eventID, sessionID, matchID string) (*rooms.Leaders, error)
	SessionHistory(ctx context.Context, sessionID string) (*rooms.SessionHistory, error)
}

// ViewerSource identifies the calling player. *account.Service implements it.
type ViewerSource interface {
	PlatformUserID(ctx context.Context) (int64, error)
	Vouchers(ctx context.Context, fresh bool) ([]rooms.Voucher, error)
}

// Request selects a room session's leaderboard.
type Request struct {
	EventID   string
	SessionID string
	MatchID   string
	// PredictPending shows predicted prizes while the room is unsettled.
	PredictPending bool
}

// Aggregator fetches everything a leaderboard needs and aggregates it.
type Aggregator struct {
	rooms      RoomSource
	identities IdentityResolver
	viewer     ViewerSource
	printer    *message.Printer
	log        *log.Logger
}

// NewAggregator creates an aggregator. identities and viewer may be nil, for
// an anonymous view without names.
func NewAggregator(src RoomSource, identities IdentityResolver, viewer ViewerSource, logger *log.Logger) *Aggregator {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Aggregator{
		rooms:      src,
		identities: identities,
		viewer:     viewer,
		printer:    message.NewPrinter(language.English),
		log:        logger,
	}
}

// WithLanguage returns a copy of a that formats amounts for tag.
func (a *Aggregator) WithLanguage(tag language.Tag) *Aggregator {
	b := *a
	b.printer = message.NewPrinter(tag)
	return &b
}

// Leaderboard fetches the room, its ranking and the session history in
// parallel, resolves identities, and aggregates the view. Only a missing room
// or ranking fails the call; history, identity and voucher lookups degrade
// to defaults and are logged.
func (a *Aggregator) Leaderboard(ctx context.Context, req Request) (*View, error) {
	var (
		room    *rooms.Room
		leaders *rooms.Leaders
		history *rooms.SessionHistory
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r, err := a.rooms.Room(gctx, req.EventID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
		}
		room = r
		return nil
	})
	g.Go(func() error {
		l, err := a.rooms.Leaders(gctx, req.EventID, req.SessionID, req.MatchID)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
		}
		leaders = l
		return nil
	})
	g.Go(func() error {
		if req.SessionID == "" {
			return nil
		}
		h, err := a.rooms.SessionHistory(gctx, req.SessionID)
		if err != nil {
			a.log.Printf("session history %s: %v", req.SessionID, err)
			return nil
		}
		history = h
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	in := Input{
		Room:    room,
		Leaders: leaders,
		Pending: req.PredictPending,
		Printer: a.printer,
	}
	in.Identities = a.resolve(ctx, leaders)
	if a.viewer != nil {
		if id, err := a.viewer.PlatformUserID(ctx); err == nil && id > 0 {
			in.ViewerID = uint64(id)
		} else if err != nil {
			a.log.Printf("viewer id: %v", err)
		}
	}
	if history != nil && bool(history.GameSession.VoucherUsed) && a.viewer != nil {
		vs, err := a.viewer.Vouchers(ctx, false)
		if err != nil {
			a.log.Printf("vouchers: %v", err)
		} else {
			in.VoucherUsed, in.Vouchers = true, vs
		}
	}
	return Aggregate(in)
}

func (a *Aggregator) resolve(ctx context.Context, leaders *rooms.Leaders) map[uint64]Identity {
	if a.identities == nil || len(leaders.Leaders) == 0 {
		return nil
	}
	ids := make([]uint64, len(leaders.Leaders))
	for i, l := range leaders.Leaders {
		ids[i] = l.ID
	}
	m, err := a.identities.ResolveMany(ctx, ids)
	if err != nil {
		a.log.Printf("resolve identities: %v", err)
		return nil
	}
	return m
}

// Distribution fetches a room and builds its prize-pool view.
func (a *Aggregator) Distribution(ctx context.Context, roomID string) (*DistributionView, error) {
	room, err := a.rooms.Room(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRoomUnavailable, err)
	}
	return Distribution(room, a.printer)
}
