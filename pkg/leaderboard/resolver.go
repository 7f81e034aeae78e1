package leaderboard

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/MJE43/funtico-sdk-go/pkg/transport"
)

// IdentityResolver looks up display identities in one batch.
type IdentityResolver interface {
	ResolveMany(ctx context.Context, ids []uint64) (map[uint64]Identity, error)
}

// PlatformTokens supplies the platform access token.
type PlatformTokens interface {
	PlatformToken() string
}

// PlatformResolver resolves identities through the platform's users
// endpoint, authenticated with the platform token rather than the SDK token.
type PlatformResolver struct {
	http   *transport.Client
	url    string
	tokens PlatformTokens
}

// NewPlatformResolver creates a resolver for the users endpoint at usersURL.
func NewPlatformResolver(t *transport.Client, usersURL string, tokens PlatformTokens) *PlatformResolver {
	return &PlatformResolver{http: t, url: usersURL, tokens: tokens}
}

type platformUser struct {
	ID     uint64 `json:"id"`
	Name   string `json:"name"`
	Avatar *struct {
		URL string `json:"url"`
	} `json:"avatar"`
	Border *struct {
		URL string `json:"url"`
	} `json:"border"`
}

func (r *PlatformResolver) ResolveMany(ctx context.Context, ids []uint64) (map[uint64]Identity, error) {
	out := make(map[uint64]Identity, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = "ids[]=" + strconv.FormatUint(id, 10)
	}
	raw, err := r.http.GetAs(ctx, r.url+"?"+strings.Join(parts, "&"), r.tokens.PlatformToken())
	if err != nil {
		return nil, fmt.Errorf("leaderboard: resolve identities: %w", err)
	}
	var resp struct {
		Data []platformUser `json:"data"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("leaderboard: resolve identities: decode: %w", err)
	}
	for _, u := range resp.Data {
		id := Identity{Name: u.Name}
		if u.Avatar != nil {
			id.AvatarURL = u.Avatar.URL
		}
		if u.Border != nil {
			id.BorderURL = u.Border.URL
		}
		out[u.ID] = id
	}
	return out, nil
}
