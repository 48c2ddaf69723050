// ABOUTME: Recent connections repository
// ABOUTME: Most recent first, de-duplicated, capped, and cleared when disabled

package repository

import (
	"context"
	"log/slog"
	"sync"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/relay"
)

// DefaultRecentConnectionsLimit is the cap used when none is configured.
const DefaultRecentConnectionsLimit = 50

// RecentConnections is the stored history of selected locations.
type RecentConnections struct {
	IsEnabled      bool                       `json:"isEnabled"`
	EntryLocations []relay.UserSelectedRelays `json:"entryLocations"`
	ExitLocations  []relay.UserSelectedRelays `json:"exitLocations"`
}

func defaultRecentConnections() RecentConnections {
	return RecentConnections{
		IsEnabled:      true,
		EntryLocations: []relay.UserSelectedRelays{},
		ExitLocations:  []relay.UserSelectedRelays{},
	}
}

// RecentConnectionsRepository persists recently used locations.
type RecentConnectionsRepository struct {
	mu          sync.Mutex
	slot        slot[RecentConnections]
	limit       int
	broadcaster *Broadcaster[RecentConnections]
	logger      *slog.Logger
}

// NewRecentConnectionsRepository creates a repository keeping at most limit
// entries per list. A limit below 1 uses DefaultRecentConnectionsLimit.
func NewRecentConnectionsRepository(store keystore.Store, limit int) *RecentConnectionsRepository {
	if limit < 1 {
		limit = DefaultRecentConnectionsLimit
	}
	logger := slog.Default().With("component", "recent_connections")
	return &RecentConnectionsRepository{
		slot:        slot[RecentConnections]{store: store, key: keystore.KeyRecentConnections},
		limit:       limit,
		broadcaster: NewBroadcaster[RecentConnections](logger),
		logger:      logger,
	}
}

// FetchAll returns the stored history. Recording is enabled on a fresh install.
func (r *RecentConnectionsRepository) FetchAll(ctx context.Context) (RecentConnections, error) {
	recents, ok, err := r.slot.load(ctx)
	if err != nil {
		return RecentConnections{}, err
	}
	if !ok {
		return defaultRecentConnections(), nil
	}
	if recents.EntryLocations == nil {
		recents.EntryLocations = []relay.UserSelectedRelays{}
	}
	if recents.ExitLocations == nil {
		recents.ExitLocations = []relay.UserSelectedRelays{}
	}
	return recents, nil
}

// SetEnabled turns recording on or off. Turning it off clears the history.
func (r *RecentConnectionsRepository) SetEnabled(ctx context.Context, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recents, err := r.FetchAll(ctx)
	if err != nil {
		return err
	}
	recents.IsEnabled = enabled
	if !enabled {
		recents.EntryLocations = []relay.UserSelectedRelays{}
		recents.ExitLocations = []relay.UserSelectedRelays{}
	}
	return r.store(ctx, recents)
}

// Add records a connection to exit, and to entry when multihop supplied one.
// Nothing is recorded while recording is disabled.
func (r *RecentConnectionsRepository) Add(ctx context.Context, exit relay.UserSelectedRelays, entry *relay.UserSelectedRelays) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recents, err := r.FetchAll(ctx)
	if err != nil {
		return err
	}
	if !recents.IsEnabled {
		return nil
	}

	recents.ExitLocations = pushRecent(recents.ExitLocations, exit, r.limit)
	if entry != nil {
		recents.EntryLocations = pushRecent(recents.EntryLocations, *entry, r.limit)
	}
	return r.store(ctx, recents)
}

// DeleteAll clears the history without changing whether recording is enabled.
func (r *RecentConnectionsRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	recents, err := r.FetchAll(ctx)
	if err != nil {
		return err
	}
	recents.EntryLocations = []relay.UserSelectedRelays{}
	recents.ExitLocations = []relay.UserSelectedRelays{}
	return r.store(ctx, recents)
}

func (r *RecentConnectionsRepository) store(ctx context.Context, recents RecentConnections) error {
	if err := r.slot.save(ctx, recents); err != nil {
		return err
	}
	r.broadcaster.Publish(recents)
	return nil
}

// Subscribe streams the history after every stored change.
func (r *RecentConnectionsRepository) Subscribe(ctx context.Context) (<-chan RecentConnections, string) {
	return r.broadcaster.Subscribe(ctx)
}

// Close ends all subscriptions.
func (r *RecentConnectionsRepository) Close() {
	r.broadcaster.Close()
}

// pushRecent moves sel to the front of list, dropping any equal entry and
// anything past limit. The result never aliases list.
func pushRecent(list []relay.UserSelectedRelays, sel relay.UserSelectedRelays, limit int) []relay.UserSelectedRelays {
	out := make([]relay.UserSelectedRelays, 0, min(len(list)+1, limit))
	out = append(out, sel)
	for _, existing := range list {
		if len(out) == limit {
			break
		}
		if existing.Equal(sel) {
			continue
		}
		out = append(out, existing)
	}
	return out
}
