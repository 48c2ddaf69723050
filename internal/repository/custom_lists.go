// ABOUTME: Custom relay list repository
// ABOUTME: Named location lists with case-insensitive unique names of at most 30 characters

package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/tunnelvault/internal/keystore"
	"github.com/2389/tunnelvault/internal/relay"
)

// MaxCustomListNameLength is the longest allowed list name, in characters.
const MaxCustomListNameLength = 30

// CustomList is a user defined set of relay locations.
type CustomList struct {
	ID        uuid.UUID             `json:"id"`
	Name      string                `json:"name"`
	Locations []relay.RelayLocation `json:"locations"`
}

// CustomListRepository persists custom relay lists.
type CustomListRepository struct {
	mu          sync.Mutex
	slot        slot[[]CustomList]
	broadcaster *Broadcaster[[]CustomList]
	logger      *slog.Logger
}

// NewCustomListRepository creates a repository on store.
func NewCustomListRepository(store keystore.Store) *CustomListRepository {
	logger := slog.Default().With("component", "custom_lists")
	return &CustomListRepository{
		slot:        slot[[]CustomList]{store: store, key: keystore.KeyCustomRelayLists},
		broadcaster: NewBroadcaster[[]CustomList](logger),
		logger:      logger,
	}
}

// FetchAll returns every list in insertion order.
func (r *CustomListRepository) FetchAll(ctx context.Context) ([]CustomList, error) {
	lists, _, err := r.slot.load(ctx)
	if err != nil {
		return nil, err
	}
	if lists == nil {
		lists = []CustomList{}
	}
	return lists, nil
}

// Fetch returns the list with id.
func (r *CustomListRepository) Fetch(ctx context.Context, id uuid.UUID) (CustomList, error) {
	lists, err := r.FetchAll(ctx)
	if err != nil {
		return CustomList{}, err
	}
	for _, l := range lists {
		if l.ID == id {
			return l, nil
		}
	}
	return CustomList{}, fmt.Errorf("custom list %s: %w", id, ErrNotFound)
}

// FetchByName returns the list whose name matches case-insensitively.
func (r *CustomListRepository) FetchByName(ctx context.Context, name string) (CustomList, error) {
	lists, err := r.FetchAll(ctx)
	if err != nil {
		return CustomList{}, err
	}
	name = strings.TrimSpace(name)
	for _, l := range lists {
		if strings.EqualFold(l.Name, name) {
			return l, nil
		}
	}
	return CustomList{}, fmt.Errorf("custom list %q: %w", name, ErrNotFound)
}

// Create adds an empty list named name.
func (r *CustomListRepository) Create(ctx context.Context, name string, locations ...relay.RelayLocation) (CustomList, error) {
	list := CustomList{ID: uuid.New(), Name: name, Locations: locations}
	if err := r.Save(ctx, list); err != nil {
		return CustomList{}, err
	}
	return r.Fetch(ctx, list.ID)
}

// Save inserts or replaces list by ID.
func (r *CustomListRepository) Save(ctx context.Context, list CustomList) error {
	name, err := checkName(list.Name, MaxCustomListNameLength)
	if err != nil {
		return err
	}
	list.Name = name
	for _, loc := range list.Locations {
		if err := loc.Validate(); err != nil {
			return err
		}
	}
	if list.Locations == nil {
		list.Locations = []relay.RelayLocation{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	lists, _, err := r.slot.load(ctx)
	if err != nil {
		return err
	}

	index := -1
	for i, other := range lists {
		if other.ID == list.ID {
			index = i
			continue
		}
		if strings.EqualFold(other.Name, name) {
			return fmt.Errorf("custom list %q: %w", name, ErrDuplicateName)
		}
	}

	if index < 0 {
		lists = append(lists, list)
	} else {
		lists[index] = list
	}
	if err := r.slot.save(ctx, lists); err != nil {
		return err
	}
	r.broadcaster.Publish(cloneLists(lists))

	r.logger.Info("saved custom list", "id", list.ID, "locations", len(list.Locations))
	return nil
}

// Delete removes the list with id. Deleting an absent list does nothing.
func (r *CustomListRepository) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	lists, _, err := r.slot.load(ctx)
	if err != nil {
		return err
	}
	for i, l := range lists {
		if l.ID != id {
			continue
		}
		lists = append(lists[:i], lists[i+1:]...)
		if err := r.slot.save(ctx, lists); err != nil {
			return err
		}
		r.broadcaster.Publish(cloneLists(lists))
		return nil
	}
	return nil
}

// Subscribe streams the lists after every stored change.
func (r *CustomListRepository) Subscribe(ctx context.Context) (<-chan []CustomList, string) {
	return r.broadcaster.Subscribe(ctx)
}

// Close ends all subscriptions.
func (r *CustomListRepository) Close() {
	r.broadcaster.Close()
}

func cloneLists(lists []CustomList) []CustomList {
	out := make([]CustomList, len(lists))
	copy(out, lists)
	return out
}
