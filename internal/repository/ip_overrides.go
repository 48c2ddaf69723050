// ABOUTME: Relay IP override repository
// ABOUTME: Overrides merge by hostname; imports accept the relay_overrides JSON document

package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/netip"
	"sync"

	"github.com/2389/tunnelvault/internal/keystore"
)

// IPOverride replaces the addresses used to reach a relay.
type IPOverride struct {
	Hostname    string      `json:"hostname"`
	IPv4Address *netip.Addr `json:"ipv4_addr_in,omitempty"`
	IPv6Address *netip.Addr `json:"ipv6_addr_in,omitempty"`
}

// Validate checks the hostname, that at least one address is set, and that
// each address belongs to its family.
func (o IPOverride) Validate() error {
	if o.Hostname == "" {
		return fmt.Errorf("%w: missing hostname", ErrInvalidOverride)
	}
	if o.IPv4Address == nil && o.IPv6Address == nil {
		return fmt.Errorf("%w: %s has no address", ErrInvalidOverride, o.Hostname)
	}
	if o.IPv4Address != nil && !o.IPv4Address.Is4() {
		return fmt.Errorf("%w: %s ipv4_addr_in %s is not IPv4", ErrInvalidOverride, o.Hostname, o.IPv4Address)
	}
	if o.IPv6Address != nil && (!o.IPv6Address.Is6() || o.IPv6Address.Is4In6()) {
		return fmt.Errorf("%w: %s ipv6_addr_in %s is not IPv6", ErrInvalidOverride, o.Hostname, o.IPv6Address)
	}
	return nil
}

// merge overlays the addresses set in update onto o.
func (o IPOverride) merge(update IPOverride) IPOverride {
	if update.IPv4Address != nil {
		o.IPv4Address = update.IPv4Address
	}
	if update.IPv6Address != nil {
		o.IPv6Address = update.IPv6Address
	}
	return o
}

// IPOverrideRepository persists relay IP overrides.
type IPOverrideRepository struct {
	mu          sync.Mutex
	slot        slot[[]IPOverride]
	broadcaster *Broadcaster[[]IPOverride]
	logger      *slog.Logger
}

// NewIPOverrideRepository creates a repository on store.
func NewIPOverrideRepository(store keystore.Store) *IPOverrideRepository {
	logger := slog.Default().With("component", "ip_overrides")
	return &IPOverrideRepository{
		slot:        slot[[]IPOverride]{store: store, key: keystore.KeyIPOverrides},
		broadcaster: NewBroadcaster[[]IPOverride](logger),
		logger:      logger,
	}
}

// FetchAll returns every override.
func (r *IPOverrideRepository) FetchAll(ctx context.Context) ([]IPOverride, error) {
	overrides, _, err := r.slot.load(ctx)
	if err != nil {
		return nil, err
	}
	if overrides == nil {
		overrides = []IPOverride{}
	}
	return overrides, nil
}

// Fetch returns the override for hostname.
func (r *IPOverrideRepository) Fetch(ctx context.Context, hostname string) (IPOverride, error) {
	overrides, err := r.FetchAll(ctx)
	if err != nil {
		return IPOverride{}, err
	}
	for _, o := range overrides {
		if o.Hostname == hostname {
			return o, nil
		}
	}
	return IPOverride{}, fmt.Errorf("override for %s: %w", hostname, ErrNotFound)
}

// Add merges overrides into the stored set. Addresses of an existing
// hostname are replaced only where the new override sets them. Either all
// overrides are stored or none are.
func (r *IPOverrideRepository) Add(ctx context.Context, overrides ...IPOverride) error {
	for _, o := range overrides {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	if len(overrides) == 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	stored, _, err := r.slot.load(ctx)
	if err != nil {
		return err
	}

	for _, update := range overrides {
		found := false
		for i := range stored {
			if stored[i].Hostname == update.Hostname {
				stored[i] = stored[i].merge(update)
				found = true
				break
			}
		}
		if !found {
			stored = append(stored, update)
		}
	}

	if err := r.slot.save(ctx, stored); err != nil {
		return err
	}
	r.broadcaster.Publish(cloneOverrides(stored))

	r.logger.Info("stored relay overrides", "added", len(overrides), "total", len(stored))
	return nil
}

type overridesDocument struct {
	RelayOverrides []IPOverride `json:"relay_overrides"`
}

// ParseOverrides decodes a relay_overrides document.
func ParseOverrides(data []byte) ([]IPOverride, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc overridesDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidOverride, err)
	}
	if doc.RelayOverrides == nil {
		return nil, fmt.Errorf("%w: missing relay_overrides", ErrInvalidOverride)
	}
	for _, o := range doc.RelayOverrides {
		if err := o.Validate(); err != nil {
			return nil, err
		}
	}
	return doc.RelayOverrides, nil
}

// Import parses a relay_overrides document and merges it into the stored set.
// It returns the number of overrides imported.
func (r *IPOverrideRepository) Import(ctx context.Context, data []byte) (int, error) {
	overrides, err := ParseOverrides(data)
	if err != nil {
		return 0, err
	}
	if err := r.Add(ctx, overrides...); err != nil {
		return 0, err
	}
	return len(overrides), nil
}

// DeleteAll removes every override.
func (r *IPOverrideRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.slot.clear(ctx); err != nil {
		return err
	}
	r.broadcaster.Publish([]IPOverride{})

	r.logger.Info("deleted all relay overrides")
	return nil
}

// Subscribe streams the overrides after every stored change.
func (r *IPOverrideRepository) Subscribe(ctx context.Context) (<-chan []IPOverride, string) {
	return r.broadcaster.Subscribe(ctx)
}

// Close ends all subscriptions.
func (r *IPOverrideRepository) Close() {
	r.broadcaster.Close()
}

func cloneOverrides(overrides []IPOverride) []IPOverride {
	out := make([]IPOverride, len(overrides))
	copy(out, overrides)
	return out
}
