// ABOUTME: API access method repository with permanent built-in methods
// ABOUTME: Stores the method list and the last reachable method in one document

package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/netip"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/2389/tunnelvault/internal/keystore"
)

// Built-in access method IDs. These never change.
var (
	DirectMethodID       = uuid.MustParse("C9DB7457-2A55-42C3-A926-C07F82131994")
	BridgesMethodID      = uuid.MustParse("8586E75A-CA7B-4432-B70D-EE65F3F95084")
	EncryptedDNSMethodID = uuid.MustParse("831CB1F8-1829-42DD-B9DC-82902F298EC0")
)

// IsPermanentMethod reports whether id names a built-in access method.
func IsPermanentMethod(id uuid.UUID) bool {
	return id == DirectMethodID || id == BridgesMethodID || id == EncryptedDNSMethodID
}

// ProxyKind identifies how API requests are routed.
type ProxyKind string

const (
	ProxyDirect       ProxyKind = "direct"
	ProxyBridges      ProxyKind = "bridges"
	ProxyEncryptedDNS ProxyKind = "encryptedDnsProxy"
	ProxyShadowsocks  ProxyKind = "shadowsocks"
	ProxySocks5       ProxyKind = "socks5"
)

// ShadowsocksConfiguration is a user supplied shadowsocks proxy.
type ShadowsocksConfiguration struct {
	ServerAddress netip.Addr `json:"serverAddress"`
	Port          uint16     `json:"port"`
	Password      string     `json:"password"`
	Cipher        string     `json:"cipher"`
}

// Socks5Authentication holds optional SOCKS5 credentials.
type Socks5Authentication struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Socks5Configuration is a user supplied SOCKS5 proxy.
type Socks5Configuration struct {
	ServerAddress  netip.Addr            `json:"serverAddress"`
	Port           uint16                `json:"port"`
	Authentication *Socks5Authentication `json:"authentication,omitempty"`
}

// ProxyConfiguration carries the settings for Kind. Only the field matching
// Kind is set.
type ProxyConfiguration struct {
	Kind        ProxyKind                 `json:"kind"`
	Shadowsocks *ShadowsocksConfiguration `json:"shadowsocks,omitempty"`
	Socks5      *Socks5Configuration      `json:"socks5,omitempty"`
}

// Validate checks that the configuration matches its kind.
func (p ProxyConfiguration) Validate() error {
	switch p.Kind {
	case ProxyDirect, ProxyBridges, ProxyEncryptedDNS:
		if p.Shadowsocks != nil || p.Socks5 != nil {
			return fmt.Errorf("%s proxy takes no configuration", p.Kind)
		}
	case ProxyShadowsocks:
		if p.Shadowsocks == nil || p.Socks5 != nil {
			return errors.New("shadowsocks proxy requires shadowsocks configuration")
		}
		if !p.Shadowsocks.ServerAddress.IsValid() || p.Shadowsocks.Port == 0 {
			return errors.New("shadowsocks proxy requires a server address and port")
		}
	case ProxySocks5:
		if p.Socks5 == nil || p.Shadowsocks != nil {
			return errors.New("socks5 proxy requires socks5 configuration")
		}
		if !p.Socks5.ServerAddress.IsValid() || p.Socks5.Port == 0 {
			return errors.New("socks5 proxy requires a server address and port")
		}
	default:
		return fmt.Errorf("unknown proxy kind %q", p.Kind)
	}
	return nil
}

// AccessMethod is one way of reaching the API.
type AccessMethod struct {
	ID        uuid.UUID          `json:"id"`
	Name      string             `json:"name"`
	IsEnabled bool               `json:"isEnabled"`
	Proxy     ProxyConfiguration `json:"proxyConfiguration"`
}

// IsPermanent reports whether m is a built-in method.
func (m AccessMethod) IsPermanent() bool {
	return IsPermanentMethod(m.ID)
}

// DefaultAccessMethods returns the built-in methods, all enabled.
func DefaultAccessMethods() []AccessMethod {
	return []AccessMethod{
		{ID: DirectMethodID, Name: "Direct", IsEnabled: true, Proxy: ProxyConfiguration{Kind: ProxyDirect}},
		{ID: BridgesMethodID, Name: "Bridges", IsEnabled: true, Proxy: ProxyConfiguration{Kind: ProxyBridges}},
		{ID: EncryptedDNSMethodID, Name: "Encrypted DNS proxy", IsEnabled: true, Proxy: ProxyConfiguration{Kind: ProxyEncryptedDNS}},
	}
}

type accessMethodsDocument struct {
	AccessMethods []AccessMethod `json:"accessMethods"`
	LastReachable *uuid.UUID     `json:"lastReachable,omitempty"`
}

// AccessMethodRepository persists API access methods.
type AccessMethodRepository struct {
	mu          sync.Mutex
	slot        slot[accessMethodsDocument]
	broadcaster *Broadcaster[[]AccessMethod]
	logger      *slog.Logger
}

// NewAccessMethodRepository creates a repository on store.
func NewAccessMethodRepository(store keystore.Store) *AccessMethodRepository {
	logger := slog.Default().With("component", "access_methods")
	return &AccessMethodRepository{
		slot:        slot[accessMethodsDocument]{store: store, key: keystore.KeyAccessMethods},
		broadcaster: NewBroadcaster[[]AccessMethod](logger),
		logger:      logger,
	}
}

// load returns the stored document with the built-in methods guaranteed
// present. An empty slot yields the built-in methods only.
func (r *AccessMethodRepository) load(ctx context.Context) (accessMethodsDocument, error) {
	doc, _, err := r.slot.load(ctx)
	if err != nil {
		return accessMethodsDocument{}, err
	}

	var missing []AccessMethod
	for _, builtin := range DefaultAccessMethods() {
		if indexOfMethod(doc.AccessMethods, builtin.ID) < 0 {
			missing = append(missing, builtin)
		}
	}
	doc.AccessMethods = append(missing, doc.AccessMethods...)
	return doc, nil
}

func (r *AccessMethodRepository) store(ctx context.Context, doc accessMethodsDocument) error {
	if err := r.slot.save(ctx, doc); err != nil {
		return err
	}
	r.broadcaster.Publish(cloneMethods(doc.AccessMethods))
	return nil
}

// FetchAll returns every access method, built-ins first on a fresh install.
func (r *AccessMethodRepository) FetchAll(ctx context.Context) ([]AccessMethod, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return nil, err
	}
	return doc.AccessMethods, nil
}

// Fetch returns the method with id.
func (r *AccessMethodRepository) Fetch(ctx context.Context, id uuid.UUID) (AccessMethod, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return AccessMethod{}, err
	}
	i := indexOfMethod(doc.AccessMethods, id)
	if i < 0 {
		return AccessMethod{}, fmt.Errorf("access method %s: %w", id, ErrNotFound)
	}
	return doc.AccessMethods[i], nil
}

// Add stores a new custom method and returns it with its assigned ID.
func (r *AccessMethodRepository) Add(ctx context.Context, name string, enabled bool, proxy ProxyConfiguration) (AccessMethod, error) {
	method := AccessMethod{
		ID:        uuid.New(),
		Name:      name,
		IsEnabled: enabled,
		Proxy:     proxy,
	}
	if err := r.Save(ctx, method); err != nil {
		return AccessMethod{}, err
	}
	return r.Fetch(ctx, method.ID)
}

// Save inserts or replaces method by ID. Built-in methods keep their name
// and proxy; only their enabled flag is taken from method.
func (r *AccessMethodRepository) Save(ctx context.Context, method AccessMethod) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}

	i := indexOfMethod(doc.AccessMethods, method.ID)
	if method.IsPermanent() {
		existing := doc.AccessMethods[i]
		if method.Proxy.Kind != "" && method.Proxy.Kind != existing.Proxy.Kind {
			return fmt.Errorf("changing proxy of %q: %w", existing.Name, ErrPermanent)
		}
		existing.IsEnabled = method.IsEnabled
		doc.AccessMethods[i] = existing
		return r.store(ctx, doc)
	}

	name, err := checkName(method.Name, 0)
	if err != nil {
		return err
	}
	method.Name = name
	if err := method.Proxy.Validate(); err != nil {
		return err
	}
	for j, other := range doc.AccessMethods {
		if j != i && strings.EqualFold(other.Name, name) {
			return fmt.Errorf("access method %q: %w", name, ErrDuplicateName)
		}
	}

	if i < 0 {
		doc.AccessMethods = append(doc.AccessMethods, method)
	} else {
		doc.AccessMethods[i] = method
	}
	if err := r.store(ctx, doc); err != nil {
		return err
	}

	r.logger.Info("saved access method", "id", method.ID, "kind", method.Proxy.Kind)
	return nil
}

// Delete removes the method with id. Deleting an absent method does nothing.
func (r *AccessMethodRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if IsPermanentMethod(id) {
		return fmt.Errorf("deleting access method %s: %w", id, ErrPermanent)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	i := indexOfMethod(doc.AccessMethods, id)
	if i < 0 {
		return nil
	}
	doc.AccessMethods = append(doc.AccessMethods[:i], doc.AccessMethods[i+1:]...)
	if doc.LastReachable != nil && *doc.LastReachable == id {
		doc.LastReachable = nil
	}
	return r.store(ctx, doc)
}

// LastReachable returns the method that last reached the API. When none is
// recorded, or it has since been deleted, the direct method is returned.
func (r *AccessMethodRepository) LastReachable(ctx context.Context) (AccessMethod, error) {
	doc, err := r.load(ctx)
	if err != nil {
		return AccessMethod{}, err
	}
	if doc.LastReachable != nil {
		if i := indexOfMethod(doc.AccessMethods, *doc.LastReachable); i >= 0 {
			return doc.AccessMethods[i], nil
		}
	}
	return doc.AccessMethods[indexOfMethod(doc.AccessMethods, DirectMethodID)], nil
}

// SaveLastReachable records id as the method that last reached the API.
func (r *AccessMethodRepository) SaveLastReachable(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, err := r.load(ctx)
	if err != nil {
		return err
	}
	if indexOfMethod(doc.AccessMethods, id) < 0 {
		return fmt.Errorf("access method %s: %w", id, ErrNotFound)
	}
	if doc.LastReachable != nil && *doc.LastReachable == id {
		return nil
	}
	doc.LastReachable = &id
	return r.slot.save(ctx, doc)
}

// Subscribe streams the method list after every stored change.
func (r *AccessMethodRepository) Subscribe(ctx context.Context) (<-chan []AccessMethod, string) {
	return r.broadcaster.Subscribe(ctx)
}

// Close ends all subscriptions.
func (r *AccessMethodRepository) Close() {
	r.broadcaster.Close()
}

func indexOfMethod(methods []AccessMethod, id uuid.UUID) int {
	for i, m := range methods {
		if m.ID == id {
			return i
		}
	}
	return -1
}

func cloneMethods(methods []AccessMethod) []AccessMethod {
	out := make([]AccessMethod, len(methods))
	copy(out, methods)
	return out
}
