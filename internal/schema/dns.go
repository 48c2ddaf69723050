// ABOUTME: DNS settings embedded in every settings record version
// ABOUTME: Content blocking bitset plus optional custom resolver addresses

package schema

import (
	"errors"
	"fmt"
	"net/netip"
)

// DNSBlockingOptions is a bitset of content categories blocked by the relay resolver.
type DNSBlockingOptions uint32

const (
	BlockAdvertising DNSBlockingOptions = 1 << iota
	BlockTracking
	BlockMalware
	BlockAdultContent
	BlockGambling
	BlockSocialMedia

	allBlockingOptions = BlockAdvertising | BlockTracking | BlockMalware |
		BlockAdultContent | BlockGambling | BlockSocialMedia
)

// Has reports whether every bit of opt is set.
func (o DNSBlockingOptions) Has(opt DNSBlockingOptions) bool {
	return o&opt == opt
}

// MaxCustomDNSServers bounds the number of custom resolver addresses.
const MaxCustomDNSServers = 3

// DNSSettings controls how the tunnel resolves names.
type DNSSettings struct {
	BlockingOptions DNSBlockingOptions `json:"blockingOptions"`
	// EnableCustomDNS switches from the relay resolver to CustomDNSDomains.
	// It is honored only when blocking is disabled.
	EnableCustomDNS  bool         `json:"enableCustomDNS"`
	CustomDNSDomains []netip.Addr `json:"customDNSDomains"`
}

// EffectiveCustomDNS reports whether the custom resolvers are in use.
func (d DNSSettings) EffectiveCustomDNS() bool {
	return d.EnableCustomDNS && d.BlockingOptions == 0 && len(d.CustomDNSDomains) > 0
}

func (d DNSSettings) Validate() error {
	if unknown := d.BlockingOptions &^ allBlockingOptions; unknown != 0 {
		return fmt.Errorf("unknown DNS blocking options %#x", uint32(unknown))
	}
	if len(d.CustomDNSDomains) > MaxCustomDNSServers {
		return fmt.Errorf("%d custom DNS servers, at most %d allowed", len(d.CustomDNSDomains), MaxCustomDNSServers)
	}
	for _, addr := range d.CustomDNSDomains {
		if !addr.IsValid() {
			return errors.New("invalid custom DNS address")
		}
	}
	return nil
}
