// ABOUTME: Seeded random record generators shared by the schema tests
// ABOUTME: Produce valid records of every version for chain properties

package schema

import (
	"math/rand/v2"
	"net/netip"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/2389/tunnelvault/internal/relay"
)

// recordCmp compares records holding netip.Addr values, which have unexported fields.
var recordCmp = cmp.Comparer(func(a, b netip.Addr) bool { return a == b })

var (
	countries = []string{"se", "de", "us", "jp", "br"}
	cities    = []string{"got", "ber", "nyc", "tyo", "sao"}
)

func pick[T any](r *rand.Rand, values ...T) T {
	return values[r.IntN(len(values))]
}

func genLocation(r *rand.Rand) relay.RelayLocation {
	country := pick(r, countries...)
	switch r.IntN(3) {
	case 0:
		return relay.Country(country)
	case 1:
		return relay.City(country, pick(r, cities...))
	default:
		city := pick(r, cities...)
		return relay.Host(country, city, country+"-"+city+"-wg-00"+string(rune('1'+r.IntN(9))))
	}
}

func genLocationConstraint(r *rand.Rand) relay.Constraint[relay.RelayLocation] {
	if r.IntN(4) == 0 {
		return relay.Any[relay.RelayLocation]()
	}
	return relay.Only(genLocation(r))
}

func genPort(r *rand.Rand) relay.Constraint[uint16] {
	if r.IntN(2) == 0 {
		return relay.Any[uint16]()
	}
	return relay.Only(uint16(1 + r.IntN(65535)))
}

func genFilter(r *rand.Rand) relay.Constraint[relay.Filter] {
	if r.IntN(2) == 0 {
		return relay.Any[relay.Filter]()
	}
	f := relay.Filter{
		Ownership: pick(r, relay.OwnershipAny, relay.OwnershipOwned, relay.OwnershipRented),
		Providers: relay.Any[[]string](),
	}
	if r.IntN(2) == 0 {
		f.Providers = relay.Only([]string{pick(r, "31173", "M247", "DataPacket")})
	}
	return relay.Only(f)
}

func genSelection(r *rand.Rand) relay.Constraint[relay.UserSelectedRelays] {
	if r.IntN(3) == 0 {
		return relay.Any[relay.UserSelectedRelays]()
	}
	sel := relay.UserSelectedRelays{}
	count := 1 + r.IntN(3)
	for i := 0; i < count; i++ {
		sel.Locations = append(sel.Locations, genLocation(r))
	}
	if r.IntN(2) == 0 {
		sel.CustomListSelection = &relay.CustomListSelection{
			ListID: uuid.UUID{byte(r.IntN(256)), 1, 2, 3},
			IsList: r.IntN(2) == 0,
		}
	}
	return relay.Only(sel)
}

func genDNS(r *rand.Rand) DNSSettings {
	d := DNSSettings{
		BlockingOptions: DNSBlockingOptions(r.Uint32()) & allBlockingOptions,
		EnableCustomDNS: r.IntN(2) == 0,
	}
	servers := r.IntN(MaxCustomDNSServers + 1)
	for i := 0; i < servers; i++ {
		if r.IntN(2) == 0 {
			d.CustomDNSDomains = append(d.CustomDNSDomains, netip.AddrFrom4([4]byte{10, 0, byte(r.IntN(256)), byte(1 + r.IntN(254))}))
		} else {
			d.CustomDNSDomains = append(d.CustomDNSDomains, netip.MustParseAddr("2001:db8::1"))
		}
	}
	return d
}

func genObfuscation(r *rand.Rand) WireGuardObfuscationSettings {
	o := WireGuardObfuscationSettings{
		State:          pick(r, ObfuscationAutomatic, ObfuscationUDPOverTCP, ObfuscationShadowsocks, ObfuscationOff),
		UDPOverTCPPort: pick(r, UDPOverTCPPortAutomatic, UDPOverTCPPort80, UDPOverTCPPort5001),
	}
	if r.IntN(2) == 0 {
		o.ShadowsocksPort = ShadowsocksPort{Custom: uint16(1 + r.IntN(65535))}
	}
	return o
}

func genRelayConstraints(r *rand.Rand) RelayConstraints {
	return RelayConstraints{
		ExitLocations:  genSelection(r),
		EntryLocations: genSelection(r),
		Port:           genPort(r),
		Filter:         genFilter(r),
	}
}

// genRecord returns a random valid record of version v.
func genRecord(r *rand.Rand, v Version) Record {
	rc := genRelayConstraints(r)
	dns := genDNS(r)
	obf := genObfuscation(r)
	quantum := pick(r, QuantumResistanceAutomatic, QuantumResistanceOn, QuantumResistanceOff)
	multihop := pick(r, MultihopOn, MultihopOff)
	daita := DAITASettings{
		DAITAState:      pick(r, DAITAOn, DAITAOff),
		DirectOnlyState: pick(r, DirectOnlyOn, DirectOnlyOff),
	}
	excludeLAN := r.IntN(2) == 0
	includeAll := r.IntN(2) == 0

	switch v {
	case V1:
		return TunnelSettingsV1{
			RelayConstraints: RelayConstraintsV1{Location: genLocationConstraint(r)},
			DNSSettings:      dns,
		}
	case V2:
		return TunnelSettingsV2{
			RelayConstraints: RelayConstraintsV2{
				Location: genLocationConstraint(r),
				Port:     genPort(r),
				Filter:   genFilter(r),
			},
			DNSSettings: dns,
		}
	case V3:
		return TunnelSettingsV3{RelayConstraints: rc, DNSSettings: dns, WireGuardObfuscation: obf}
	case V4:
		return TunnelSettingsV4{RelayConstraints: rc, DNSSettings: dns, WireGuardObfuscation: obf,
			TunnelQuantumResistance: quantum}
	case V5:
		return TunnelSettingsV5{RelayConstraints: rc, DNSSettings: dns, WireGuardObfuscation: obf,
			TunnelQuantumResistance: quantum, TunnelMultihopState: multihop}
	case V6:
		return TunnelSettingsV6{RelayConstraints: rc, DNSSettings: dns, WireGuardObfuscation: obf,
			TunnelQuantumResistance: quantum, TunnelMultihopState: multihop,
			DAITA: DAITASettingsV6{DAITAState: daita.DAITAState}}
	case V7:
		return TunnelSettingsV7{RelayConstraints: rc, DNSSettings: dns, WireGuardObfuscation: obf,
			TunnelQuantumResistance: quantum, TunnelMultihopState: multihop, DAITA: daita,
			ExcludeLocalNetwork: excludeLAN, IncludeAllNetworks: includeAll}
	default:
		return TunnelSettingsV8{RelayConstraints: rc, DNSSettings: dns, WireGuardObfuscation: obf,
			TunnelQuantumResistance: quantum, TunnelMultihopState: multihop, DAITA: daita,
			ExcludeLocalNetwork: excludeLAN, IncludeAllNetworks: includeAll,
			IPVersion: pick(r, IPVersionAutomatic, IPVersionIPv4, IPVersionIPv6)}
	}
}
