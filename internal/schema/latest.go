// ABOUTME: Current settings record type and its defaults
// ABOUTME: LatestSettings is the only record type callers outside this package use

package schema

import "errors"

// TunnelSettingsV8 adds the IP version used to reach relays.
type TunnelSettingsV8 struct {
	RelayConstraints        RelayConstraints             `json:"relayConstraints"`
	DNSSettings             DNSSettings                  `json:"dnsSettings"`
	WireGuardObfuscation    WireGuardObfuscationSettings `json:"wireGuardObfuscation"`
	TunnelQuantumResistance TunnelQuantumResistance      `json:"tunnelQuantumResistance"`
	TunnelMultihopState     MultihopState                `json:"tunnelMultihopState"`
	DAITA                   DAITASettings                `json:"daita"`
	ExcludeLocalNetwork     bool                         `json:"excludeLocalNetwork"`
	IncludeAllNetworks      bool                         `json:"includeAllNetworks"`
	IPVersion               IPVersion                    `json:"ipVersion"`
}

func (TunnelSettingsV8) Version() Version { return V8 }
func (TunnelSettingsV8) isRecord()        {}

func (s TunnelSettingsV8) Validate() error {
	return errors.Join(
		s.RelayConstraints.Validate(),
		s.DNSSettings.Validate(),
		s.WireGuardObfuscation.Validate(),
		s.TunnelQuantumResistance.Validate(),
		s.TunnelMultihopState.Validate(),
		s.DAITA.Validate(),
		s.IPVersion.Validate(),
	)
}

// LatestSettings is the settings record of the Current version.
type LatestSettings = TunnelSettingsV8

// Default returns the settings of a fresh install.
func Default() LatestSettings {
	return LatestSettings{
		RelayConstraints:        DefaultRelayConstraints(),
		DNSSettings:             DNSSettings{},
		WireGuardObfuscation:    DefaultObfuscationSettings(),
		TunnelQuantumResistance: QuantumResistanceAutomatic,
		TunnelMultihopState:     MultihopOff,
		DAITA: DAITASettings{
			DAITAState:      DAITAOff,
			DirectOnlyState: DirectOnlyOff,
		},
		ExcludeLocalNetwork: false,
		IncludeAllNetworks:  false,
		IPVersion:           IPVersionAutomatic,
	}
}
