// ABOUTME: Frozen settings record types V1 through V7 and their upgrades
// ABOUTME: Never edit a released shape; add a new version instead

package schema

import "errors"

// TunnelSettingsV1 is the first persisted settings shape.
type TunnelSettingsV1 struct {
	RelayConstraints RelayConstraintsV1 `json:"relayConstraints"`
	DNSSettings      DNSSettings        `json:"dnsSettings"`
}

func (TunnelSettingsV1) Version() Version { return V1 }
func (TunnelSettingsV1) isRecord()        {}

func (s TunnelSettingsV1) Validate() error {
	return errors.Join(s.RelayConstraints.Validate(), s.DNSSettings.Validate())
}

// UpgradeToNextVersion adds an unconstrained port and filter.
func (s TunnelSettingsV1) UpgradeToNextVersion() TunnelSettingsV2 {
	return TunnelSettingsV2{
		RelayConstraints: s.RelayConstraints.upgrade(),
		DNSSettings:      s.DNSSettings,
	}
}

// TunnelSettingsV2 adds port and filter relay constraints.
type TunnelSettingsV2 struct {
	RelayConstraints RelayConstraintsV2 `json:"relayConstraints"`
	DNSSettings      DNSSettings        `json:"dnsSettings"`
}

func (TunnelSettingsV2) Version() Version { return V2 }
func (TunnelSettingsV2) isRecord()        {}

func (s TunnelSettingsV2) Validate() error {
	return errors.Join(s.RelayConstraints.Validate(), s.DNSSettings.Validate())
}

// UpgradeToNextVersion moves the location to the exit selection and adds
// automatic obfuscation.
func (s TunnelSettingsV2) UpgradeToNextVersion() TunnelSettingsV3 {
	return TunnelSettingsV3{
		RelayConstraints:     s.RelayConstraints.upgrade(),
		DNSSettings:          s.DNSSettings,
		WireGuardObfuscation: DefaultObfuscationSettings(),
	}
}

// TunnelSettingsV3 splits relay selection into entry and exit and adds obfuscation.
type TunnelSettingsV3 struct {
	RelayConstraints     RelayConstraints             `json:"relayConstraints"`
	DNSSettings          DNSSettings                  `json:"dnsSettings"`
	WireGuardObfuscation WireGuardObfuscationSettings `json:"wireGuardObfuscation"`
}

func (TunnelSettingsV3) Version() Version { return V3 }
func (TunnelSettingsV3) isRecord()        {}

func (s TunnelSettingsV3) Validate() error {
	return errors.Join(
		s.RelayConstraints.Validate(),
		s.DNSSettings.Validate(),
		s.WireGuardObfuscation.Validate(),
	)
}

// UpgradeToNextVersion adds automatic quantum resistance.
func (s TunnelSettingsV3) UpgradeToNextVersion() TunnelSettingsV4 {
	return TunnelSettingsV4{
		RelayConstraints:        s.RelayConstraints,
		DNSSettings:             s.DNSSettings,
		WireGuardObfuscation:    s.WireGuardObfuscation,
		TunnelQuantumResistance: QuantumResistanceAutomatic,
	}
}

// TunnelSettingsV4 adds quantum resistance.
type TunnelSettingsV4 struct {
	RelayConstraints        RelayConstraints             `json:"relayConstraints"`
	DNSSettings             DNSSettings                  `json:"dnsSettings"`
	WireGuardObfuscation    WireGuardObfuscationSettings `json:"wireGuardObfuscation"`
	TunnelQuantumResistance TunnelQuantumResistance      `json:"tunnelQuantumResistance"`
}

func (TunnelSettingsV4) Version() Version { return V4 }
func (TunnelSettingsV4) isRecord()        {}

func (s TunnelSettingsV4) Validate() error {
	return errors.Join(
		s.RelayConstraints.Validate(),
		s.DNSSettings.Validate(),
		s.WireGuardObfuscation.Validate(),
		s.TunnelQuantumResistance.Validate(),
	)
}

// UpgradeToNextVersion adds multihop, off.
func (s TunnelSettingsV4) UpgradeToNextVersion() TunnelSettingsV5 {
	return TunnelSettingsV5{
		RelayConstraints:        s.RelayConstraints,
		DNSSettings:             s.DNSSettings,
		WireGuardObfuscation:    s.WireGuardObfuscation,
		TunnelQuantumResistance: s.TunnelQuantumResistance,
		TunnelMultihopState:     MultihopOff,
	}
}

// TunnelSettingsV5 adds multihop.
type TunnelSettingsV5 struct {
	RelayConstraints        RelayConstraints             `json:"relayConstraints"`
	DNSSettings             DNSSettings                  `json:"dnsSettings"`
	WireGuardObfuscation    WireGuardObfuscationSettings `json:"wireGuardObfuscation"`
	TunnelQuantumResistance TunnelQuantumResistance      `json:"tunnelQuantumResistance"`
	TunnelMultihopState     MultihopState                `json:"tunnelMultihopState"`
}

func (TunnelSettingsV5) Version() Version { return V5 }
func (TunnelSettingsV5) isRecord()        {}

func (s TunnelSettingsV5) Validate() error {
	return errors.Join(
		s.RelayConstraints.Validate(),
		s.DNSSettings.Validate(),
		s.WireGuardObfuscation.Validate(),
		s.TunnelQuantumResistance.Validate(),
		s.TunnelMultihopState.Validate(),
	)
}

// UpgradeToNextVersion adds DAITA, off.
func (s TunnelSettingsV5) UpgradeToNextVersion() TunnelSettingsV6 {
	return TunnelSettingsV6{
		RelayConstraints:        s.RelayConstraints,
		DNSSettings:             s.DNSSettings,
		WireGuardObfuscation:    s.WireGuardObfuscation,
		TunnelQuantumResistance: s.TunnelQuantumResistance,
		TunnelMultihopState:     s.TunnelMultihopState,
		DAITA:                   DAITASettingsV6{DAITAState: DAITAOff},
	}
}

// TunnelSettingsV6 adds DAITA.
type TunnelSettingsV6 struct {
	RelayConstraints        RelayConstraints             `json:"relayConstraints"`
	DNSSettings             DNSSettings                  `json:"dnsSettings"`
	WireGuardObfuscation    WireGuardObfuscationSettings `json:"wireGuardObfuscation"`
	TunnelQuantumResistance TunnelQuantumResistance      `json:"tunnelQuantumResistance"`
	TunnelMultihopState     MultihopState                `json:"tunnelMultihopState"`
	DAITA                   DAITASettingsV6              `json:"daita"`
}

func (TunnelSettingsV6) Version() Version { return V6 }
func (TunnelSettingsV6) isRecord()        {}

func (s TunnelSettingsV6) Validate() error {
	return errors.Join(
		s.RelayConstraints.Validate(),
		s.DNSSettings.Validate(),
		s.WireGuardObfuscation.Validate(),
		s.TunnelQuantumResistance.Validate(),
		s.TunnelMultihopState.Validate(),
		s.DAITA.DAITAState.Validate(),
	)
}

// UpgradeToNextVersion keeps the DAITA state, sets direct only off, and
// leaves both local network options off.
func (s TunnelSettingsV6) UpgradeToNextVersion() TunnelSettingsV7 {
	return TunnelSettingsV7{
		RelayConstraints:        s.RelayConstraints,
		DNSSettings:             s.DNSSettings,
		WireGuardObfuscation:    s.WireGuardObfuscation,
		TunnelQuantumResistance: s.TunnelQuantumResistance,
		TunnelMultihopState:     s.TunnelMultihopState,
		DAITA: DAITASettings{
			DAITAState:      s.DAITA.DAITAState,
			DirectOnlyState: DirectOnlyOff,
		},
		ExcludeLocalNetwork: false,
		IncludeAllNetworks:  false,
	}
}

// TunnelSettingsV7 adds DAITA direct only and the local network options.
type TunnelSettingsV7 struct {
	RelayConstraints        RelayConstraints             `json:"relayConstraints"`
	DNSSettings             DNSSettings                  `json:"dnsSettings"`
	WireGuardObfuscation    WireGuardObfuscationSettings `json:"wireGuardObfuscation"`
	TunnelQuantumResistance TunnelQuantumResistance      `json:"tunnelQuantumResistance"`
	TunnelMultihopState     MultihopState                `json:"tunnelMultihopState"`
	DAITA                   DAITASettings                `json:"daita"`
	ExcludeLocalNetwork     bool                         `json:"excludeLocalNetwork"`
	IncludeAllNetworks      bool                         `json:"includeAllNetworks"`
}

func (TunnelSettingsV7) Version() Version { return V7 }
func (TunnelSettingsV7) isRecord()        {}

func (s TunnelSettingsV7) Validate() error {
	return errors.Join(
		s.RelayConstraints.Validate(),
		s.DNSSettings.Validate(),
		s.WireGuardObfuscation.Validate(),
		s.TunnelQuantumResistance.Validate(),
		s.TunnelMultihopState.Validate(),
		s.DAITA.Validate(),
	)
}

// UpgradeToNextVersion adds automatic IP version selection.
func (s TunnelSettingsV7) UpgradeToNextVersion() TunnelSettingsV8 {
	return TunnelSettingsV8{
		RelayConstraints:        s.RelayConstraints,
		DNSSettings:             s.DNSSettings,
		WireGuardObfuscation:    s.WireGuardObfuscation,
		TunnelQuantumResistance: s.TunnelQuantumResistance,
		TunnelMultihopState:     s.TunnelMultihopState,
		DAITA:                   s.DAITA,
		ExcludeLocalNetwork:     s.ExcludeLocalNetwork,
		IncludeAllNetworks:      s.IncludeAllNetworks,
		IPVersion:               IPVersionAutomatic,
	}
}
