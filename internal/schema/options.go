// ABOUTME: Enumerated tunnel options introduced across schema versions
// ABOUTME: Quantum resistance, multihop, DAITA, and IP version selections

package schema

import "fmt"

// TunnelQuantumResistance selects post-quantum key exchange. Added in V4,
// defaulting to automatic.
type TunnelQuantumResistance string

const (
	QuantumResistanceAutomatic TunnelQuantumResistance = "automatic"
	QuantumResistanceOn        TunnelQuantumResistance = "on"
	QuantumResistanceOff       TunnelQuantumResistance = "off"
)

func (q TunnelQuantumResistance) Validate() error {
	switch q {
	case QuantumResistanceAutomatic, QuantumResistanceOn, QuantumResistanceOff:
		return nil
	}
	return fmt.Errorf("unknown quantum resistance %q", string(q))
}

// MultihopState routes traffic through an entry relay before the exit relay.
// Added in V5, defaulting to off.
type MultihopState string

const (
	MultihopOn  MultihopState = "on"
	MultihopOff MultihopState = "off"
)

func (m MultihopState) Validate() error {
	switch m {
	case MultihopOn, MultihopOff:
		return nil
	}
	return fmt.Errorf("unknown multihop state %q", string(m))
}

// DAITAState toggles defense against AI-guided traffic analysis.
type DAITAState string

const (
	DAITAOn  DAITAState = "on"
	DAITAOff DAITAState = "off"
)

func (d DAITAState) Validate() error {
	switch d {
	case DAITAOn, DAITAOff:
		return nil
	}
	return fmt.Errorf("unknown DAITA state %q", string(d))
}

// DirectOnlyState restricts DAITA to relays that support it directly,
// without routing through a supporting entry relay.
type DirectOnlyState string

const (
	DirectOnlyOn  DirectOnlyState = "on"
	DirectOnlyOff DirectOnlyState = "off"
)

func (d DirectOnlyState) Validate() error {
	switch d {
	case DirectOnlyOn, DirectOnlyOff:
		return nil
	}
	return fmt.Errorf("unknown direct only state %q", string(d))
}

// DAITASettingsV6 is the DAITA shape introduced in V6. Defaults to off.
type DAITASettingsV6 struct {
	DAITAState DAITAState `json:"daitaState"`
}

// DAITASettings is the DAITA shape from V7 on. DirectOnlyState defaults to off.
type DAITASettings struct {
	DAITAState      DAITAState      `json:"daitaState"`
	DirectOnlyState DirectOnlyState `json:"directOnlyState"`
}

func (d DAITASettings) Validate() error {
	if err := d.DAITAState.Validate(); err != nil {
		return err
	}
	return d.DirectOnlyState.Validate()
}

// IPVersion selects the address family used to reach relays. Added in V8,
// defaulting to automatic.
type IPVersion string

const (
	IPVersionAutomatic IPVersion = "automatic"
	IPVersionIPv4      IPVersion = "ipv4"
	IPVersionIPv6      IPVersion = "ipv6"
)

func (v IPVersion) Validate() error {
	switch v {
	case IPVersionAutomatic, IPVersionIPv4, IPVersionIPv6:
		return nil
	}
	return fmt.Errorf("unknown IP version %q", string(v))
}
