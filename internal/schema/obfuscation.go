// ABOUTME: WireGuard obfuscation settings, added in schema V3
// ABOUTME: Decodes the current udpOverTcpPort shape with a fallback for the legacy port shape

package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ObfuscationState selects how WireGuard traffic is disguised.
type ObfuscationState string

const (
	ObfuscationAutomatic   ObfuscationState = "automatic"
	ObfuscationUDPOverTCP  ObfuscationState = "udpOverTcp"
	ObfuscationShadowsocks ObfuscationState = "shadowsocks"
	ObfuscationOff         ObfuscationState = "off"

	// legacyObfuscationOn is the pre-shadowsocks spelling of udpOverTcp.
	legacyObfuscationOn ObfuscationState = "on"
)

func (s ObfuscationState) Validate() error {
	switch s {
	case ObfuscationAutomatic, ObfuscationUDPOverTCP, ObfuscationShadowsocks, ObfuscationOff:
		return nil
	}
	return fmt.Errorf("unknown obfuscation state %q", string(s))
}

// UDPOverTCPPort is the TCP port used by udp-over-tcp obfuscation.
type UDPOverTCPPort string

const (
	UDPOverTCPPortAutomatic UDPOverTCPPort = "automatic"
	UDPOverTCPPort80        UDPOverTCPPort = "port80"
	UDPOverTCPPort5001      UDPOverTCPPort = "port5001"
)

func (p UDPOverTCPPort) Validate() error {
	switch p {
	case UDPOverTCPPortAutomatic, UDPOverTCPPort80, UDPOverTCPPort5001:
		return nil
	}
	return fmt.Errorf("unknown udp-over-tcp port %q", string(p))
}

// Number returns the TCP port, or 0 for automatic.
func (p UDPOverTCPPort) Number() uint16 {
	switch p {
	case UDPOverTCPPort80:
		return 80
	case UDPOverTCPPort5001:
		return 5001
	}
	return 0
}

// ShadowsocksPort is either automatic (zero value) or a custom port.
type ShadowsocksPort struct {
	Custom uint16
}

// IsAutomatic reports whether the port is chosen by the client.
func (p ShadowsocksPort) IsAutomatic() bool {
	return p.Custom == 0
}

func (p ShadowsocksPort) MarshalJSON() ([]byte, error) {
	if p.IsAutomatic() {
		return []byte(`"automatic"`), nil
	}
	return json.Marshal(struct {
		Custom uint16 `json:"custom"`
	}{Custom: p.Custom})
}

func (p *ShadowsocksPort) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte(`"automatic"`)) {
		p.Custom = 0
		return nil
	}
	var custom struct {
		Custom *uint16 `json:"custom"`
	}
	if err := strictUnmarshal(data, &custom); err != nil {
		return fmt.Errorf("decoding shadowsocks port: %w", err)
	}
	if custom.Custom == nil || *custom.Custom == 0 {
		return errors.New("decoding shadowsocks port: expected \"automatic\" or {\"custom\": port}")
	}
	p.Custom = *custom.Custom
	return nil
}

// WireGuardObfuscationSettings is written as
//
//	{"state": "automatic", "udpOverTcpPort": "port80", "shadowsocksPort": "automatic"}
//
// Records written before shadowsocks support carried
//
//	{"state": "on", "port": "port80"}
//
// which decodes with state udpOverTcp and an automatic shadowsocks port.
type WireGuardObfuscationSettings struct {
	State           ObfuscationState `json:"state"`
	UDPOverTCPPort  UDPOverTCPPort   `json:"udpOverTcpPort"`
	ShadowsocksPort ShadowsocksPort  `json:"shadowsocksPort"`
}

// DefaultObfuscationSettings is automatic obfuscation on automatic ports.
func DefaultObfuscationSettings() WireGuardObfuscationSettings {
	return WireGuardObfuscationSettings{
		State:          ObfuscationAutomatic,
		UDPOverTCPPort: UDPOverTCPPortAutomatic,
	}
}

func (o *WireGuardObfuscationSettings) UnmarshalJSON(data []byte) error {
	var current struct {
		State           ObfuscationState `json:"state"`
		UDPOverTCPPort  *UDPOverTCPPort  `json:"udpOverTcpPort"`
		ShadowsocksPort *ShadowsocksPort `json:"shadowsocksPort"`
	}
	currentErr := strictUnmarshal(data, &current)
	if currentErr == nil && current.UDPOverTCPPort != nil {
		*o = WireGuardObfuscationSettings{
			State:          current.State,
			UDPOverTCPPort: *current.UDPOverTCPPort,
		}
		if current.ShadowsocksPort != nil {
			o.ShadowsocksPort = *current.ShadowsocksPort
		}
		return nil
	}

	var legacy struct {
		State ObfuscationState `json:"state"`
		Port  *UDPOverTCPPort  `json:"port"`
	}
	if err := strictUnmarshal(data, &legacy); err == nil && legacy.Port != nil {
		state := legacy.State
		if state == legacyObfuscationOn {
			state = ObfuscationUDPOverTCP
		}
		*o = WireGuardObfuscationSettings{
			State:          state,
			UDPOverTCPPort: *legacy.Port,
		}
		return nil
	}

	if currentErr == nil {
		currentErr = errors.New("missing udpOverTcpPort")
	}
	return fmt.Errorf("decoding obfuscation settings: %w", currentErr)
}

func (o WireGuardObfuscationSettings) Validate() error {
	if err := o.State.Validate(); err != nil {
		return err
	}
	return o.UDPOverTCPPort.Validate()
}

func strictUnmarshal(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
