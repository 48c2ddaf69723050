// ABOUTME: Sealed record sum type and the version chain operations
// ABOUTME: Next, Decode, Encode and NewRecord switch over every known version

package schema

import (
	"fmt"

	"github.com/2389/tunnelvault/internal/payload"
)

// Record is a settings record of some schema version. The set of
// implementations is closed to this package.
type Record interface {
	Version() Version
	Validate() error
	isRecord()
}

// Next upgrades r by exactly one version. It returns r and false when r is
// already at Current.
func Next(r Record) (Record, bool) {
	switch s := r.(type) {
	case TunnelSettingsV1:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV2:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV3:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV4:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV5:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV6:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV7:
		return s.UpgradeToNextVersion(), true
	case TunnelSettingsV8:
		return s, false
	}
	panic(fmt.Sprintf("schema: unhandled record type %T", r))
}

// NewRecord returns the zero record of version v, suitable for decoding into.
func NewRecord(v Version) (Record, error) {
	switch v {
	case V1:
		return TunnelSettingsV1{}, nil
	case V2:
		return TunnelSettingsV2{}, nil
	case V3:
		return TunnelSettingsV3{}, nil
	case V4:
		return TunnelSettingsV4{}, nil
	case V5:
		return TunnelSettingsV5{}, nil
	case V6:
		return TunnelSettingsV6{}, nil
	case V7:
		return TunnelSettingsV7{}, nil
	case V8:
		return TunnelSettingsV8{}, nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
}

// Decode reads the version tag of data and decodes the body as that version's record.
func Decode(data []byte) (Record, error) {
	tag, err := payload.ParseVersion(data)
	if err != nil {
		return nil, err
	}
	return DecodeAs(data, Version(tag))
}

// DecodeAs decodes data as the record of version v.
func DecodeAs(data []byte, v Version) (Record, error) {
	switch v {
	case V1:
		return decode[TunnelSettingsV1](data, v)
	case V2:
		return decode[TunnelSettingsV2](data, v)
	case V3:
		return decode[TunnelSettingsV3](data, v)
	case V4:
		return decode[TunnelSettingsV4](data, v)
	case V5:
		return decode[TunnelSettingsV5](data, v)
	case V6:
		return decode[TunnelSettingsV6](data, v)
	case V7:
		return decode[TunnelSettingsV7](data, v)
	case V8:
		return decode[TunnelSettingsV8](data, v)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownVersion, int(v))
}

func decode[T Record](data []byte, v Version) (Record, error) {
	record, err := payload.ParsePayload[T](data, int(v))
	if err != nil {
		return nil, err
	}
	return record, nil
}

// Encode produces the versioned payload of r.
func Encode(r Record) ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, fmt.Errorf("invalid %s record: %w", r.Version(), err)
	}
	return payload.ProducePayload(r, int(r.Version()))
}

// DecodeLatest decodes data as the Current record.
func DecodeLatest(data []byte) (LatestSettings, error) {
	return payload.ParsePayload[LatestSettings](data, int(Current))
}
