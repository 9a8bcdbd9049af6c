package stacvalidator

// Version is the tool version.
const Version = "0.1.0"

// STACVersion represents a STAC specification version.
type STACVersion string

// Supported STAC versions.
const (
	// V1_0_0 is STAC 1.0.0.
	V1_0_0 STACVersion = "1.0.0"
)

// String returns the version string.
func (v STACVersion) String() string {
	return string(v)
}

// IsValid returns true if this is a supported STAC version.
func (v STACVersion) IsValid() bool {
	switch v {
	case V1_0_0:
		return true
	default:
		return false
	}
}
