// Package validate provides input validation for API path and body parameters.
package validate

// DeviceIDMaxLen is the maximum allowed length for a device id (stored in DB,
// used in paths).
const DeviceIDMaxLen = 64

// DeviceID validates a device id from the path: alphanumeric, hyphen,
// underscore; 1–DeviceIDMaxLen.
func DeviceID(id string) bool {
	if id == "" || len(id) > DeviceIDMaxLen {
		return false
	}
	for _, r := range id {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			continue
		}
		return false
	}
	return true
}

// RuleID validates a rule id from the path: same character set as device ids.
func RuleID(id string) bool {
	return DeviceID(id)
}

// SensorField validates a sensor field name from an ingest payload: lowercase
// alphanumeric and underscore; 1–32 chars.
func SensorField(name string) bool {
	if name == "" || len(name) > 32 {
		return false
	}
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '_' {
			continue
		}
		return false
	}
	return true
}
