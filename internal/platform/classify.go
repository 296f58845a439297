package platform

import "strings"

// DefaultClassifier reproduces the common signals seen in the wild: a 401
// status code, a "401" reason string, or an "Unauthorized" substring in the
// message all mean the pairing was revoked. Anything else, including a nil
// disconnect, is treated as recoverable.
func DefaultClassifier(d *Disconnect) DisconnectClass {
	if d == nil {
		return DisconnectRecoverable
	}
	if d.StatusCode == 401 {
		return DisconnectLoggedOut
	}
	if d.Reason == "401" {
		return DisconnectLoggedOut
	}
	if strings.Contains(d.Message, "Unauthorized") {
		return DisconnectLoggedOut
	}
	return DisconnectRecoverable
}
