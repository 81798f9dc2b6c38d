// ABOUTME: Hostname and owner identifier validation
// ABOUTME: Keeps untrusted snapshot-provider strings out of log lines intact

package fleet

import (
	"fmt"
	"regexp"
	"strings"
)

// hostnamePattern matches the hostnames we're willing to log and key maps
// by: lowercase DNS-label-ish names. Snapshot providers that surface raw
// upstream identifiers (Cloud Foundry GUIDs, vCenter morefs) should
// normalize them into this shape before handing a Node to FleetSnapshot.
var hostnamePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?(\.[a-z0-9]([a-z0-9-]*[a-z0-9])?)*$`)

// ValidateHostname checks that a hostname is safe to use as a map key and
// to interpolate into log messages and metric labels.
func ValidateHostname(hostname string) error {
	if hostname == "" {
		return fmt.Errorf("hostname cannot be empty")
	}
	if !hostnamePattern.MatchString(hostname) {
		return fmt.Errorf("invalid hostname format: %s", SanitizeForLog(hostname))
	}
	return nil
}

// SanitizeForLog strips control characters from untrusted strings before
// they're interpolated into log messages, preventing log injection when a
// snapshot provider hands back a hostname or owner string verbatim from an
// upstream API.
func SanitizeForLog(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, s)
}
