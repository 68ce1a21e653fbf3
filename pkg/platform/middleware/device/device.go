// Package device derives a coarse client description from the User-Agent
// header. Audit trails record the description, not the raw header, so log
// lines stay readable and free of version-string churn.
package device

import (
	"fmt"

	"github.com/mssola/useragent"
)

// Describe returns a short human-readable client description such as
// "Chrome on Linux". Agents the parser cannot identify come back as
// "unknown".
func Describe(uaString string) string {
	if uaString == "" {
		return "unknown"
	}

	ua := useragent.New(uaString)
	name, _ := ua.Browser()
	if name == "" {
		return "unknown"
	}
	if ua.Bot() {
		return fmt.Sprintf("%s (bot)", name)
	}
	if osInfo := ua.OSInfo(); osInfo.Name != "" {
		return fmt.Sprintf("%s on %s", name, osInfo.Name)
	}
	return name
}
