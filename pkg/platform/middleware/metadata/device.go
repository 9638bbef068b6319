package metadata

import (
	"strings"

	"github.com/mssola/useragent"
)

const unknownDevice = "Unknown Device"

// ParseUserAgent renders a short "Browser on OS" label for audit records.
func ParseUserAgent(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return unknownDevice
	}

	ua := useragent.New(raw)
	browser, _ := ua.Browser()
	if browser == "" {
		browser = "Unknown Browser"
	}
	os := ua.OS()
	if os == "" {
		os = ua.Platform()
	}
	if os == "" {
		os = "Unknown OS"
	}
	if ua.Bot() {
		browser += " (bot)"
	}
	return strings.Join(strings.Fields(browser+" on "+os), " ")
}
