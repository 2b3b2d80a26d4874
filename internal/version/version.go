// ABOUTME: Version information for micfeed
// ABOUTME: Shown in usage, the TUI header, the status endpoint and mDNS TXT records
package version

const (
	Version      = "0.1.0"
	Product      = "micfeed"
	Manufacturer = "Virtual Audio Driver"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
