// ABOUTME: Version information for tonestream binaries
// ABOUTME: Reported in logs, /status and the mDNS TXT record
package version

const (
	Version      = "0.3.0"
	Product      = "tonestream"
	Manufacturer = "Resonate Protocol"
)

// String returns "product/version"
func String() string {
	return Product + "/" + Version
}
