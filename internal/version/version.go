// ABOUTME: Version information for nigamp
// ABOUTME: Reported in logs, the TUI header and the probe tool
package version

const (
	// Version is the software version
	Version = "0.3.0"

	// Product is the product name
	Product = "nigamp"

	// Manufacturer identifies the maintainers
	Manufacturer = "nigamp contributors"
)

// String returns "product version"
func String() string {
	return Product + " " + Version
}
