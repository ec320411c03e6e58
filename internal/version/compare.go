package version

import (
	"fmt"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// CheckConfigCompatibility checks if a configuration file written for configVersion can be
// loaded by a server at serverVersion. Returns nil if compatible, error with details if not.
//
// Compatibility Rules:
//   - An empty config version is accepted (files that predate versioning)
//   - If either version is "main" (development build), compatibility check is skipped
//   - Major versions must match exactly
//   - The config minor version must not be newer than the server minor version
//   - Patch versions can differ
//
// Examples:
//   - Server 1.2.0, Config 1.2.0 -> OK (exact match)
//   - Server 1.3.0, Config 1.2.4 -> OK (older config minor)
//   - Server 1.2.0, Config 1.3.0 -> ERROR (config needs a newer server)
//   - Server 2.0.0, Config 1.2.0 -> ERROR (major differs)
func CheckConfigCompatibility(serverVersion, configVersion string) error {
	// Strip 'v' prefix if present for consistency
	serverVersion = strings.TrimPrefix(serverVersion, "v")
	configVersion = strings.TrimPrefix(configVersion, "v")

	if configVersion == "" {
		return nil
	}

	// Skip version check for "main" (development builds)
	if serverVersion == "main" || configVersion == "main" {
		return nil
	}

	serverSemver, err := semver.NewVersion(serverVersion)
	if err != nil {
		return fmt.Errorf("invalid server version '%s': %w", serverVersion, err)
	}

	configSemver, err := semver.NewVersion(configVersion)
	if err != nil {
		return fmt.Errorf("invalid config version '%s': %w", configVersion, err)
	}

	if serverSemver.Major() != configSemver.Major() {
		return fmt.Errorf("major version mismatch: server is %d.x.x but config requires %d.x.x",
			serverSemver.Major(), configSemver.Major())
	}

	if configSemver.Minor() > serverSemver.Minor() {
		return fmt.Errorf("minor version mismatch: server is %d.%d.x but config requires %d.%d.x",
			serverSemver.Major(), serverSemver.Minor(),
			configSemver.Major(), configSemver.Minor())
	}

	return nil
}
