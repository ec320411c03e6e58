package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckConfigCompatibility(t *testing.T) {
	tests := []struct {
		name          string
		serverVersion string
		configVersion string
		expectError   bool
		errorContains string
	}{
		{
			name:          "exact match",
			serverVersion: "1.2.0",
			configVersion: "1.2.0",
			expectError:   false,
		},
		{
			name:          "patch differs",
			serverVersion: "1.2.1",
			configVersion: "1.2.7",
			expectError:   false,
		},
		{
			name:          "older config minor",
			serverVersion: "1.3.0",
			configVersion: "1.2.4",
			expectError:   false,
		},
		{
			name:          "v prefix on both",
			serverVersion: "v0.3.0",
			configVersion: "v0.3.0",
			expectError:   false,
		},
		{
			name:          "empty config version",
			serverVersion: "1.2.0",
			configVersion: "",
			expectError:   false,
		},
		{
			name:          "development server",
			serverVersion: "main",
			configVersion: "9.9.9",
			expectError:   false,
		},
		{
			name:          "newer config minor",
			serverVersion: "1.2.0",
			configVersion: "1.3.0",
			expectError:   true,
			errorContains: "minor version mismatch",
		},
		{
			name:          "major differs",
			serverVersion: "2.0.0",
			configVersion: "1.2.0",
			expectError:   true,
			errorContains: "major version mismatch",
		},
		{
			name:          "invalid config version",
			serverVersion: "1.2.0",
			configVersion: "not-a-version",
			expectError:   true,
			errorContains: "invalid config version",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckConfigCompatibility(tt.serverVersion, tt.configVersion)
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGetVersion(t *testing.T) {
	assert.Equal(t, Version, GetVersion())
}
