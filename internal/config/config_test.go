package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "scan-console.internal", cfg.ConsoleHost)
	assert.Equal(t, 8443, cfg.ConsolePort)
	assert.Equal(t, "scanner-engine", cfg.ContainerName)
	assert.Equal(t, "/var/lib/scanner", cfg.DataDir)
	assert.Equal(t, "/opt/scanner/nsc.sh", cfg.ScannerBinPath)
	assert.False(t, cfg.Debug)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SCANNERCTL_CONSOLE_HOST", "console.example.com")
	t.Setenv("SCANNERCTL_CONSOLE_PORT", "9443")
	t.Setenv("SCANNERCTL_IMAGE", "internal.example.com/scanner:2.1")
	t.Setenv("SCANNERCTL_CONTAINER", "scanner-two")
	t.Setenv("SCANNERCTL_DEBUG", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "console.example.com", cfg.ConsoleHost)
	assert.Equal(t, 9443, cfg.ConsolePort)
	assert.Equal(t, "internal.example.com/scanner:2.1", cfg.Image)
	assert.Equal(t, "scanner-two", cfg.ContainerName)
	assert.True(t, cfg.Debug)
}

func TestLoad_InvalidPort(t *testing.T) {
	for _, bad := range []string{"abc", "0", "70000", "-1"} {
		t.Setenv("SCANNERCTL_CONSOLE_PORT", bad)
		_, err := Load()
		assert.Error(t, err, "port %q should be rejected", bad)
	}
}

func TestContainerSpec(t *testing.T) {
	cfg := DefaultConfig()
	spec := cfg.ContainerSpec()

	assert.Equal(t, cfg.Image, spec.Image)
	assert.Equal(t, cfg.ContainerName, spec.Name)
	assert.Equal(t, "unless-stopped", spec.RestartPolicy)
	assert.Equal(t, cfg.HostPort, spec.Port.HostPort)
	assert.Equal(t, cfg.ContainerPort, spec.Port.ContainerPort)
	assert.Equal(t, cfg.DataDir, spec.DataDir)
	assert.Equal(t, cfg.MountPath, spec.MountPath)
}
