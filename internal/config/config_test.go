// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
	return path
}

func TestLoadAppliesDefaultsWithNoFileOrEnv(t *testing.T) {
	loader := NewLoader("", Flags{})
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.BindAddress)
	require.Equal(t, 120, cfg.RateLimitRPS)
	require.Equal(t, "./data/flows.db", cfg.FlowStorePath)
	require.NotEmpty(t, cfg.SAPAddresses)
	require.Equal(t, 90*time.Second, cfg.DiscoveryStreamTTL)
	require.Equal(t, ":8554", cfg.RTSPAddr)
	require.False(t, cfg.AuthEnabled)
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "bindAddress: \":9090\"\nrateLimitRPS: 60\nflowStorePath: /var/lib/strom/flows.db\n")

	loader := NewLoader(path, Flags{})
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.BindAddress)
	require.Equal(t, 60, cfg.RateLimitRPS)
	require.Equal(t, "/var/lib/strom/flows.db", cfg.FlowStorePath)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "bindAddress: \":9090\"\n")

	t.Setenv(envBindAddress, ":7070")
	loader := NewLoader(path, Flags{})
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, ":7070", cfg.BindAddress)
}

func TestLoadFlagOverridesEverything(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "bindAddress: \":9090\"\n")
	t.Setenv(envBindAddress, ":7070")

	flagAddr := ":6060"
	loader := NewLoader(path, Flags{BindAddress: &flagAddr})
	cfg, err := loader.Load()
	require.NoError(t, err)

	require.Equal(t, ":6060", cfg.BindAddress)
}

func TestLoadRejectsUnknownYAMLFields(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "bindAdress: \":9090\"\n") // typo'd key

	loader := NewLoader(path, Flags{})
	_, err := loader.Load()
	require.Error(t, err)
}

func TestLoadRejectsAuthEnabledWithoutToken(t *testing.T) {
	dir := t.TempDir()
	path := writeConfigFile(t, dir, "authEnabled: true\n")

	loader := NewLoader(path, Flags{})
	_, err := loader.Load()
	require.Error(t, err)
}

func TestValidateRejectsEmptySAPAddresses(t *testing.T) {
	cfg := AppConfig{
		BindAddress:        ":8080",
		FlowStorePath:      "flows.db",
		DiscoveryStreamTTL: time.Second,
	}
	err := Validate(cfg)
	require.Error(t, err)
}

func TestStringRedactsAuthToken(t *testing.T) {
	cfg := AppConfig{AuthToken: "super-secret"}
	require.NotContains(t, cfg.String(), "super-secret")
}
