package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func isolated(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
}

func TestDefaults(t *testing.T) {
	isolated(t)
	cfg, err := Load(New(""))
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8001/api", cfg.APIURL)
	assert.Equal(t, 120*time.Second, cfg.RequestTimeout)
	assert.Equal(t, 30*time.Second, cfg.PollInterval)
	assert.Equal(t, "qdrant", cfg.StatusDependency)
	assert.Equal(t, "Vector Search", cfg.StatusLabel)
	assert.Equal(t, "pspd-guardian-help-dev.cbp.dhs.gov", cfg.HelpHost)
	assert.True(t, cfg.AltScreen)
	assert.False(t, cfg.ResumeLatest)
	assert.Equal(t, "127.0.0.1:8001", cfg.MockAddr)
}

func TestEnvOverridesFile(t *testing.T) {
	isolated(t)
	require.NoError(t, os.WriteFile("guardian.yaml", []byte(
		"api_url: http://file:9000/api/\npoll_interval: 45s\nhelp_host: https://docs.example.org/\n"), 0o600))
	t.Setenv("GUARDIAN_API_URL", "http://env:9100/api")

	cfg, err := Load(New(""))
	require.NoError(t, err)
	assert.Equal(t, "http://env:9100/api", cfg.APIURL)
	assert.Equal(t, 45*time.Second, cfg.PollInterval)
	assert.Equal(t, "docs.example.org", cfg.HelpHost)
}

func TestExplicitConfigFile(t *testing.T) {
	isolated(t)
	path := filepath.Join(t.TempDir(), "custom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("resume_latest: true\nsession_id: \" abc \"\n"), 0o600))

	cfg, err := Load(New(path))
	require.NoError(t, err)
	assert.True(t, cfg.ResumeLatest)
	assert.Equal(t, "abc", cfg.SessionID)
}

func TestMissingExplicitFileFails(t *testing.T) {
	isolated(t)
	_, err := Load(New(filepath.Join(t.TempDir(), "nope.yaml")))
	assert.Error(t, err)
}

func TestFlagsWin(t *testing.T) {
	isolated(t)
	t.Setenv("GUARDIAN_POLL_INTERVAL", "40s")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().String("api-url", "", "")
	cmd.Flags().Duration("poll-interval", 0, "")
	cmd.Flags().Bool("alt-screen", true, "")
	require.NoError(t, cmd.Flags().Parse([]string{"--poll-interval=2m", "--alt-screen=false"}))

	v := New("")
	require.NoError(t, BindFlags(v, cmd))
	cfg, err := Load(v)
	require.NoError(t, err)
	assert.Equal(t, 2*time.Minute, cfg.PollInterval)
	assert.False(t, cfg.AltScreen)
	assert.Equal(t, "http://localhost:8001/api", cfg.APIURL, "unset flag falls through to defaults")
}

func TestClamping(t *testing.T) {
	isolated(t)
	t.Setenv("GUARDIAN_POLL_INTERVAL", "10ms")
	t.Setenv("GUARDIAN_REQUEST_TIMEOUT", "3h")

	cfg, err := Load(New(""))
	require.NoError(t, err)
	assert.Equal(t, time.Second, cfg.PollInterval)
	assert.Equal(t, 10*time.Minute, cfg.RequestTimeout)
}

func TestInvalidAPIURL(t *testing.T) {
	isolated(t)
	t.Setenv("GUARDIAN_API_URL", "localhost:8001")
	_, err := Load(New(""))
	assert.ErrorContains(t, err, "invalid api_url")
}

func TestLoadDotEnv(t *testing.T) {
	isolated(t)
	require.NoError(t, os.WriteFile(".env", []byte("GUARDIAN_STATUS_LABEL=Search Index\n"), 0o600))
	t.Setenv("GUARDIAN_STATUS_LABEL", "")
	os.Unsetenv("GUARDIAN_STATUS_LABEL")

	require.NoError(t, LoadDotEnv())
	require.NoError(t, LoadDotEnv("missing.env"))
	cfg, err := Load(New(""))
	require.NoError(t, err)
	assert.Equal(t, "Search Index", cfg.StatusLabel)
}

func TestYAML(t *testing.T) {
	isolated(t)
	cfg, err := Load(New(""))
	require.NoError(t, err)

	out, err := cfg.YAML()
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, yaml.Unmarshal(out, &decoded))
	assert.Equal(t, "2m0s", decoded["request_timeout"])
	assert.Equal(t, "30s", decoded["poll_interval"])
	assert.Equal(t, "http://localhost:8001/api", decoded["api_url"])
	assert.Equal(t, true, decoded["alt_screen"])
}
