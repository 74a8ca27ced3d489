package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/csmcal/wf2wf/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NotNil(t, cfg)
	assert.False(t, cfg.NoPrompt)
	assert.Equal(t, 300*time.Second, cfg.DryRunTimeout)
	assert.Empty(t, cfg.FailOnLoss)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(LoaderOptions{})
	require.NoError(t, err)
	assert.Equal(t, 300*time.Second, cfg.DryRunTimeout)
}

func TestLoad_EnvOverride(t *testing.T) {
	t.Setenv("WF2WF_NO_PROMPT", "1")
	t.Setenv("WF2WF_DRYRUN_TIMEOUT", "60")

	cfg, err := Load(LoaderOptions{})
	require.NoError(t, err)
	assert.True(t, cfg.NoPrompt)
	assert.Equal(t, 60*time.Second, cfg.DryRunTimeout)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "config.yaml", "no_prompt: true\nfail_on_loss: warn\n")

	cfg, err := Load(LoaderOptions{ConfigFlag: path})
	require.NoError(t, err)
	assert.True(t, cfg.NoPrompt)
	assert.Equal(t, "warn", cfg.FailOnLoss)
}

func TestLoad_EnvBeatsFile(t *testing.T) {
	dir := t.TempDir()
	path := testutil.WriteFile(t, dir, "config.yaml", "fail_on_loss: info\n")
	t.Setenv("WF2WF_FAIL_ON_LOSS", "error")

	cfg, err := Load(LoaderOptions{ConfigFlag: path})
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.FailOnLoss)
}

func TestLoad_ExplicitMissingFileFails(t *testing.T) {
	_, err := Load(LoaderOptions{ConfigFlag: filepath.Join(t.TempDir(), "absent.yaml")})
	assert.Error(t, err)
}

func TestLoad_InvalidFailOnLoss(t *testing.T) {
	t.Setenv("WF2WF_FAIL_ON_LOSS", "catastrophic")

	_, err := Load(LoaderOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail_on_loss")
}
