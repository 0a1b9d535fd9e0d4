package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HORNET-Storage/hornet-gatekeeper/lib/types"
)

func TestPolicyFromConfig(t *testing.T) {
	owner := strings.Repeat("ab", 32)
	cfg := &types.Config{Policy: types.PolicyConfig{
		Owner:                 strings.ToUpper(owner),
		FollowsPass:           true,
		ProofOfWorkEnabled:    true,
		ProofOfWorkDifficulty: 16,
	}}

	p, err := PolicyFromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, owner, p.RelayOwner)
	assert.True(t, p.FollowsPass)
	assert.True(t, p.ProofOfWorkEnabled)
	assert.Equal(t, 16, p.ProofOfWorkDifficulty)

	cfg.Policy.Owner = "not a key"
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)

	cfg.Policy.Owner = owner
	cfg.Policy.ProofOfWorkDifficulty = -3
	_, err = PolicyFromConfig(cfg)
	assert.Error(t, err)
}

func TestTTLDefaults(t *testing.T) {
	cfg := &types.Config{}
	assert.Equal(t, 24*time.Hour, DuplicateTTL(cfg))
	assert.Equal(t, 7*24*time.Hour, AcceptedTTL(cfg))

	cfg.Cache.DuplicateTTLSecs = 60
	cfg.Cache.AcceptedTTLSecs = 120
	assert.Equal(t, time.Minute, DuplicateTTL(cfg))
	assert.Equal(t, 2*time.Minute, AcceptedTTL(cfg))
}

func TestInitConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() {
		os.Chdir(wd)
		viper.Reset()
	})

	viper.Reset()
	require.NoError(t, InitConfig())

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)

	cfg, err := GetConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Cache.Backend)
	assert.Equal(t, 86400, cfg.Cache.DuplicateTTLSecs)
	assert.Equal(t, 604800, cfg.Cache.AcceptedTTLSecs)
	assert.Equal(t, 500, cfg.Store.MaxLimit)
	assert.True(t, cfg.Policy.FollowsPass)
	assert.Equal(t, []int{1, 9, 11, 13}, cfg.Relay.SupportedNIPs)
}
