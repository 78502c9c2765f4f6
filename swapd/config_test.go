package swapd

import (
	"path/filepath"
	"testing"

	"github.com/lightninglabs/beamswap/swap"
	"github.com/stretchr/testify/require"
)

// TestValidate tests the path handling and the checks of the config.
func TestValidate(t *testing.T) {
	dir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Network = "regtest"
	cfg.SwapDir = dir
	require.NoError(t, Validate(&cfg))

	require.Equal(t, filepath.Join(dir, "regtest"), cfg.DataDir)
	require.Equal(
		t, filepath.Join(dir, defaultLogDirname, "regtest"), cfg.LogDir,
	)
	require.DirExists(t, cfg.DataDir)
	require.DirExists(t, cfg.LogDir)
	require.Equal(
		t, filepath.Join(cfg.DataDir, defaultSqliteFilename),
		cfg.Sqlite.DatabaseFileName,
	)

	// The swap dir can't be combined with a custom log dir.
	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.LogDir = filepath.Join(dir, "other")
	require.Error(t, Validate(&cfg))

	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.DatabaseBackend = "mongo"
	require.ErrorIs(t, Validate(&cfg), ErrUnknownBackend)

	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.TickInterval = 0
	require.Error(t, Validate(&cfg))

	// An explicit sqlite file is kept.
	dbFile := filepath.Join(dir, "custom", "swaps.db")
	cfg = DefaultConfig()
	cfg.SwapDir = dir
	cfg.Sqlite.DatabaseFileName = dbFile
	require.NoError(t, Validate(&cfg))
	require.Equal(t, dbFile, cfg.Sqlite.DatabaseFileName)
}

// TestRequiredConfs tests that only configured coins override their default.
func TestRequiredConfs(t *testing.T) {
	confs := &confsConfig{}
	require.Empty(t, confs.requiredConfs())

	confs = &confsConfig{
		Beam:    3,
		Bitcoin: 2,
		Qtum:    20,
	}
	require.Equal(t, map[swap.Coin]uint32{
		swap.CoinBitcoin: 2,
		swap.CoinQtum:    20,
	}, confs.requiredConfs())
}

// TestGetConfigPath tests where the config file is looked up.
func TestGetConfigPath(t *testing.T) {
	cfg := DefaultConfig()
	require.Equal(
		t, defaultConfigFile, getConfigPath(cfg, SwapDirBase),
	)

	require.Equal(
		t, filepath.Join("/tmp/swap", defaultConfigFilename),
		getConfigPath(cfg, "/tmp/swap"),
	)

	cfg.ConfigFile = "/etc/swapd.conf"
	require.Equal(t, "/etc/swapd.conf", getConfigPath(cfg, SwapDirBase))
}
