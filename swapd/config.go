package swapd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightninglabs/beamswap"
	"github.com/lightninglabs/beamswap/peer"
	"github.com/lightninglabs/beamswap/swap"
	"github.com/lightninglabs/beamswap/swapdb"
	"github.com/lightningnetwork/lnd/clock"
	"github.com/lightningnetwork/lnd/lncfg"
)

const (
	// DatabaseBackendBolt is the bbolt database backend.
	DatabaseBackendBolt = "bolt"

	// DatabaseBackendSqlite is the sqlite database backend.
	DatabaseBackendSqlite = "sqlite"

	// DatabaseBackendPostgres is the postgres database backend.
	DatabaseBackendPostgres = "postgres"

	defaultConfigFilename = "swapd.conf"
	defaultSqliteFilename = "swapd.db"
)

var (
	// SwapDirBase is the default main directory where swapd stores its
	// data.
	SwapDirBase = btcutil.AppDataDir("swapd", false)

	defaultNetwork     = "mainnet"
	defaultLogLevel    = "info"
	defaultLogDirname  = "logs"
	defaultLogFilename = "swapd.log"
	defaultLogDir      = filepath.Join(SwapDirBase, defaultLogDirname)
	defaultConfigFile  = filepath.Join(
		SwapDirBase, defaultNetwork, defaultConfigFilename,
	)

	defaultMaxLogFiles    = 3
	defaultMaxLogFileSize = 10

	defaultNatsAddress = "nats://127.0.0.1:4222"

	// DefaultRPCListen is the address the swap service listens on by
	// default.
	DefaultRPCListen = "localhost:11110"

	// ErrUnknownBackend is returned for an unsupported database backend.
	ErrUnknownBackend = errors.New("unknown database backend")
)

type lndConfig struct {
	Host        string `long:"host" description:"lnd instance rpc address"`
	MacaroonDir string `long:"macaroondir" description:"Path to the directory containing all the required lnd macaroons"`
	TLSPath     string `long:"tlspath" description:"Path to lnd tls certificate"`
}

type confsConfig struct {
	Beam     uint32 `long:"beam" description:"Confirmations required for BEAM kernels, 0 for the default"`
	Bitcoin  uint32 `long:"btc" description:"Confirmations required for bitcoin locks, 0 for the default"`
	Litecoin uint32 `long:"ltc" description:"Confirmations required for litecoin locks, 0 for the default"`
	Qtum     uint32 `long:"qtum" description:"Confirmations required for qtum locks, 0 for the default"`
}

type viewParameters struct{}

// Config is the configuration of the swap daemon.
type Config struct {
	ShowVersion bool   `long:"version" description:"Display version information and exit"`
	Network     string `long:"network" description:"network to run on" choice:"regtest" choice:"testnet" choice:"mainnet" choice:"simnet" choice:"signet"`

	SwapDir    string `long:"swapdir" description:"The directory for all of swapd's data."`
	ConfigFile string `long:"configfile" description:"Path to configuration file."`
	DataDir    string `long:"datadir" description:"Directory for the swap database."`

	DatabaseBackend string                 `long:"databasebackend" description:"The database backend to use for storing all swap related data." choice:"bolt" choice:"sqlite" choice:"postgres"`
	Sqlite          *swapdb.SqliteConfig   `group:"sqlite" namespace:"sqlite"`
	Postgres        *swapdb.PostgresConfig `group:"postgres" namespace:"postgres"`

	LogDir         string `long:"logdir" description:"Directory to log output."`
	MaxLogFiles    int    `long:"maxlogfiles" description:"Maximum logfiles to keep (0 for no rotation)"`
	MaxLogFileSize int    `long:"maxlogfilesize" description:"Maximum logfile size in MB"`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`

	TickInterval time.Duration `long:"tickinterval" description:"The interval in which all swaps are re-evaluated."`

	Confs *confsConfig `group:"confs" namespace:"confs"`

	RPCListen     string `long:"rpclisten" description:"Address to listen on for gRPC clients, empty to disable"`
	MetricsListen string `long:"metricslisten" description:"Address to serve prometheus metrics on, empty to disable"`

	Nats *peer.Config `group:"nats" namespace:"nats"`

	Lnd *lndConfig `group:"lnd" namespace:"lnd"`

	View viewParameters `command:"view" alias:"v" description:"View all swaps in the database. This command can only be executed when swapd is not running."`
}

// DefaultConfig returns all default values for the Config struct.
func DefaultConfig() Config {
	return Config{
		Network:         defaultNetwork,
		SwapDir:         SwapDirBase,
		ConfigFile:      defaultConfigFile,
		DataDir:         SwapDirBase,
		DatabaseBackend: DatabaseBackendBolt,
		Sqlite: &swapdb.SqliteConfig{
			DatabaseFileName: filepath.Join(
				SwapDirBase, defaultNetwork,
				defaultSqliteFilename,
			),
		},
		Postgres: &swapdb.PostgresConfig{
			Host:               "localhost",
			Port:               5432,
			MaxOpenConnections: 10,
		},
		LogDir:         defaultLogDir,
		MaxLogFiles:    defaultMaxLogFiles,
		MaxLogFileSize: defaultMaxLogFileSize,
		DebugLevel:     defaultLogLevel,
		TickInterval:   beamswap.DefaultTickInterval,
		Confs:          &confsConfig{},
		RPCListen:      DefaultRPCListen,
		Nats: &peer.Config{
			Address: defaultNatsAddress,
			Name:    beamswap.UserAgent(""),
		},
		Lnd: &lndConfig{
			Host: "localhost:10009",
		},
	}
}

// Validate cleans up paths in the config provided and validates it.
func Validate(cfg *Config) error {
	// Cleanup any paths before we use them.
	cfg.SwapDir = lncfg.CleanAndExpandPath(cfg.SwapDir)
	cfg.DataDir = lncfg.CleanAndExpandPath(cfg.DataDir)
	cfg.LogDir = lncfg.CleanAndExpandPath(cfg.LogDir)

	// Since our swap directory overrides our log/data dir values, make
	// sure that they are not set when swap dir is set. We fail hard here
	// rather than overwriting and potentially confusing the user.
	logDirSet := cfg.LogDir != defaultLogDir
	dataDirSet := cfg.DataDir != SwapDirBase
	swapDirSet := cfg.SwapDir != SwapDirBase

	if swapDirSet {
		if logDirSet {
			return fmt.Errorf("swapdir overwrites logdir, please " +
				"only set one value")
		}

		if dataDirSet {
			return fmt.Errorf("swapdir overwrites datadir, please " +
				"only set one value")
		}

		// Once we are satisfied that neither config value was set, we
		// replace them with our swap dir.
		cfg.DataDir = cfg.SwapDir
		cfg.LogDir = filepath.Join(cfg.SwapDir, defaultLogDirname)
	}

	// Append the network type to the data and log directory so they are
	// "namespaced" per network.
	cfg.DataDir = filepath.Join(cfg.DataDir, cfg.Network)
	cfg.LogDir = filepath.Join(cfg.LogDir, cfg.Network)

	// The default sqlite file follows the data dir.
	defaultSqlite := filepath.Join(
		SwapDirBase, defaultNetwork, defaultSqliteFilename,
	)
	if cfg.Sqlite.DatabaseFileName == defaultSqlite {
		cfg.Sqlite.DatabaseFileName = filepath.Join(
			cfg.DataDir, defaultSqliteFilename,
		)
	} else {
		cfg.Sqlite.DatabaseFileName = lncfg.CleanAndExpandPath(
			cfg.Sqlite.DatabaseFileName,
		)
	}

	switch cfg.DatabaseBackend {
	case DatabaseBackendBolt, DatabaseBackendSqlite,
		DatabaseBackendPostgres:

	default:
		return fmt.Errorf("%w: %v", ErrUnknownBackend,
			cfg.DatabaseBackend)
	}

	if cfg.TickInterval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v",
			cfg.TickInterval)
	}

	if cfg.MaxLogFiles < 0 || cfg.MaxLogFileSize <= 0 {
		return fmt.Errorf("invalid log rotation: %d files of %d MB",
			cfg.MaxLogFiles, cfg.MaxLogFileSize)
	}

	// If either of these directories do not exist, create them.
	if err := os.MkdirAll(cfg.DataDir, os.ModePerm); err != nil {
		return err
	}

	return os.MkdirAll(cfg.LogDir, os.ModePerm)
}

// requiredConfs returns the configured confirmation overrides of the
// foreign coins. Coins left at zero use their default.
func (c *confsConfig) requiredConfs() map[swap.Coin]uint32 {
	confs := make(map[swap.Coin]uint32)
	for coin, n := range map[swap.Coin]uint32{
		swap.CoinBitcoin:  c.Bitcoin,
		swap.CoinLitecoin: c.Litecoin,
		swap.CoinQtum:     c.Qtum,
	} {
		if n > 0 {
			confs[coin] = n
		}
	}

	return confs
}

// openStore opens the swap store of the configured backend.
func openStore(cfg *Config, clk clock.Clock) (swapdb.SwapStore, error) {
	switch cfg.DatabaseBackend {
	case DatabaseBackendBolt:
		store, err := swapdb.NewBoltSwapStore(cfg.DataDir)
		if err != nil {
			return nil, err
		}

		return store, nil

	case DatabaseBackendSqlite:
		log.Infof("Opening sqlite database at: %v",
			cfg.Sqlite.DatabaseFileName)

		store, err := swapdb.NewSqliteStore(cfg.Sqlite, clk)
		if err != nil {
			return nil, err
		}

		return store, nil

	case DatabaseBackendPostgres:
		store, err := swapdb.NewPostgresStore(cfg.Postgres, clk)
		if err != nil {
			return nil, err
		}

		return store, nil

	default:
		return nil, fmt.Errorf("%w: %v", ErrUnknownBackend,
			cfg.DatabaseBackend)
	}
}
