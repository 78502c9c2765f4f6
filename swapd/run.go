package swapd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jessevdk/go-flags"
	"github.com/lightninglabs/beamswap"
	"github.com/lightningnetwork/lnd/build"
	"github.com/lightningnetwork/lnd/lncfg"
	"github.com/lightningnetwork/lnd/signal"
)

// Run starts the swap daemon and blocks until it's shut down again.
func Run(rpcCfg RunConfig) error {
	config := DefaultConfig()

	// Parse command line flags.
	parser := flags.NewParser(&config, flags.Default)
	parser.SubcommandsOptional = true

	_, err := parser.Parse()
	var flagErr *flags.Error
	if errors.As(err, &flagErr) && flagErr.Type == flags.ErrHelp {
		return nil
	}
	if err != nil {
		return err
	}

	// Parse ini file.
	swapDir := lncfg.CleanAndExpandPath(config.SwapDir)
	configFile := getConfigPath(config, swapDir)

	if err := flags.IniParse(configFile, &config); err != nil {
		// If it's a parsing related error, then we'll return
		// immediately, otherwise we can proceed as possibly the config
		// file doesn't exist which is OK.
		var iniErr *flags.IniError
		if errors.As(err, &iniErr) {
			return err
		}
	}

	// Parse command line flags again to restore flags overwritten by ini
	// parse.
	_, err = parser.Parse()
	if err != nil {
		return err
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	if config.ShowVersion {
		fmt.Println(appName, "version", beamswap.Version())
		os.Exit(0)
	}

	SetupLoggers(logWriter)

	// Special show command to list supported subsystems and exit.
	if config.DebugLevel == "show" {
		fmt.Printf("Supported subsystems: %v\n",
			logWriter.SupportedSubsystems())
		os.Exit(0)
	}

	// Validate our config before we proceed.
	if err := Validate(&config); err != nil {
		return err
	}

	// Initialize logging at the default logging level.
	err = logWriter.InitLogRotator(
		filepath.Join(config.LogDir, defaultLogFilename),
		config.MaxLogFileSize, config.MaxLogFiles,
	)
	if err != nil {
		return err
	}
	defer logWriter.Close()

	err = build.ParseAndSetDebugLevels(config.DebugLevel, logWriter)
	if err != nil {
		return err
	}

	// Print the version before executing either primary directive.
	log.Infof("Version: %v", beamswap.Version())

	// Execute command.
	if parser.Active != nil {
		if parser.Active.Name == "view" {
			return View(&config, os.Stdout)
		}

		return fmt.Errorf("unimplemented command %v",
			parser.Active.Name)
	}

	// Start listening for signal interrupts so that the daemon is shut
	// down cleanly.
	interceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	daemon := New(&config, rpcCfg)
	if err := daemon.Start(); err != nil {
		return err
	}

	select {
	case <-interceptor.ShutdownChannel():
		log.Infof("Received SIGINT (Ctrl+C).")
		daemon.Stop()

		// The above stop will return immediately. But we'll be
		// notified on the error channel once the process is complete.
		return <-daemon.ErrChan

	case err := <-daemon.ErrChan:
		return err
	}
}

// getConfigPath gets our config path based on the values that are set in
// our config.
func getConfigPath(cfg Config, swapDir string) string {
	// If the config file path provided by the user is set, then we just
	// use this value.
	if cfg.ConfigFile != defaultConfigFile {
		return lncfg.CleanAndExpandPath(cfg.ConfigFile)
	}

	// If the user has set a swap directory that is different to the
	// default we will use this swap directory as the location of our
	// config file. We do not namespace by network, because this is a
	// custom swap dir.
	if swapDir != SwapDirBase {
		return filepath.Join(swapDir, defaultConfigFilename)
	}

	// Otherwise, we are using our default swap directory, and the user
	// did not set a config file path. We use our default swap dir,
	// namespaced by network.
	return filepath.Join(swapDir, cfg.Network, defaultConfigFilename)
}
