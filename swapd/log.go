package swapd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/btcsuite/btclog/v2"
	"github.com/jrick/logrotate/rotator"
	"github.com/lightninglabs/beamswap"
	"github.com/lightninglabs/beamswap/atomicswap"
	"github.com/lightninglabs/beamswap/chainclient"
	"github.com/lightninglabs/beamswap/fsm"
	"github.com/lightninglabs/beamswap/notifications"
	"github.com/lightninglabs/beamswap/peer"
	"github.com/lightninglabs/beamswap/swapdb"
	"github.com/lightninglabs/lndclient"
	"github.com/lightningnetwork/lnd/build"
)

// Subsystem defines the sub system name of this package.
const Subsystem = "SWPD"

var (
	logWriter = newRotatingLogWriter(os.Stdout)
	log       = logWriter.GenSubLogger(Subsystem)
)

// SetupLoggers registers the loggers of all swap subsystems with the log
// writer.
func SetupLoggers(root *RotatingLogWriter) {
	log = root.GenSubLogger(Subsystem)
	root.RegisterSubLogger(Subsystem, log)

	root.AddSubLogger(beamswap.Subsystem, beamswap.UseLogger)
	root.AddSubLogger(atomicswap.Subsystem, atomicswap.UseLogger)
	root.AddSubLogger(fsm.Subsystem, fsm.UseLogger)
	root.AddSubLogger(swapdb.Subsystem, swapdb.UseLogger)
	root.AddSubLogger(notifications.Subsystem, notifications.UseLogger)
	root.AddSubLogger(chainclient.Subsystem, chainclient.UseLogger)
	root.AddSubLogger(peer.Subsystem, peer.UseLogger)
	root.AddSubLogger("LNDC", lndclient.UseLogger)
}

// RotatingLogWriter writes log lines to its output and, once the rotator is
// initialized, to a size limited rotating log file. It keeps the loggers of
// all subsystems so that their levels can be changed.
type RotatingLogWriter struct {
	out io.Writer

	mu         sync.Mutex
	rotator    *rotator.Rotator
	pipe       *io.PipeWriter
	subLoggers build.SubLoggers
}

var _ build.LeveledSubLogger = (*RotatingLogWriter)(nil)

func newRotatingLogWriter(out io.Writer) *RotatingLogWriter {
	return &RotatingLogWriter{
		out:        out,
		subLoggers: make(build.SubLoggers),
	}
}

// InitLogRotator starts writing to the log file, rolling it over once it
// exceeds maxLogFileSize megabytes and keeping maxLogFiles old files.
func (r *RotatingLogWriter) InitLogRotator(logFile string, maxLogFileSize,
	maxLogFiles int) error {

	logDir, _ := filepath.Split(logFile)
	if err := os.MkdirAll(logDir, 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	rot, err := rotator.New(
		logFile, int64(maxLogFileSize*1024), false, maxLogFiles,
	)
	if err != nil {
		return fmt.Errorf("failed to create file rotator: %w", err)
	}

	// The rotator reads from a pipe so that log lines are written in the
	// order they were logged.
	pr, pw := io.Pipe()
	go func() {
		if err := rot.Run(pr); err != nil {
			fmt.Fprintf(os.Stderr, "failed to run file rotator: "+
				"%v\n", err)
		}
	}()

	r.mu.Lock()
	r.rotator = rot
	r.pipe = pw
	r.mu.Unlock()

	return nil
}

// Write writes a log line to the output and the log file.
func (r *RotatingLogWriter) Write(b []byte) (int, error) {
	r.mu.Lock()
	pipe := r.pipe
	r.mu.Unlock()

	if pipe != nil {
		if _, err := pipe.Write(b); err != nil {
			return 0, err
		}
	}

	return r.out.Write(b)
}

// Close closes the log file.
func (r *RotatingLogWriter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rotator == nil {
		return nil
	}

	err := r.pipe.Close()
	r.rotator.Close()
	r.rotator = nil
	r.pipe = nil

	return err
}

// GenSubLogger creates a logger for a subsystem that writes through r.
func (r *RotatingLogWriter) GenSubLogger(tag string) btclog.Logger {
	handler := btclog.NewDefaultHandler(r).SubSystem(tag)
	return btclog.NewSLogger(handler)
}

// RegisterSubLogger makes the logger of a subsystem configurable.
func (r *RotatingLogWriter) RegisterSubLogger(subsystem string,
	logger btclog.Logger) {

	r.mu.Lock()
	defer r.mu.Unlock()

	r.subLoggers[subsystem] = logger
}

// AddSubLogger creates and registers the logger of a subsystem and hands it
// to the subsystem.
func (r *RotatingLogWriter) AddSubLogger(subsystem string,
	useLoggers ...func(btclog.Logger)) {

	logger := r.GenSubLogger(subsystem)
	r.RegisterSubLogger(subsystem, logger)

	for _, useLogger := range useLoggers {
		useLogger(logger)
	}
}

// SubLoggers returns all registered subsystem loggers.
func (r *RotatingLogWriter) SubLoggers() build.SubLoggers {
	r.mu.Lock()
	defer r.mu.Unlock()

	loggers := make(build.SubLoggers, len(r.subLoggers))
	for subsystem, logger := range r.subLoggers {
		loggers[subsystem] = logger
	}

	return loggers
}

// SupportedSubsystems returns the sorted names of the registered
// subsystems.
func (r *RotatingLogWriter) SupportedSubsystems() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	subsystems := make([]string, 0, len(r.subLoggers))
	for subsystem := range r.subLoggers {
		subsystems = append(subsystems, subsystem)
	}
	sort.Strings(subsystems)

	return subsystems
}

// SetLogLevel sets the level of one subsystem. Unknown subsystems and levels
// are ignored.
func (r *RotatingLogWriter) SetLogLevel(subsystemID string, logLevel string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logger, ok := r.subLoggers[subsystemID]
	if !ok {
		return
	}

	level, ok := btclog.LevelFromString(logLevel)
	if !ok {
		return
	}
	logger.SetLevel(level)
}

// SetLogLevels sets the level of all subsystems.
func (r *RotatingLogWriter) SetLogLevels(logLevel string) {
	for _, subsystem := range r.SupportedSubsystems() {
		r.SetLogLevel(subsystem, logLevel)
	}
}
