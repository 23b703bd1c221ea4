package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fractis/node/src/config"
	"github.com/fractis/node/src/fractis"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

var logDir string

//NewRunCmd returns the command that starts a fractis node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runFractis,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runFractis(cmd *cobra.Command, args []string) error {
	engine := fractis.NewFractis(_config)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Init(ctx); err != nil {
		_config.Logger().WithError(err).Error("Cannot initialize engine")
		return err
	}

	return engine.Run(ctx)
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {
	AddConfigFlags(cmd)

	cmd.Flags().StringVar(&logDir, "log-dir", "", "Also write logs to files in this directory, one per level")

	// Timers
	cmd.Flags().Duration("handshake-timeout", _config.HandshakeTimeout, "Deadline for setting up a new connection")
	cmd.Flags().Duration("dial-timeout", _config.DialTimeout, "Timeout of a single outbound dial")
	cmd.Flags().Duration("reconnect-delay", _config.ReconnectDelay, "Delay between attempts to reach a seed")
	cmd.Flags().Int("reconnect-attempts", _config.ReconnectAttempts, "Attempts made for each seed")
	cmd.Flags().Duration("sweep-interval", _config.SweepInterval, "Period of the disconnected peer sweep")

	// Consensus
	cmd.Flags().Duration("confirm-timeout", _config.ConfirmTimeout, "Timeout of a single validator confirmation")
	cmd.Flags().Int("confirm-concurrency", _config.ConfirmConcurrency, "Validators asked in parallel, 0 for all")

	// Service
	cmd.Flags().Bool("no-service", _config.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.ServiceAddr, "Listen IP:Port for HTTP service")
}

//AddConfigFlags adds the flags shared by every command reading the
//configuration
func AddConfigFlags(cmd *cobra.Command) {
	cmd.Flags().String("datadir", _config.DataDir, "Top-level directory for configuration and keys")
	cmd.Flags().String("log", _config.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("node-id", _config.NodeID, "Stable identifier of the node")

	// Network
	cmd.Flags().String("host", _config.Host, "Host the node listens on")
	cmd.Flags().Uint16P("port", "p", _config.Port, "Port the node listens on")
	cmd.Flags().Uint32("max-connections", _config.MaxConnections, "Maximum number of live peers")
	cmd.Flags().StringSlice("bootstrap-nodes", _config.BootstrapNodes, "Comma separated list of seed host:port")

	// Storage
	cmd.Flags().String("storage-path", _config.StoragePath, "Directory of the node databases")

	// Stake and consensus
	cmd.Flags().Uint64("min-stake", 0, "Minimum ledger balance required to run (required)")
	cmd.Flags().String("ledger-url", _config.LedgerURL, "JSON-RPC endpoint of the ledger")
	cmd.Flags().Uint64("consensus-timeout", _config.ConsensusTimeout, "Maximum transaction age, in milliseconds")
}

func loadConfig(cmd *cobra.Command, args []string) error {
	if err := bindFlagsLoadViper(cmd); err != nil {
		return err
	}

	logger, err := newLogger(_config.LogLevel, logDir)
	if err != nil {
		return err
	}
	_config.SetLogger(logger)

	logFields := logrus.Fields{
		"DataDir":          _config.DataDir,
		"NodeID":           _config.NodeID,
		"BindAddr":         _config.BindAddr(),
		"StoragePath":      _config.StoragePath,
		"MaxConnections":   _config.MaxConnections,
		"ConsensusTimeout": _config.ConsensusTimeout,
		"BootstrapNodes":   _config.BootstrapNodes,
		"LedgerURL":        _config.LedgerURL,
		"Validators":       len(_config.Validators),
		"NoService":        _config.NoService,
		"ServiceAddr":      _config.ServiceAddr,
		"LogLevel":         _config.LogLevel,
	}

	if _config.MinStake != nil {
		logFields["MinStake"] = *_config.MinStake
	}

	_config.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// min-stake has no default and is only taken from the command line when
	// it was given explicitly
	var bindErr error
	cmd.Flags().VisitAll(func(f *pflag.Flag) {
		if bindErr != nil || f.Name == "log-dir" {
			return
		}
		if f.Name == "min-stake" && !f.Changed {
			return
		}
		bindErr = viper.BindPFlag(f.Name, f)
	})
	if bindErr != nil {
		return bindErr
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/fractis.toml (.json, .yaml also work)
	viper.SetConfigName(config.DefaultConfigName)
	viper.AddConfigPath(_config.DataDir)

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Logger().Debugf("No config file found in: %s", _config.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// newLogger builds the process logger. When dir is set, every level from
// info up is also written to its own file in dir.
func newLogger(level, dir string) (*logrus.Logger, error) {
	logger := logrus.New()
	logger.Level = config.LogLevel(level)
	logger.Formatter = new(prefixed.TextFormatter)

	if dir == "" {
		return logger, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	pathMap := lfshook.PathMap{
		logrus.InfoLevel:  filepath.Join(dir, "fractis_info.log"),
		logrus.WarnLevel:  filepath.Join(dir, "fractis_warn.log"),
		logrus.ErrorLevel: filepath.Join(dir, "fractis_error.log"),
		logrus.FatalLevel: filepath.Join(dir, "fractis_error.log"),
		logrus.PanicLevel: filepath.Join(dir, "fractis_error.log"),
	}
	if logger.Level >= logrus.DebugLevel {
		pathMap[logrus.DebugLevel] = filepath.Join(dir, "fractis_debug.log")
	}

	logger.Hooks.Add(lfshook.NewHook(pathMap, &logrus.TextFormatter{}))

	return logger, nil
}
