package commands

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/mosaicnetworks/overlay/src/config"
	"github.com/mosaicnetworks/overlay/src/node"
	"github.com/mosaicnetworks/overlay/src/service"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

//NewRunCmd returns the command that starts an overlay node
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run",
		Short:   "Run node",
		PreRunE: loadConfig,
		RunE:    runOverlay,
	}
	AddRunFlags(cmd)
	return cmd
}

/*******************************************************************************
* RUN
*******************************************************************************/

func runOverlay(cmd *cobra.Command, args []string) error {
	logger := _config.Overlay.Logger()

	n := node.NewNode(&_config.Overlay)

	if err := n.Init(); err != nil {
		logger.WithError(err).Error("Cannot initialize node")
		return err
	}

	var srv *service.Service
	if !_config.Overlay.NoService {
		srv = service.NewService(_config.Overlay.ServiceAddr, n, logger)
		go srv.Serve()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.WithField("signal", sig).Info("Shutting down")
		if srv != nil {
			srv.Close()
		}
		n.Shutdown()
	}()

	n.Run()

	return nil
}

/*******************************************************************************
* CONFIG
*******************************************************************************/

//AddRunFlags adds flags to the Run command
func AddRunFlags(cmd *cobra.Command) {

	cmd.Flags().String("datadir", _config.Overlay.DataDir, "Top-level directory for configuration and data")
	cmd.Flags().String("log", _config.Overlay.LogLevel, "debug, info, warn, error, fatal, panic")
	cmd.Flags().String("log-file", _config.LogFile, "Also write logs to this file")
	cmd.Flags().String("moniker", _config.Overlay.Moniker, "Optional name")

	// Network
	cmd.Flags().StringP("listen", "l", _config.Overlay.BindAddr, "Listen IP:Port for overlay node")
	cmd.Flags().StringP("advertise", "a", _config.Overlay.AdvertiseAddr, "Advertise IP:Port for overlay node")
	cmd.Flags().StringSlice("seeds", _config.Overlay.Seeds, "Comma-separated IP:Port of nodes to connect to at startup")
	cmd.Flags().Int("target-peers", _config.Overlay.TargetPeers, "Number of connections to maintain")
	cmd.Flags().Duration("maintenance", _config.Overlay.MaintenanceInterval, "Time between connection maintenance rounds")
	cmd.Flags().DurationP("timeout", "t", _config.Overlay.DialTimeout, "TCP dial timeout")
	cmd.Flags().Duration("write-timeout", _config.Overlay.WriteTimeout, "Timeout for writing one frame")
	cmd.Flags().Float64("accept-rate", _config.Overlay.AcceptRate, "Inbound connections accepted per second (0 for unlimited)")
	cmd.Flags().Int("accept-burst", _config.Overlay.AcceptBurst, "Inbound connections accepted at once")
	cmd.Flags().Int("max-frame-size", _config.Overlay.MaxFrameSize, "Largest frame sent or received, in bytes")
	cmd.Flags().Int("write-queue", _config.Overlay.WriteQueue, "Frames queued per connection before the peer is dropped")

	// Herder
	cmd.Flags().Int("max-pending-txs", _config.Overlay.MaxPendingTxs, "Size of the pending transaction pool")
	cmd.Flags().Uint64("flood-keep-slots", _config.Overlay.FloodKeepSlots, "Slots of flood records kept below the highest seen")

	// Service
	cmd.Flags().Bool("no-service", _config.Overlay.NoService, "Disable HTTP service")
	cmd.Flags().StringP("service-listen", "s", _config.Overlay.ServiceAddr, "Listen IP:Port for HTTP service")

	// Store
	cmd.Flags().Bool("store", _config.Overlay.Store, "Use badgerDB instead of in-mem DB for known peers")
	cmd.Flags().String("db", _config.Overlay.DatabaseDir, "Dabatabase directory")
}

func loadConfig(cmd *cobra.Command, args []string) error {

	err := bindFlagsLoadViper(cmd)
	if err != nil {
		return err
	}

	// If --datadir was explicitely set, but not --db, this will update the
	// default database dir to be inside the new datadir
	_config.Overlay.SetDataDir(_config.Overlay.DataDir)

	// the config file may have changed the log level after the logger was
	// created
	_config.Overlay.Logger().Logger.Level = config.LogLevel(_config.Overlay.LogLevel)

	if _config.LogFile != "" {
		addFileHook(_config.Overlay.Logger().Logger, _config.LogFile)
	}

	logFields := logrus.Fields{
		"overlay.DataDir":             _config.Overlay.DataDir,
		"overlay.BindAddr":            _config.Overlay.BindAddr,
		"overlay.AdvertiseAddr":       _config.Overlay.AdvertiseAddr,
		"overlay.Seeds":               _config.Overlay.Seeds,
		"overlay.TargetPeers":         _config.Overlay.TargetPeers,
		"overlay.MaintenanceInterval": _config.Overlay.MaintenanceInterval,
		"overlay.DialTimeout":         _config.Overlay.DialTimeout,
		"overlay.AcceptRate":          _config.Overlay.AcceptRate,
		"overlay.MaxPendingTxs":       _config.Overlay.MaxPendingTxs,
		"overlay.NoService":           _config.Overlay.NoService,
		"overlay.ServiceAddr":         _config.Overlay.ServiceAddr,
		"overlay.Store":               _config.Overlay.Store,
		"overlay.LogLevel":            _config.Overlay.LogLevel,
		"overlay.Moniker":             _config.Overlay.Moniker,
		"LogFile":                     _config.LogFile,
	}

	if _config.Overlay.Store {
		logFields["overlay.DatabaseDir"] = _config.Overlay.DatabaseDir
	}

	_config.Overlay.Logger().WithFields(logFields).Debug("RUN")

	return nil
}

// Bind all flags and read the config into viper
func bindFlagsLoadViper(cmd *cobra.Command) error {
	// Register flags with viper. Include flags from this command and all other
	// persistent flags from the parent
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// first unmarshal to read from CLI flags
	if err := viper.Unmarshal(_config); err != nil {
		return err
	}

	// look for config file in [datadir]/overlay.toml (.json, .yaml also work)
	viper.SetConfigName("overlay")               // name of config file (without extension)
	viper.AddConfigPath(_config.Overlay.DataDir) // search root directory

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		_config.Overlay.Logger().Debugf("Using config file: %s", viper.ConfigFileUsed())
	} else if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		_config.Overlay.Logger().Debugf("No config file found in: %s", _config.Overlay.DataDir)
	} else {
		return err
	}

	// second unmarshal to read from config file
	return viper.Unmarshal(_config)
}

// addFileHook copies every log entry to path.
func addFileHook(logger *logrus.Logger, path string) {
	pathMap := lfshook.PathMap{}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		logger.WithError(err).Warn("Failed to open log file, using default stderr")
		return
	}
	f.Close()

	for _, level := range logrus.AllLevels {
		pathMap[level] = path
	}

	logger.Hooks.Add(lfshook.NewHook(
		pathMap,
		&logrus.TextFormatter{},
	))
}
