package config

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec"
	"github.com/mosaicnetworks/overlay/src/common"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultBadgerFile is the default name of the folder containing the Badger
	// database of known peers
	DefaultBadgerFile = "badger_db"

	// DefaultSeedsFile is the default name of the file listing seed addresses
	DefaultSeedsFile = "peers.json"
)

// Default configuration values.
const (
	DefaultLogLevel            = "debug"
	DefaultBindAddr            = "127.0.0.1:11625"
	DefaultServiceAddr         = "127.0.0.1:8000"
	DefaultTargetPeers         = 8
	DefaultMaintenanceInterval = 2000 * time.Millisecond
	DefaultDialTimeout         = 5000 * time.Millisecond
	DefaultWriteTimeout        = 10000 * time.Millisecond
	DefaultAcceptRate          = 20
	DefaultAcceptBurst         = 40
	DefaultMaxFrameSize        = 16 << 20
	DefaultWriteQueue          = 1024
	DefaultMaxPendingTxs       = 10000
	DefaultFloodKeepSlots      = 12
	DefaultStore               = false
)

// Config contains all the configuration properties of an overlay node.
type Config struct {
	// DataDir is the top-level directory containing the node's configuration
	// and data
	DataDir string `mapstructure:"datadir"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log"`

	// BindAddr is the local address:port where this node accepts connections
	// from other nodes.
	BindAddr string `mapstructure:"listen"`

	// AdvertiseAddr is used to change the address that we advertise to other
	// nodes. Its port is the listening port announced in Hello.
	AdvertiseAddr string `mapstructure:"advertise"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service"`

	// ServiceAddr is the address:port of the optional HTTP service.
	ServiceAddr string `mapstructure:"service-listen"`

	// Seeds are addresses dialed at startup, on top of those listed in
	// peers.json.
	Seeds []string `mapstructure:"seeds"`

	// TargetPeers is the number of connections the node tries to maintain.
	TargetPeers int `mapstructure:"target-peers"`

	// MaintenanceInterval is the period at which the node tops up its
	// connections and expires old flood records.
	MaintenanceInterval time.Duration `mapstructure:"maintenance"`

	// DialTimeout bounds outbound connection attempts.
	DialTimeout time.Duration `mapstructure:"timeout"`

	// WriteTimeout bounds the time spent writing one frame.
	WriteTimeout time.Duration `mapstructure:"write-timeout"`

	// AcceptRate is the sustained number of inbound connections accepted per
	// second, and AcceptBurst the number accepted at once. Connections beyond
	// that are closed on accept.
	AcceptRate  float64 `mapstructure:"accept-rate"`
	AcceptBurst int     `mapstructure:"accept-burst"`

	// MaxFrameSize is the largest frame, in bytes, sent or received.
	MaxFrameSize int `mapstructure:"max-frame-size"`

	// WriteQueue is the number of frames queued per connection before the
	// peer is dropped.
	WriteQueue int `mapstructure:"write-queue"`

	// MaxPendingTxs caps the pool of transactions waiting for consensus.
	MaxPendingTxs int `mapstructure:"max-pending-txs"`

	// FloodKeepSlots is the number of slots below the highest seen for which
	// flood records are kept.
	FloodKeepSlots uint64 `mapstructure:"flood-keep-slots"`

	// Store activates persistent storage of known peers.
	Store bool `mapstructure:"store"`

	// DatabaseDir is the directory containing database files.
	DatabaseDir string `mapstructure:"db"`

	// Moniker defines the friendly name of this node
	Moniker string `mapstructure:"moniker"`

	// Key is the private key of the node.
	Key *btcec.PrivateKey

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values.
func NewDefaultConfig() *Config {
	config := &Config{
		DataDir:             DefaultDataDir(),
		LogLevel:            DefaultLogLevel,
		BindAddr:            DefaultBindAddr,
		ServiceAddr:         DefaultServiceAddr,
		TargetPeers:         DefaultTargetPeers,
		MaintenanceInterval: DefaultMaintenanceInterval,
		DialTimeout:         DefaultDialTimeout,
		WriteTimeout:        DefaultWriteTimeout,
		AcceptRate:          DefaultAcceptRate,
		AcceptBurst:         DefaultAcceptBurst,
		MaxFrameSize:        DefaultMaxFrameSize,
		WriteQueue:          DefaultWriteQueue,
		MaxPendingTxs:       DefaultMaxPendingTxs,
		FloodKeepSlots:      DefaultFloodKeepSlots,
		Store:               DefaultStore,
		DatabaseDir:         DefaultDatabaseDir(),
	}

	return config
}

// NewTestConfig returns a config object with default values and a special
// logger for debugging tests.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.logger = common.NewTestLogger(t, level)
	return config
}

// SetDataDir moves the data directory. DatabaseDir follows unless it was set
// explicitly.
func (c *Config) SetDataDir(dataDir string) {
	c.DataDir = dataDir
	if c.DatabaseDir == DefaultDatabaseDir() {
		c.DatabaseDir = filepath.Join(dataDir, DefaultBadgerFile)
	}
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// SeedsFile returns the full path of the file listing seed addresses.
func (c *Config) SeedsFile() string {
	return filepath.Join(c.DataDir, DefaultSeedsFile)
}

// ListenAddr returns the address announced to peers: AdvertiseAddr if set,
// BindAddr otherwise.
func (c *Config) ListenAddr() string {
	if c.AdvertiseAddr != "" {
		return c.AdvertiseAddr
	}
	return c.BindAddr
}

// Logger returns a formatted logrus Entry, with prefix set to "overlay".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "overlay")
}

// DefaultDatabaseDir returns the default path for the badger database files.
func DefaultDatabaseDir() string {
	return filepath.Join(DefaultDataDir(), DefaultBadgerFile)
}

// DefaultDataDir returns the per-user data directory for the platform, or ""
// when no home directory can be found.
func DefaultDataDir() string {
	home := HomeDir()
	if home == "" {
		return ""
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, ".Overlay")
	case "windows":
		return filepath.Join(home, "AppData", "Roaming", "Overlay")
	default:
		return filepath.Join(home, ".overlay")
	}
}

// HomeDir returns the user's home directory, or "" if it is unknown.
func HomeDir() string {
	if home, err := os.UserHomeDir(); err == nil {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a logrus level name. Unknown names yield DebugLevel.
func LogLevel(l string) logrus.Level {
	level, err := logrus.ParseLevel(l)
	if err != nil {
		return logrus.DebugLevel
	}
	return level
}
