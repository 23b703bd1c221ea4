package config

import (
	"crypto/ecdsa"
	"errors"
	"fmt"
	"net"
	"os"
	"os/user"
	"path/filepath"
	"runtime"
	"strconv"
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/fractis/node/src/common"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// Default filenames.
const (
	// DefaultKeyfile is the default name of the file containing the node's
	// private key
	DefaultKeyfile = "priv_key"

	// DefaultConfigName is the name, without extension, of the configuration
	// file looked up in the data directory.
	DefaultConfigName = "fractis"

	// DefaultPeerBookDir is the name of the folder, inside the storage path,
	// containing the Badger database of known peers.
	DefaultPeerBookDir = "peerbook"
)

// Default configuration values.
const (
	DefaultLogLevel          = "info"
	DefaultHost              = "127.0.0.1"
	DefaultPort              = 8000
	DefaultStoragePath       = "./data"
	DefaultMaxConnections    = 50
	DefaultConsensusTimeout  = 5000 // milliseconds
	DefaultServiceAddr       = "127.0.0.1:8080"
	DefaultLedgerURL         = "https://api.mainnet-beta.solana.com"
	DefaultHandshakeTimeout  = 10 * time.Second
	DefaultDialTimeout       = 10 * time.Second
	DefaultReconnectDelay    = 5 * time.Second
	DefaultReconnectAttempts = 3
	DefaultSweepInterval     = 60 * time.Second
	DefaultAcceptBackoff     = 1 * time.Second
	DefaultKeepAliveIdle     = 60 * time.Second
	DefaultKeepAliveInterval = 10 * time.Second
	DefaultKeepAliveCount    = 9
	DefaultConfirmTimeout    = 2 * time.Second
)

// Thresholds above or below which Validate emits a warning.
const (
	privilegedPortLimit       = 1024
	highMaxConnections        = 1000
	lowConsensusTimeoutMillis = 1000
)

// DefaultBootstrapNodes are the public testnet seeds.
var DefaultBootstrapNodes = []string{
	"testnet.fractis.io:8000",
	"testnet2.fractis.io:8000",
}

var (
	// ErrMissingMinStake is returned by Validate when no minimum stake was
	// configured. There is deliberately no default value.
	ErrMissingMinStake = errors.New("min-stake is not set")
)

// ValidationError describes a configuration field that failed validation.
type ValidationError struct {
	Field string
	Value string
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s %q", e.Field, e.Value)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Value, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// ValidatorConfig identifies one member of the validator set.
type ValidatorConfig struct {
	// ID is the validator's public key, hex encoded.
	ID string `mapstructure:"id" toml:"id"`

	// Addr is the host:port of the validator's HTTP service.
	Addr string `mapstructure:"addr" toml:"addr"`
}

// LLMConfig configures the optional inference service. Only the presence of
// the files is checked here; the service itself runs outside the node.
type LLMConfig struct {
	Enabled       bool   `mapstructure:"enabled" toml:"enabled"`
	ModelPath     string `mapstructure:"model-path" toml:"model-path"`
	TokenizerPath string `mapstructure:"tokenizer-path" toml:"tokenizer-path"`
	MaxBatchSize  int    `mapstructure:"max-batch-size" toml:"max-batch-size"`
	UseGPU        bool   `mapstructure:"use-gpu" toml:"use-gpu"`
}

// Config contains all the configuration properties of a fractis node.
type Config struct {
	// DataDir is the top-level directory containing the configuration file and
	// the node's private key.
	DataDir string `mapstructure:"datadir" toml:"-"`

	// LogLevel determines the chattiness of the log output.
	LogLevel string `mapstructure:"log" toml:"log"`

	// NodeID is the stable identifier of this node.
	NodeID string `mapstructure:"node-id" toml:"node-id"`

	// Host and Port define the address the node listens on for peers.
	Host string `mapstructure:"host" toml:"host"`
	Port uint16 `mapstructure:"port" toml:"port"`

	// StoragePath is the directory holding the node's databases. It is
	// created on Prepare if it does not exist.
	StoragePath string `mapstructure:"storage-path" toml:"storage-path"`

	// MaxConnections bounds the number of live peers. Inbound connections
	// above the limit are refused.
	MaxConnections uint32 `mapstructure:"max-connections" toml:"max-connections"`

	// ConsensusTimeout, in milliseconds, is the maximum age of a transaction
	// submitted for consensus.
	ConsensusTimeout uint64 `mapstructure:"consensus-timeout" toml:"consensus-timeout"`

	// BootstrapNodes is the ordered list of seed addresses dialled on start.
	BootstrapNodes []string `mapstructure:"bootstrap-nodes" toml:"bootstrap-nodes"`

	// MinStake is the minimum ledger balance required to start the node. It
	// has no default and must be set.
	MinStake *uint64 `mapstructure:"min-stake" toml:"min-stake,omitempty"`

	// LedgerURL is the JSON-RPC endpoint of the ledger service.
	LedgerURL string `mapstructure:"ledger-url" toml:"ledger-url"`

	// Validators is the validator set consulted for transaction finality.
	Validators []ValidatorConfig `mapstructure:"validators" toml:"validators"`

	// NoService disables the HTTP API service.
	NoService bool `mapstructure:"no-service" toml:"no-service"`

	// ServiceAddr is the address:port of the HTTP service.
	ServiceAddr string `mapstructure:"service-listen" toml:"service-listen"`

	// HandshakeTimeout bounds the setup of every new connection.
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout" toml:"handshake-timeout"`

	// DialTimeout bounds a single outbound connection attempt.
	DialTimeout time.Duration `mapstructure:"dial-timeout" toml:"dial-timeout"`

	// ReconnectDelay is the fixed delay between attempts to reach a seed.
	ReconnectDelay time.Duration `mapstructure:"reconnect-delay" toml:"reconnect-delay"`

	// ReconnectAttempts is the number of attempts made for each seed.
	ReconnectAttempts int `mapstructure:"reconnect-attempts" toml:"reconnect-attempts"`

	// SweepInterval is the period of the disconnected peer sweep.
	SweepInterval time.Duration `mapstructure:"sweep-interval" toml:"sweep-interval"`

	// AcceptBackoff is the pause after a failed accept.
	AcceptBackoff time.Duration `mapstructure:"accept-backoff" toml:"accept-backoff"`

	// KeepAliveIdle, KeepAliveInterval and KeepAliveCount configure TCP
	// keepalive probes on peer connections.
	KeepAliveIdle     time.Duration `mapstructure:"keepalive-idle" toml:"keepalive-idle"`
	KeepAliveInterval time.Duration `mapstructure:"keepalive-interval" toml:"keepalive-interval"`
	KeepAliveCount    int           `mapstructure:"keepalive-count" toml:"keepalive-count"`

	// ConfirmTimeout bounds a single validator confirmation call.
	ConfirmTimeout time.Duration `mapstructure:"confirm-timeout" toml:"confirm-timeout"`

	// ConfirmConcurrency bounds the number of validators asked in parallel.
	// Zero means all of them at once.
	ConfirmConcurrency int `mapstructure:"confirm-concurrency" toml:"confirm-concurrency"`

	// LLM configures the optional inference service.
	LLM *LLMConfig `mapstructure:"llm" toml:"llm,omitempty"`

	// Key is the private key of the node.
	Key *ecdsa.PrivateKey `mapstructure:"-" toml:"-"`

	logger *logrus.Logger
}

// NewDefaultConfig returns a config object with default values. MinStake is
// left unset.
func NewDefaultConfig() *Config {
	return &Config{
		DataDir:           DefaultDataDir(),
		LogLevel:          DefaultLogLevel,
		NodeID:            uuid.NewString(),
		Host:              DefaultHost,
		Port:              DefaultPort,
		StoragePath:       DefaultStoragePath,
		MaxConnections:    DefaultMaxConnections,
		ConsensusTimeout:  DefaultConsensusTimeout,
		BootstrapNodes:    append([]string(nil), DefaultBootstrapNodes...),
		LedgerURL:         DefaultLedgerURL,
		ServiceAddr:       DefaultServiceAddr,
		HandshakeTimeout:  DefaultHandshakeTimeout,
		DialTimeout:       DefaultDialTimeout,
		ReconnectDelay:    DefaultReconnectDelay,
		ReconnectAttempts: DefaultReconnectAttempts,
		SweepInterval:     DefaultSweepInterval,
		AcceptBackoff:     DefaultAcceptBackoff,
		KeepAliveIdle:     DefaultKeepAliveIdle,
		KeepAliveInterval: DefaultKeepAliveInterval,
		KeepAliveCount:    DefaultKeepAliveCount,
		ConfirmTimeout:    DefaultConfirmTimeout,
	}
}

// NewTestConfig returns a config object suited to unit tests: ephemeral port,
// no seeds, no HTTP service, a zero minimum stake, short timers, and a logger
// that writes through t.Log.
func NewTestConfig(t testing.TB, level logrus.Level) *Config {
	config := NewDefaultConfig()
	config.DataDir = t.TempDir()
	config.StoragePath = filepath.Join(config.DataDir, "data")
	config.Port = 0
	config.BootstrapNodes = nil
	config.NoService = true
	zero := uint64(0)
	config.MinStake = &zero
	config.ReconnectDelay = 10 * time.Millisecond
	config.DialTimeout = time.Second
	config.HandshakeTimeout = time.Second
	config.SweepInterval = 50 * time.Millisecond
	config.AcceptBackoff = 10 * time.Millisecond
	config.logger = common.NewTestLogger(t, level)
	return config
}

// BindAddr returns the host:port the node listens on.
func (c *Config) BindAddr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(int(c.Port)))
}

// ConsensusTimeoutDuration returns ConsensusTimeout as a time.Duration.
func (c *Config) ConsensusTimeoutDuration() time.Duration {
	return time.Duration(c.ConsensusTimeout) * time.Millisecond
}

// Keyfile returns the full path of the file containing the private key.
func (c *Config) Keyfile() string {
	return filepath.Join(c.DataDir, DefaultKeyfile)
}

// PeerBookDir returns the directory of the known-peer database.
func (c *Config) PeerBookDir() string {
	return filepath.Join(c.StoragePath, DefaultPeerBookDir)
}

// Validate checks the configuration before the node starts. Addresses must
// resolve, the storage path must be a directory if it exists, and MinStake
// must be set. Questionable but legal values are logged as warnings.
func (c *Config) Validate() error {
	logger := c.Logger()

	addr := c.BindAddr()
	if _, err := net.ResolveTCPAddr("tcp", addr); err != nil {
		return &ValidationError{Field: "host/port", Value: addr, Err: err}
	}

	for _, seed := range c.BootstrapNodes {
		if _, err := net.ResolveTCPAddr("tcp", seed); err != nil {
			return &ValidationError{Field: "bootstrap node", Value: seed, Err: err}
		}
	}

	if c.MinStake == nil {
		return ErrMissingMinStake
	}

	for _, v := range c.Validators {
		if v.ID == "" || v.Addr == "" {
			return &ValidationError{Field: "validator", Value: fmt.Sprintf("%s@%s", v.ID, v.Addr),
				Err: errors.New("id and addr are required")}
		}
	}

	if info, err := os.Stat(c.StoragePath); err == nil && !info.IsDir() {
		return &ValidationError{Field: "storage path", Value: c.StoragePath,
			Err: errors.New("exists but is not a directory")}
	}

	if c.LLM != nil && c.LLM.Enabled {
		if _, err := os.Stat(c.LLM.ModelPath); err != nil {
			return &ValidationError{Field: "llm model path", Value: c.LLM.ModelPath, Err: err}
		}
		if _, err := os.Stat(c.LLM.TokenizerPath); err != nil {
			return &ValidationError{Field: "llm tokenizer path", Value: c.LLM.TokenizerPath, Err: err}
		}
	}

	if c.Port != 0 && c.Port < privilegedPortLimit {
		logger.WithField("port", c.Port).Warn("Using privileged port, this might require root/admin privileges")
	}

	if c.MaxConnections > highMaxConnections {
		logger.WithField("max_connections", c.MaxConnections).Warn("High max-connections value, this might consume significant resources")
	}

	if c.ConsensusTimeout < lowConsensusTimeoutMillis {
		logger.WithField("consensus_timeout_ms", c.ConsensusTimeout).Warn("Very low consensus-timeout, this might cause consensus issues")
	}

	return nil
}

// Prepare validates the configuration and creates the storage directory.
func (c *Config) Prepare() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(c.StoragePath, 0755); err != nil {
		return &ValidationError{Field: "storage path", Value: c.StoragePath,
			Err: fmt.Errorf("failed to create storage directory: %w", err)}
	}
	return nil
}

// Save validates the configuration and writes it to path in TOML format,
// creating the parent directory if needed.
func (c *Config) Save(path string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(c)
}

// SetLogger overrides the logger returned by Logger.
func (c *Config) SetLogger(logger *logrus.Logger) {
	c.logger = logger
}

// Logger returns a formatted logrus Entry, with prefix set to "fractis".
func (c *Config) Logger() *logrus.Entry {
	if c.logger == nil {
		c.logger = logrus.New()
		c.logger.Level = LogLevel(c.LogLevel)
		c.logger.Formatter = new(prefixed.TextFormatter)
	}
	return c.logger.WithField("prefix", "fractis")
}

// DefaultDataDir return the default directory name for top-level fractis
// config based on the underlying OS, attempting to respect conventions.
func DefaultDataDir() string {
	// Try to place the data folder in the user's home dir
	home := HomeDir()
	if home != "" {
		if runtime.GOOS == "darwin" {
			return filepath.Join(home, ".Fractis")
		} else if runtime.GOOS == "windows" {
			return filepath.Join(home, "AppData", "Roaming", "Fractis")
		} else {
			return filepath.Join(home, ".fractis")
		}
	}
	// As we cannot guess a stable location, return empty and handle later
	return ""
}

// HomeDir returns the user's home directory.
func HomeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

// LogLevel parses a string into a Logrus log level.
func LogLevel(l string) logrus.Level {
	switch l {
	case "debug":
		return logrus.DebugLevel
	case "info":
		return logrus.InfoLevel
	case "warn":
		return logrus.WarnLevel
	case "error":
		return logrus.ErrorLevel
	case "fatal":
		return logrus.FatalLevel
	case "panic":
		return logrus.PanicLevel
	default:
		return logrus.DebugLevel
	}
}
