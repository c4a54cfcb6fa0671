// Package config loads node settings from defaults, an optional YAML file,
// PEER_RELAY_* environment variables and command-line flags.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "PEER_RELAY"

type Config struct {
	Listen           string        `mapstructure:"listen"`
	NodeID           string        `mapstructure:"node_id"`
	Peers            []string      `mapstructure:"peers"`
	BlockSize        int           `mapstructure:"block_size"`
	TTL              int           `mapstructure:"ttl"`
	AckLimit         time.Duration `mapstructure:"ack_limit"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`

	Ledger LedgerConfig `mapstructure:"ledger"`
	Files  FilesConfig  `mapstructure:"files"`
	API    APIConfig    `mapstructure:"api"`
	Log    LogConfig    `mapstructure:"log"`
	Serial SerialConfig `mapstructure:"serial"`
}

type LedgerConfig struct {
	Backend       string `mapstructure:"backend"`
	Path          string `mapstructure:"path"`
	RedisAddr     string `mapstructure:"redis_addr"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisPassword string `mapstructure:"redis_password"`
}

type FilesConfig struct {
	Dir            string  `mapstructure:"dir"`
	ReceivedPrefix string  `mapstructure:"received_prefix"`
	Similarity     float64 `mapstructure:"similarity"`
}

type APIConfig struct {
	Addr string `mapstructure:"addr"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", "127.0.0.1:7400")
	v.SetDefault("node_id", "")
	v.SetDefault("peers", []string{})
	v.SetDefault("block_size", 2048)
	v.SetDefault("ttl", 10)
	v.SetDefault("ack_limit", 20*time.Second)
	v.SetDefault("sweep_interval", time.Second)
	v.SetDefault("poll_interval", 500*time.Millisecond)
	v.SetDefault("handshake_timeout", 10*time.Second)

	v.SetDefault("ledger.backend", "file")
	v.SetDefault("ledger.path", "ledger.json")
	v.SetDefault("ledger.redis_addr", "127.0.0.1:6379")
	v.SetDefault("ledger.redis_db", 0)
	v.SetDefault("ledger.redis_password", "")

	v.SetDefault("files.dir", ".")
	v.SetDefault("files.received_prefix", "received_")
	v.SetDefault("files.similarity", 0.8)

	v.SetDefault("api.addr", "127.0.0.1:7401")
	v.SetDefault("log.level", "info")
	v.SetDefault("serial.port", "")
	v.SetDefault("serial.baud", 9600)
}

// New returns a viper instance with defaults and environment lookup set up.
func New() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// flag name -> config key
var flagKeys = map[string]string{
	"listen":     "listen",
	"id":         "node_id",
	"peer":       "peers",
	"dir":        "files.dir",
	"ledger":     "ledger.backend",
	"ledger-dsn": "ledger.path",
	"api":        "api.addr",
	"log-level":  "log.level",
	"serial":     "serial.port",
	"baud":       "serial.baud",
	"ttl":        "ttl",
	"block-size": "block_size",
	"ack-limit":  "ack_limit",
}

// BindFlags binds whichever of the known flags fs defines.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding flag %s: %w", name, err)
		}
	}
	return nil
}

// Load reads file (if non-empty) and decodes the result.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config %s: %w", file, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	var errs []error
	if c.Listen == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.BlockSize < 64 {
		errs = append(errs, fmt.Errorf("block_size %d is too small", c.BlockSize))
	}
	if c.TTL <= 0 {
		errs = append(errs, fmt.Errorf("ttl must be positive, got %d", c.TTL))
	}
	if c.AckLimit <= 0 || c.SweepInterval <= 0 || c.PollInterval <= 0 {
		errs = append(errs, errors.New("ack_limit, sweep_interval and poll_interval must be positive"))
	}
	if c.Files.Similarity < 0 || c.Files.Similarity > 1 {
		errs = append(errs, fmt.Errorf("files.similarity %v out of [0,1]", c.Files.Similarity))
	}
	switch c.Ledger.Backend {
	case "file", "sqlite", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown ledger backend %q", c.Ledger.Backend))
	}
	return errors.Join(errs...)
}

// ID is the node id, defaulting to the listen address.
func (c Config) ID() string {
	if c.NodeID != "" {
		return c.NodeID
	}
	return c.Listen
}
