package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Paths    PathsConfig  `mapstructure:"paths"`
	Train    TrainConfig  `mapstructure:"train"`
	Server   ServerConfig `mapstructure:"server"`
	LogLevel string       `mapstructure:"log_level"`
}

type PathsConfig struct {
	CorpusPath string `mapstructure:"corpus_path"`
	ModelPath  string `mapstructure:"model_path"`
}

type TrainConfig struct {
	VocabSize     int      `mapstructure:"vocab_size"`
	SpecialTokens []string `mapstructure:"special_tokens"`
	Sentinel      string   `mapstructure:"sentinel"`
	Pattern       string   `mapstructure:"pattern"`
	Workers       int      `mapstructure:"workers"`
	NFC           bool     `mapstructure:"nfc"`
}

type ServerConfig struct {
	ListenAddr      string `mapstructure:"listen_addr"`
	Workers         int    `mapstructure:"workers"`
	MaxTextBytes    int    `mapstructure:"max_text_bytes"`
	RequestTimeout  int    `mapstructure:"request_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type LoadOptions struct {
	Cmd        flagBinder
	ConfigFile string
	Defaults   Config
}

type flagBinder interface {
	Flags() *pflag.FlagSet
}

func DefaultConfig() Config {
	return Config{
		Paths: PathsConfig{
			CorpusPath: "corpus.txt",
			ModelPath:  "models/bpe.json",
		},
		Train: TrainConfig{
			VocabSize:     1000,
			SpecialTokens: []string{"<|endoftext|>"},
			Sentinel:      "Ġ",
			Pattern:       "gpt2",
			Workers:       1,
			NFC:           false,
		},
		Server: ServerConfig{
			ListenAddr:      ":8080",
			Workers:         4,
			MaxTextBytes:    65536,
			RequestTimeout:  30,
			ShutdownTimeout: 30,
		},
		LogLevel: "info",
	}
}

// binding ties a config key to the flag that overrides it.
type binding struct {
	key  string
	flag string
}

var bindings = []binding{
	{"paths.corpus_path", "corpus"},
	{"paths.model_path", "model"},
	{"train.vocab_size", "vocab-size"},
	{"train.special_tokens", "special-tokens"},
	{"train.sentinel", "sentinel"},
	{"train.pattern", "pattern"},
	{"train.workers", "workers"},
	{"train.nfc", "nfc"},
	{"server.listen_addr", "server-listen-addr"},
	{"server.workers", "server-workers"},
	{"server.max_text_bytes", "server-max-text-bytes"},
	{"server.request_timeout", "server-request-timeout"},
	{"server.shutdown_timeout", "server-shutdown-timeout"},
	{"log_level", "log-level"},
}

func RegisterFlags(fs *pflag.FlagSet, defaults Config) {
	fs.String("corpus", defaults.Paths.CorpusPath, "Path to the training corpus (- for stdin)")
	fs.String("model", defaults.Paths.ModelPath, "Path to the trained model JSON")
	fs.Int("vocab-size", defaults.Train.VocabSize, "Target vocabulary size including base alphabet and special tokens")
	fs.StringSlice("special-tokens", defaults.Train.SpecialTokens, "Special tokens added to the vocabulary")
	fs.String("sentinel", defaults.Train.Sentinel, "Symbol encoding a space before a word")
	fs.String("pattern", defaults.Train.Pattern, "Pre-tokenization rule: gpt2|gpt4|whitespace or a regular expression")
	fs.Int("workers", defaults.Train.Workers, "Goroutines used for per-word training passes")
	fs.Bool("nfc", defaults.Train.NFC, "Apply Unicode NFC normalization to the corpus")
	fs.String("server-listen-addr", defaults.Server.ListenAddr, "HTTP listen address")
	fs.Int("server-workers", defaults.Server.Workers, "Max concurrent encode/decode requests (0 = unlimited)")
	fs.Int("server-max-text-bytes", defaults.Server.MaxTextBytes, "Max request text size in bytes")
	fs.Int("server-request-timeout", defaults.Server.RequestTimeout, "Per-request timeout in seconds")
	fs.Int("server-shutdown-timeout", defaults.Server.ShutdownTimeout, "Graceful shutdown drain period in seconds")
	fs.String("log-level", defaults.LogLevel, "Log level: debug|info|warn|error")
}

func Load(opts LoadOptions) (Config, error) {
	v := viper.New()

	setDefaults(v, opts.Defaults)
	if opts.Cmd != nil {
		if err := bindFlags(v, opts.Cmd.Flags()); err != nil {
			return Config{}, err
		}
	}

	v.SetEnvPrefix("BPETRAIN")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	} else {
		v.SetConfigName("bpetrain")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return Config{}, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first structurally invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Train.VocabSize <= 0:
		return fmt.Errorf("train.vocab_size must be positive, got %d", c.Train.VocabSize)
	case c.Train.Sentinel == "":
		return errors.New("train.sentinel must not be empty")
	case c.Train.Workers < 1:
		return fmt.Errorf("train.workers must be at least 1, got %d", c.Train.Workers)
	case c.Server.Workers < 0:
		return fmt.Errorf("server.workers must not be negative, got %d", c.Server.Workers)
	case c.Server.MaxTextBytes <= 0:
		return fmt.Errorf("server.max_text_bytes must be positive, got %d", c.Server.MaxTextBytes)
	case c.Server.RequestTimeout <= 0:
		return fmt.Errorf("server.request_timeout must be positive, got %d", c.Server.RequestTimeout)
	case c.Server.ShutdownTimeout <= 0:
		return fmt.Errorf("server.shutdown_timeout must be positive, got %d", c.Server.ShutdownTimeout)
	}

	for _, tok := range c.Train.SpecialTokens {
		if tok == "" {
			return errors.New("train.special_tokens must not contain empty tokens")
		}
	}

	return nil
}

func setDefaults(v *viper.Viper, c Config) {
	v.SetDefault("paths.corpus_path", c.Paths.CorpusPath)
	v.SetDefault("paths.model_path", c.Paths.ModelPath)
	v.SetDefault("train.vocab_size", c.Train.VocabSize)
	v.SetDefault("train.special_tokens", c.Train.SpecialTokens)
	v.SetDefault("train.sentinel", c.Train.Sentinel)
	v.SetDefault("train.pattern", c.Train.Pattern)
	v.SetDefault("train.workers", c.Train.Workers)
	v.SetDefault("train.nfc", c.Train.NFC)
	v.SetDefault("server.listen_addr", c.Server.ListenAddr)
	v.SetDefault("server.workers", c.Server.Workers)
	v.SetDefault("server.max_text_bytes", c.Server.MaxTextBytes)
	v.SetDefault("server.request_timeout", c.Server.RequestTimeout)
	v.SetDefault("server.shutdown_timeout", c.Server.ShutdownTimeout)
	v.SetDefault("log_level", c.LogLevel)
}

// bindFlags binds each known flag present in fs to its config key. Flags the
// command does not define are skipped.
func bindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for _, b := range bindings {
		f := fs.Lookup(b.flag)
		if f == nil {
			continue
		}

		if err := v.BindPFlag(b.key, f); err != nil {
			return fmt.Errorf("bind flag --%s: %w", b.flag, err)
		}
	}

	return nil
}
