package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/vango-dev/vserve/internal/errors"
)

const (
	// EnvPrefix prefixes the launcher's own environment variables.
	EnvPrefix = "VSERVE"

	// ConfigName is the config file name searched for without --config.
	ConfigName = "vserve"

	// DotEnvFile is preloaded into the environment.
	DotEnvFile = ".env"

	// DefaultHost binds every interface.
	DefaultHost = "0.0.0.0"

	// DefaultPort is the listening port.
	DefaultPort = 3000

	// DefaultPublicDir holds the build output.
	DefaultPublicDir = "public"

	// DefaultReporter is the step reporter.
	DefaultReporter = "spec"

	// DefaultShutdownTimeout bounds graceful shutdown.
	DefaultShutdownTimeout = 10 * time.Second

	// DefaultTestConfig is the test configuration path handed to the runner.
	DefaultTestConfig = "config/test.yaml"
)

// Reporters lists the step reporter names.
var Reporters = []string{"spec", "json", "silent"}

// Config is the resolved launcher configuration.
type Config struct {
	// Host is the interface to bind.
	Host string

	// Port is the TCP port. Zero picks a free port.
	Port int

	// Gzip enables response compression.
	Gzip bool

	// Reporter names the step reporter.
	Reporter string

	// PublicDir holds the build manifest and the static files.
	PublicDir string

	// MetricsAddr serves /metrics when set.
	MetricsAddr string

	// LogLevel is debug, info, warn or error.
	LogLevel string

	// LogFormat is text or json.
	LogFormat string

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration

	// Test configures the test forwarder.
	Test TestConfig

	// file is the config file that was read, if any.
	file string
}

// TestConfig configures the test forwarder.
type TestConfig struct {
	// Program is the test runner executable.
	Program string

	// BaseArgs precede the forwarded arguments.
	BaseArgs []string

	// ConfigPath is exported to the runner as an absolute path.
	ConfigPath string

	// ConfigFlag, when set, is appended with the config path.
	ConfigFlag string
}

// File returns the config file that was read, or "".
func (c Config) File() string {
	return c.file
}

// Address returns host:port.
func (c Config) Address() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Host:            DefaultHost,
		Port:            DefaultPort,
		Gzip:            true,
		Reporter:        DefaultReporter,
		PublicDir:       DefaultPublicDir,
		LogLevel:        "info",
		LogFormat:       "text",
		ShutdownTimeout: DefaultShutdownTimeout,
		Test: TestConfig{
			Program:    "go",
			BaseArgs:   []string{"test"},
			ConfigPath: DefaultTestConfig,
		},
	}
}

// LoadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func LoadDotEnv(path string) error {
	if err := gotenv.Load(path); err != nil {
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return errors.New("E120").
			WithDetail(fmt.Sprintf("could not load %s", path)).
			Wrap(err)
	}
	return nil
}

// flagKeys maps flag names to config keys.
var flagKeys = map[string]string{
	"host":             "host",
	"port":             "port",
	"gzip":             "gzip",
	"reporter":         "reporter",
	"public-dir":       "public_dir",
	"metrics-addr":     "metrics_addr",
	"log-level":        "log_level",
	"log-format":       "log_format",
	"shutdown-timeout": "shutdown_timeout",
}

// NewViper returns a viper instance with defaults and environment bindings.
func NewViper() *viper.Viper {
	v := viper.New()
	d := Default()

	v.SetDefault("host", d.Host)
	v.SetDefault("port", d.Port)
	v.SetDefault("gzip", d.Gzip)
	v.SetDefault("reporter", d.Reporter)
	v.SetDefault("public_dir", d.PublicDir)
	v.SetDefault("metrics_addr", d.MetricsAddr)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("test.program", d.Test.Program)
	v.SetDefault("test.base_args", d.Test.BaseArgs)
	v.SetDefault("test.config_path", d.Test.ConfigPath)
	v.SetDefault("test.config_flag", d.Test.ConfigFlag)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Unprefixed variables shared with other tooling.
	_ = v.BindEnv("host", "HOST", "HOSTNAME")
	_ = v.BindEnv("port", "PORT")
	_ = v.BindEnv("gzip", "GZIP")

	return v
}

// BindFlags binds the flags in fs that map to config keys.
func BindFlags(v *viper.Viper, fs *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := fs.Lookup(name)
		if f == nil {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return errors.New("E120").WithDetail("flag --" + name).Wrap(err)
		}
	}
	return nil
}

// Load reads the config file and resolves the configuration. An explicit
// file must exist; the default vserve.{yaml,json} is optional.
func Load(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(ConfigName)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !stderrors.As(err, &notFound) {
			return Config{}, errors.New("E120").
				WithDetail(fmt.Sprintf("could not read config file %s", displayFile(file))).
				Wrap(err)
		}
	}

	port, err := parsePort(v.Get("port"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Host:            v.GetString("host"),
		Port:            port,
		Gzip:            ParseGzip(v.Get("gzip")),
		Reporter:        v.GetString("reporter"),
		PublicDir:       v.GetString("public_dir"),
		MetricsAddr:     v.GetString("metrics_addr"),
		LogLevel:        strings.ToLower(v.GetString("log_level")),
		LogFormat:       strings.ToLower(v.GetString("log_format")),
		ShutdownTimeout: v.GetDuration("shutdown_timeout"),
		Test: TestConfig{
			Program:    v.GetString("test.program"),
			BaseArgs:   v.GetStringSlice("test.base_args"),
			ConfigPath: v.GetString("test.config_path"),
			ConfigFlag: v.GetString("test.config_flag"),
		},
		file: v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func displayFile(file string) string {
	if file == "" {
		return ConfigName + ".*"
	}
	return file
}

// ParseGzip interprets a gzip setting. "0" and false-like strings disable
// compression; any other value, including one that does not parse, enables it.
func ParseGzip(raw any) bool {
	switch val := raw.(type) {
	case nil:
		return true
	case bool:
		return val
	case int:
		return val != 0
	case string:
		s := strings.TrimSpace(val)
		if s == "0" {
			return false
		}
		if b, err := strconv.ParseBool(s); err == nil {
			return b
		}
		return true
	default:
		return true
	}
}

func parsePort(raw any) (int, error) {
	var s string
	switch val := raw.(type) {
	case int:
		s = strconv.Itoa(val)
	case int64:
		s = strconv.FormatInt(val, 10)
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		s = strings.TrimSpace(fmt.Sprint(val))
	}

	port, err := strconv.Atoi(s)
	if err != nil || port < 0 || port > 65535 {
		return 0, errors.New("E122").WithDetail("port " + s)
	}
	return port, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("E122").WithDetail("port " + strconv.Itoa(c.Port))
	}
	if c.Host == "" {
		return errors.New("E120").WithDetail("host must not be empty")
	}
	if !slices.Contains(Reporters, c.Reporter) {
		return errors.New("E121").
			WithDetail(fmt.Sprintf("reporter %q", c.Reporter)).
			WithSuggestion("Use one of: " + strings.Join(Reporters, ", "))
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return errors.New("E120").WithDetail(fmt.Sprintf("log level %q", c.LogLevel))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return errors.New("E120").WithDetail(fmt.Sprintf("log format %q", c.LogFormat))
	}
	if c.ShutdownTimeout < 0 {
		return errors.New("E120").WithDetail("shutdown timeout must not be negative")
	}
	if c.Test.Program == "" {
		return errors.New("E120").WithDetail("test program must not be empty")
	}
	return nil
}
