package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// Mode constants
	ModeStdio  = "stdio"
	ModeServer = "server"
	ModeWeb    = "web"

	// Log formats
	LogFormatText = "text"
	LogFormatJSON = "json"

	// Default values
	DefaultPort              = 8080
	DefaultHost              = "127.0.0.1"
	DefaultLogLevel          = "info"
	DefaultMaxFileSize       = 100 * 1024 * 1024 // 100MB
	DefaultMaxPhotoSize      = 20 * 1024 * 1024  // 20MB
	DefaultMaxImageDimension = 800
	DefaultJPEGQuality       = 80
	DefaultTimezone          = "Local"

	// DraftsDisabled as the draft-db value turns draft storage off.
	DraftsDisabled = "off"

	// EnvPrefix prefixes every environment variable, e.g. CAPTURE_REPORT_PORT.
	EnvPrefix = "CAPTURE_REPORT"

	// Directory permissions
	DefaultDirPerm = 0o750
)

// ErrVersionRequested is returned by Load when --version was given.
var ErrVersionRequested = errors.New("version requested")

// Config holds all configuration for the capture report server
type Config struct {
	// Server configuration
	Mode string // "stdio", "server" or "web"
	Host string
	Port int

	// File locations
	Directory       string // photos are read from here
	OutputDirectory string // reports are written here
	TemplatePath    string // empty for the embedded layout
	FontPath        string // TrueType font installed at startup
	FontName        string
	FontScript      string
	DraftDB         string

	// Report configuration
	Timezone          string
	MaxImageDimension int
	JPEGQuality       int
	MaxPhotoSize      int64
	MaxFileSize       int64

	// Application configuration
	Version    string
	ServerName string
	LogLevel   string
	LogFormat  string
	ConfigFile string
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	currentDir, err := os.Getwd()
	if err != nil {
		currentDir = "."
	}

	return &Config{
		Mode:              ModeStdio,
		Host:              DefaultHost,
		Port:              DefaultPort,
		Directory:         currentDir,
		Timezone:          DefaultTimezone,
		MaxImageDimension: DefaultMaxImageDimension,
		JPEGQuality:       DefaultJPEGQuality,
		MaxPhotoSize:      DefaultMaxPhotoSize,
		MaxFileSize:       DefaultMaxFileSize,
		Version:           "1.0.0",
		ServerName:        "capture-report",
		LogLevel:          DefaultLogLevel,
		LogFormat:         LogFormatText,
	}
}

// LoadFromFlags parses the process command line and environment.
func LoadFromFlags() (*Config, error) {
	return Load(os.Args[0], os.Args[1:], os.Stderr)
}

// Load parses args (without the program name) together with the environment
// and an optional config file. Usage output goes to usage.
func Load(program string, args []string, usage io.Writer) (*Config, error) {
	cfg, _, err := LoadWithFlags(program, args, usage, nil)
	return cfg, err
}

// LoadWithFlags is Load for programs with flags of their own. define
// registers them on the flag set before parsing; the parsed set is returned.
func LoadWithFlags(program string, args []string, usage io.Writer, define func(*pflag.FlagSet)) (*Config, *pflag.FlagSet, error) {
	cfg := DefaultConfig()

	v := viper.New()
	fs := pflag.NewFlagSet(program, pflag.ContinueOnError)
	fs.SetOutput(usage)

	setupViperEnvironment(v, cfg)
	defineCommandLineFlags(fs, cfg)
	if define != nil {
		define(fs)
	}
	bindFlagsToViper(v, fs)
	setupUsageMessage(fs, program, usage)

	if err := checkVersionFlag(args); err != nil {
		return nil, nil, err
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("failed to read config file %s: %w", file, err)
		}
	}

	populateConfigFromViper(v, cfg)
	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, fs, nil
}

// setupViperEnvironment configures viper with environment variables and defaults
func setupViperEnvironment(v *viper.Viper, cfg *Config) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", cfg.Mode)
	v.SetDefault("host", cfg.Host)
	v.SetDefault("port", cfg.Port)
	v.SetDefault("dir", cfg.Directory)
	v.SetDefault("output-dir", "")
	v.SetDefault("template", "")
	v.SetDefault("font", "")
	v.SetDefault("font-name", "")
	v.SetDefault("font-script", "")
	v.SetDefault("draft-db", "")
	v.SetDefault("timezone", cfg.Timezone)
	v.SetDefault("max-image-dimension", cfg.MaxImageDimension)
	v.SetDefault("jpeg-quality", cfg.JPEGQuality)
	v.SetDefault("max-photo-size", cfg.MaxPhotoSize)
	v.SetDefault("max-file-size", cfg.MaxFileSize)
	v.SetDefault("loglevel", cfg.LogLevel)
	v.SetDefault("log-format", cfg.LogFormat)
	v.SetDefault("config", "")
}

// defineCommandLineFlags sets up all command line flags
func defineCommandLineFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.String("mode", cfg.Mode, "Run mode: 'stdio' for MCP standard I/O, 'server' for MCP over HTTP/SSE, 'web' for the HTML form")
	fs.String("host", cfg.Host, "Listen address (server and web modes)")
	fs.Int("port", cfg.Port, "Listen port (server and web modes)")
	fs.String("dir", cfg.Directory, "Working directory; photo paths are resolved below it")
	fs.String("output-dir", "", "Directory generated reports are written to (default: --dir)")
	fs.String("template", "", "pdfme template JSON (default: built-in capture report layout)")
	fs.String("font", "", "TrueType font file to install, e.g. NotoSerifJP-Regular.ttf")
	fs.String("font-name", "", "Font used for text fields (default: the installed font, else Helvetica)")
	fs.String("font-script", "", "Script hint for CJK fonts, e.g. JA")
	fs.String("draft-db", "", "SQLite file holding the saved draft ('off' to disable)")
	fs.String("timezone", cfg.Timezone, "Time zone used to split dates and compute weekdays")
	fs.Int("max-image-dimension", cfg.MaxImageDimension, "Longest side of embedded photos in pixels")
	fs.Int("jpeg-quality", cfg.JPEGQuality, "JPEG quality of embedded photos (1-100)")
	fs.Int64("max-photo-size", cfg.MaxPhotoSize, "Maximum photo input size in bytes")
	fs.Int64("max-file-size", cfg.MaxFileSize, "Maximum PDF size accepted by verification in bytes")
	fs.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-format", cfg.LogFormat, "Log format (text, json)")
	fs.String("config", "", "Configuration file (YAML, JSON or TOML)")
}

// bindFlagsToViper binds command line flags to viper configuration
func bindFlagsToViper(v *viper.Viper, fs *pflag.FlagSet) {
	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
	})
}

// setupUsageMessage configures the custom usage message
func setupUsageMessage(fs *pflag.FlagSet, program string, w io.Writer) {
	fs.Usage = func() {
		fmt.Fprintf(w, "Usage of %s:\n", program)
		fmt.Fprintf(w, "\nCapture Report - fills the wildlife capture report PDF from form values and photos\n\n")
		fmt.Fprintf(w, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(w, "\nExamples:\n")
		fmt.Fprintf(w, "  %s                                        # MCP over stdio, current directory\n", program)
		fmt.Fprintf(w, "  %s --dir=/path/to/photos --font=NotoSerifJP-Regular.ttf\n", program)
		fmt.Fprintf(w, "  %s --mode=web --port=8081                 # HTML form on 127.0.0.1:8081\n", program)
		fmt.Fprintf(w, "  %s --mode=server --host=0.0.0.0           # MCP over SSE on all interfaces\n", program)
		fmt.Fprintf(w, "\nEnvironment Variables:\n")
		fmt.Fprintf(w, "  Every option can be set as %s_<OPTION>, e.g. %s_OUTPUT_DIR\n", EnvPrefix, EnvPrefix)
	}
}

// checkVersionFlag checks if version flag was requested
func checkVersionFlag(args []string) error {
	for _, arg := range args {
		if arg == "-version" || arg == "--version" || arg == "-v" {
			return ErrVersionRequested
		}
	}
	return nil
}

// populateConfigFromViper fills the config struct with values from viper
func populateConfigFromViper(v *viper.Viper, cfg *Config) {
	cfg.Mode = v.GetString("mode")
	cfg.Host = v.GetString("host")
	cfg.Port = v.GetInt("port")
	cfg.Directory = v.GetString("dir")
	cfg.OutputDirectory = v.GetString("output-dir")
	cfg.TemplatePath = v.GetString("template")
	cfg.FontPath = v.GetString("font")
	cfg.FontName = v.GetString("font-name")
	cfg.FontScript = v.GetString("font-script")
	cfg.DraftDB = v.GetString("draft-db")
	cfg.Timezone = v.GetString("timezone")
	cfg.MaxImageDimension = v.GetInt("max-image-dimension")
	cfg.JPEGQuality = v.GetInt("jpeg-quality")
	cfg.MaxPhotoSize = v.GetInt64("max-photo-size")
	cfg.MaxFileSize = v.GetInt64("max-file-size")
	cfg.LogLevel = strings.ToLower(v.GetString("loglevel"))
	cfg.LogFormat = strings.ToLower(v.GetString("log-format"))
	cfg.ConfigFile = v.GetString("config")
}

// resolvePaths makes paths absolute and fills derived defaults.
func (c *Config) resolvePaths() {
	abs := func(p string) string {
		if p == "" {
			return p
		}
		if a, err := filepath.Abs(p); err == nil {
			return a
		}
		return p
	}

	c.Directory = abs(c.Directory)
	if c.OutputDirectory == "" {
		c.OutputDirectory = c.Directory
	}
	c.OutputDirectory = abs(c.OutputDirectory)
	c.TemplatePath = abs(c.TemplatePath)
	c.FontPath = abs(c.FontPath)

	switch c.DraftDB {
	case DraftsDisabled:
	case "":
		if c.Directory != "" {
			c.DraftDB = filepath.Join(c.Directory, ".capture-report", "draft.db")
		}
	default:
		c.DraftDB = abs(c.DraftDB)
	}

	if c.FontName == "" && c.FontPath != "" {
		c.FontName = strings.TrimSuffix(filepath.Base(c.FontPath), filepath.Ext(c.FontPath))
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeStdio, ModeServer, ModeWeb:
	default:
		return errors.New("mode must be one of 'stdio', 'server' or 'web'")
	}

	if c.Mode != ModeStdio && (c.Port < 1 || c.Port > 65535) {
		return errors.New("port must be between 1 and 65535")
	}

	if c.Directory == "" {
		return errors.New("directory cannot be empty")
	}
	if err := ensureDirectory(c.Directory); err != nil {
		return err
	}
	if c.OutputDirectory != "" {
		if err := ensureDirectory(c.OutputDirectory); err != nil {
			return err
		}
	}

	if err := checkFile("template", c.TemplatePath); err != nil {
		return err
	}
	if err := checkFile("font", c.FontPath); err != nil {
		return err
	}

	if _, err := c.Location(); err != nil {
		return err
	}

	if c.MaxImageDimension <= 0 {
		return errors.New("maximum image dimension must be positive")
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		return errors.New("JPEG quality must be between 1 and 100")
	}
	if c.MaxPhotoSize <= 0 {
		return errors.New("maximum photo size must be positive")
	}
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level: %s (must be one of: debug, info, warn, error)", c.LogLevel)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf("invalid log format: %s (must be text or json)", c.LogFormat)
	}

	return nil
}

func ensureDirectory(dir string) error {
	info, err := os.Stat(dir)
	if os.IsNotExist(err) {
		if err := os.MkdirAll(dir, DefaultDirPerm); err != nil {
			return fmt.Errorf("cannot create directory %s: %w", dir, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("cannot access directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("not a directory: %s", dir)
	}
	return nil
}

func checkFile(kind, path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("cannot access %s file %s: %w", kind, path, err)
	}
	if info.IsDir() {
		return fmt.Errorf("%s path is a directory: %s", kind, path)
	}
	return nil
}

// Location loads the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Timezone {
	case "", "Local":
		return time.Local, nil
	case "UTC":
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// DraftsEnabled reports whether a draft database is configured.
func (c *Config) DraftsEnabled() bool {
	return c.DraftDB != "" && c.DraftDB != DraftsDisabled
}

// Address returns the server address as host:port
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDebug returns true if debug logging is enabled
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Config{Mode: %s, Host: %s, Port: %d, Directory: %s, OutputDirectory: %s, Template: %s, Font: %s, LogLevel: %s}",
		c.Mode, c.Host, c.Port, c.Directory, c.OutputDirectory, c.TemplatePath, c.FontName, c.LogLevel)
}

// IsServerMode returns true if MCP is served over HTTP/SSE
func (c *Config) IsServerMode() bool {
	return c.Mode == ModeServer
}

// IsStdioMode returns true if MCP is served over standard I/O
func (c *Config) IsStdioMode() bool {
	return c.Mode == ModeStdio
}

// IsWebMode returns true if the HTML form is served
func (c *Config) IsWebMode() bool {
	return c.Mode == ModeWeb
}
