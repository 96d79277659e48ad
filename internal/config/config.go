// Package config loads the converter's settings from command line
// flags and PDF2DOCX_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/a3tai/pdf-to-docx/internal/convert"
	"github.com/a3tai/pdf-to-docx/internal/layout"
)

const (
	DefaultLogLevel    = "info"
	DefaultMaxFileSize = 100 * 1024 * 1024 // 100MB
)

// Config holds all configuration for the converter.
type Config struct {
	// Input/output paths
	Input  string
	Output string

	// Conversion behaviour
	PreserveFormatting bool
	IncludeMetadata    bool
	StreamPages        bool

	// Layout heuristics thresholds
	ColumnGapFactor  float64
	RowOverlapRatio  float64
	TableMinRows     int
	TableMinCols     int
	VectorComplexity int

	// Application configuration
	Version     string
	LogLevel    string
	MaxFileSize int64 // Maximum PDF file size in bytes
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	lay := layout.DefaultConfig()
	return &Config{
		PreserveFormatting: true,
		IncludeMetadata:    true,
		StreamPages:        false,
		ColumnGapFactor:    lay.ColumnGapFactor,
		RowOverlapRatio:    lay.RowOverlapRatio,
		TableMinRows:       lay.TableMinRows,
		TableMinCols:       lay.TableMinCols,
		VectorComplexity:   lay.VectorComplexity,
		Version:            "1.0.0",
		LogLevel:           DefaultLogLevel,
		MaxFileSize:        DefaultMaxFileSize,
	}
}

// LoadFromFlags parses command line flags and returns a configuration.
func LoadFromFlags() (*Config, error) {
	cfg := DefaultConfig()

	setupViperEnvironment(cfg)
	defineCommandLineFlags(cfg)
	bindFlagsToViper()
	setupUsageMessage()

	pflag.Parse()

	populateConfigFromViper(cfg)

	// A bare positional argument serves as the input path.
	if cfg.Input == "" && pflag.NArg() > 0 {
		cfg.Input = pflag.Arg(0)
	}
	if cfg.Input != "" {
		if expandedPath, err := filepath.Abs(cfg.Input); err == nil {
			cfg.Input = expandedPath
		}
	}
	if cfg.Output == "" && cfg.Input != "" {
		cfg.Output = strings.TrimSuffix(cfg.Input, filepath.Ext(cfg.Input)) + ".docx"
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupViperEnvironment configures viper with environment variables and defaults.
func setupViperEnvironment(cfg *Config) {
	viper.SetEnvPrefix("PDF2DOCX")
	viper.AutomaticEnv()

	viper.SetDefault("input", cfg.Input)
	viper.SetDefault("output", cfg.Output)
	viper.SetDefault("preserve-formatting", cfg.PreserveFormatting)
	viper.SetDefault("include-metadata", cfg.IncludeMetadata)
	viper.SetDefault("stream", cfg.StreamPages)
	viper.SetDefault("column-gap-factor", cfg.ColumnGapFactor)
	viper.SetDefault("row-overlap-ratio", cfg.RowOverlapRatio)
	viper.SetDefault("table-min-rows", cfg.TableMinRows)
	viper.SetDefault("table-min-cols", cfg.TableMinCols)
	viper.SetDefault("vector-complexity", cfg.VectorComplexity)
	viper.SetDefault("loglevel", cfg.LogLevel)
	viper.SetDefault("maxfilesize", cfg.MaxFileSize)
}

// defineCommandLineFlags sets up all command line flags.
func defineCommandLineFlags(cfg *Config) {
	pflag.String("input", cfg.Input, "Source PDF file")
	pflag.String("output", cfg.Output, "Destination DOCX file (defaults to the input path with .docx)")
	pflag.Bool("preserve-formatting", cfg.PreserveFormatting, "Keep character formatting and alignment")
	pflag.Bool("include-metadata", cfg.IncludeMetadata, "Copy document metadata to the output")
	pflag.Bool("stream", cfg.StreamPages, "Serialize pages as they are processed (bounded memory)")
	pflag.Float64("column-gap-factor", cfg.ColumnGapFactor, "Column break threshold as a multiple of the median character width")
	pflag.Float64("row-overlap-ratio", cfg.RowOverlapRatio, "Minimum vertical overlap fraction for same-row grouping")
	pflag.Int("table-min-rows", cfg.TableMinRows, "Minimum rows for table promotion")
	pflag.Int("table-min-cols", cfg.TableMinCols, "Minimum columns for table promotion")
	pflag.Int("vector-complexity", cfg.VectorComplexity, "Vector primitive count above which art is flattened")
	pflag.String("loglevel", cfg.LogLevel, "Log level (debug, info, warn, error)")
	pflag.Int64("maxfilesize", cfg.MaxFileSize, "Maximum PDF file size in bytes")
}

// bindFlagsToViper binds command line flags to viper configuration.
func bindFlagsToViper() {
	for _, name := range []string{
		"input", "output", "preserve-formatting", "include-metadata", "stream",
		"column-gap-factor", "row-overlap-ratio", "table-min-rows",
		"table-min-cols", "vector-complexity", "loglevel", "maxfilesize",
	} {
		_ = viper.BindPFlag(name, pflag.Lookup(name))
	}
}

// setupUsageMessage configures the custom usage message.
func setupUsageMessage() {
	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage of %s:\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\npdf-to-docx - Structural PDF to DOCX conversion\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		pflag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s report.pdf                          # convert to report.docx\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --input=in.pdf --output=out.docx    # explicit paths\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s --stream big.pdf                    # bounded-memory streaming\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  PDF2DOCX_INPUT        Source PDF file\n")
		fmt.Fprintf(os.Stderr, "  PDF2DOCX_OUTPUT       Destination DOCX file\n")
		fmt.Fprintf(os.Stderr, "  PDF2DOCX_STREAM       Streaming mode\n")
		fmt.Fprintf(os.Stderr, "  PDF2DOCX_LOGLEVEL     Log level\n")
		fmt.Fprintf(os.Stderr, "  PDF2DOCX_MAXFILESIZE  Maximum file size\n")
	}
}

// populateConfigFromViper fills the config struct with values from viper.
func populateConfigFromViper(cfg *Config) {
	cfg.Input = viper.GetString("input")
	cfg.Output = viper.GetString("output")
	cfg.PreserveFormatting = viper.GetBool("preserve-formatting")
	cfg.IncludeMetadata = viper.GetBool("include-metadata")
	cfg.StreamPages = viper.GetBool("stream")
	cfg.ColumnGapFactor = viper.GetFloat64("column-gap-factor")
	cfg.RowOverlapRatio = viper.GetFloat64("row-overlap-ratio")
	cfg.TableMinRows = viper.GetInt("table-min-rows")
	cfg.TableMinCols = viper.GetInt("table-min-cols")
	cfg.VectorComplexity = viper.GetInt("vector-complexity")
	cfg.LogLevel = viper.GetString("loglevel")
	cfg.MaxFileSize = viper.GetInt64("maxfilesize")
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Input == "" {
		return errors.New("input file cannot be empty")
	}
	info, err := os.Stat(c.Input)
	if err != nil {
		return fmt.Errorf("cannot access input file %s: %w", c.Input, err)
	}
	if info.IsDir() {
		return fmt.Errorf("input %s is a directory", c.Input)
	}
	if c.MaxFileSize <= 0 {
		return errors.New("maximum file size must be positive")
	}
	if info.Size() > c.MaxFileSize {
		return fmt.Errorf("input file exceeds maximum size (%d > %d bytes)", info.Size(), c.MaxFileSize)
	}
	if c.Output == "" {
		return errors.New("output file cannot be empty")
	}

	if c.ColumnGapFactor <= 0 {
		return errors.New("column gap factor must be positive")
	}
	if c.RowOverlapRatio <= 0 || c.RowOverlapRatio > 1 {
		return errors.New("row overlap ratio must be in (0, 1]")
	}
	if c.TableMinRows < 2 || c.TableMinCols < 2 {
		return errors.New("table promotion requires at least a 2x2 grid")
	}
	if c.VectorComplexity < 0 {
		return errors.New("vector complexity must not be negative")
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
	return nil
}

// LayoutConfig returns the layout thresholds.
func (c *Config) LayoutConfig() layout.Config {
	lay := layout.DefaultConfig()
	lay.ColumnGapFactor = c.ColumnGapFactor
	lay.RowOverlapRatio = c.RowOverlapRatio
	lay.TableMinRows = c.TableMinRows
	lay.TableMinCols = c.TableMinCols
	lay.VectorComplexity = c.VectorComplexity
	return lay
}

// ConvertOptions returns the conversion options for this configuration.
func (c *Config) ConvertOptions() convert.Options {
	return convert.Options{
		PreserveFormatting: c.PreserveFormatting,
		IncludeMetadata:    c.IncludeMetadata,
		StreamPages:        c.StreamPages,
		Layout:             c.LayoutConfig(),
	}
}

// IsDebug returns true if debug logging is enabled.
func (c *Config) IsDebug() bool {
	return c.LogLevel == "debug"
}

// String returns a string representation of the configuration.
func (c *Config) String() string {
	return fmt.Sprintf("Config{Input: %s, Output: %s, Stream: %t, PreserveFormatting: %t, IncludeMetadata: %t, LogLevel: %s}",
		c.Input, c.Output, c.StreamPages, c.PreserveFormatting, c.IncludeMetadata, c.LogLevel)
}
