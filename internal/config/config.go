// =============================================================================
// Journal Access Sync - Configuration Module
// =============================================================================
//
// This module is responsible for loading and managing all configuration files.
// It handles both the main application configuration and the per-institution
// configurations that map source files to institutions.
//
// CONFIGURATION FILES:
//   1. Main Config (config.yaml): Global application settings
//   2. Institution Configs (configs/*.yaml): One file per institution
//
// ARCHITECTURE:
//   The configuration system is designed to be:
//   - Modular: Each institution has its own configuration file
//   - Extensible: New institutions can be added without code changes
//   - Validated: All configurations are validated on load
//
// Environment variables (JOURNALSYNC_*) and command-line flags are layered
// on top of the YAML values by the CLI; see cmd/root.go.
//
// =============================================================================

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// CONSTANTS
// =============================================================================

// Store drivers.
const (
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Artifact backends.
const (
	BackendFS   = "fs"
	BackendS3   = "s3"
	BackendGCS  = "gcs"
	BackendNone = "none"
)

// Ledger file formats for the file store.
const (
	LedgerFormatCSV  = "csv"
	LedgerFormatJSON = "json"
)

// =============================================================================
// MAIN CONFIGURATION STRUCTURE
// =============================================================================

// MainConfig holds the global application configuration.
// This is loaded from the main config.yaml file.
type MainConfig struct {
	// =========================================================================
	// DIRECTORY SETTINGS
	// =========================================================================

	// InputDir is the folder scanned for institution sheets (.csv, .xlsx).
	// Default: "./input"
	InputDir string `yaml:"input_dir"`

	// RegistryFile is the canonical journal registry (.csv or .xlsx) with
	// journal and issn columns.
	// Default: "./registry/journals.csv"
	RegistryFile string `yaml:"registry_file"`

	// ConfigsDir is the directory containing institution configurations.
	// Default: "./configs"
	ConfigsDir string `yaml:"configs_dir"`

	// OutputDir receives run reports.
	// Default: "./output"
	OutputDir string `yaml:"output_dir"`

	// =========================================================================
	// VALIDATION SETTINGS
	// =========================================================================

	// ExpectedRows is the row count every sheet must have.
	// 0 means the size of the canonical registry.
	ExpectedRows int `yaml:"expected_rows"`

	// IncludeNotes also runs the missing-value check on the notes column.
	// Default: false
	IncludeNotes bool `yaml:"include_notes"`

	// MissingTokens are the cell values treated as missing, matched
	// case-insensitively. Empty means the built-in list.
	MissingTokens []string `yaml:"missing_tokens"`

	// =========================================================================
	// PROCESSING SETTINGS
	// =========================================================================

	// MaxConcurrency bounds how many sheets are fetched and validated at
	// once. Merges are always applied one at a time in list order.
	// Default: 1
	MaxConcurrency int `yaml:"max_concurrency"`

	// CSVSettings applies to every CSV sheet unless an institution
	// overrides it.
	CSVSettings CSVSettings `yaml:"csv_settings"`

	// =========================================================================
	// PERSISTENCE SETTINGS
	// =========================================================================

	// Store selects where the consolidated dataset and ledger live.
	Store StoreConfig `yaml:"store"`

	// Artifacts selects where standalone institution sheets are written.
	Artifacts ArtifactsConfig `yaml:"artifacts"`

	// =========================================================================
	// LOGGING SETTINGS
	// =========================================================================

	// LogLevel controls the verbosity of logging.
	// Valid values: "debug", "info", "warn", "error"
	// Default: "info"
	LogLevel string `yaml:"log_level"`

	// LogFormat is "json", "console" or "auto".
	// Default: "auto"
	LogFormat string `yaml:"log_format"`

	// LogOutput is "stderr", "stdout" or a file path.
	// Default: "stderr"
	LogOutput string `yaml:"log_output"`
}

// CSVSettings contains settings for parsing CSV files.
type CSVSettings struct {
	// Delimiter is the character used to separate fields.
	// Default: ","
	Delimiter string `yaml:"delimiter"`

	// Encoding is the character encoding of the file.
	// Supported: "UTF-8", "ISO-8859-1", "Windows-1252"
	// Default: "UTF-8"
	Encoding string `yaml:"encoding"`
}

// DelimiterRune resolves the configured delimiter, accepting the names
// "tab", "pipe" and "semicolon" as well as a single character.
func (s CSVSettings) DelimiterRune() (rune, error) {
	switch strings.ToLower(s.Delimiter) {
	case "", ",", "comma":
		return ',', nil
	case "\\t", "\t", "tab":
		return '\t', nil
	case "|", "pipe":
		return '|', nil
	case ";", "semicolon":
		return ';', nil
	}
	r := []rune(s.Delimiter)
	if len(r) != 1 || r[0] == '"' || r[0] == '\r' || r[0] == '\n' {
		return 0, fmt.Errorf("csv_settings.delimiter must be a single character, got %q", s.Delimiter)
	}
	return r[0], nil
}

// StoreConfig selects the dataset and ledger backend.
type StoreConfig struct {
	// Driver is "file", "sqlite" or "postgres".
	// Default: "file"
	Driver string `yaml:"driver"`

	// DSN is the database connection string for sqlite and postgres.
	DSN string `yaml:"dsn"`

	// DatasetFile is the consolidated dataset CSV. The SQL drivers export
	// the dataset here after every commit.
	// Default: "./data/journals_access.csv"
	DatasetFile string `yaml:"dataset_file"`

	// LedgerFile is the merge ledger for the file driver.
	// Default: "./data/merged_sheets.csv"
	LedgerFile string `yaml:"ledger_file"`

	// LedgerFormat is "csv" or "json". Derived from the LedgerFile
	// extension when empty.
	LedgerFormat string `yaml:"ledger_format"`
}

// ArtifactsConfig selects the standalone sheet backend.
type ArtifactsConfig struct {
	// Backend is "fs", "s3", "gcs" or "none".
	// Default: "fs"
	Backend string `yaml:"backend"`

	// Dir is the local archive directory for the fs backend.
	// Default: "./data/institutions"
	Dir string `yaml:"dir"`

	// Bucket and Prefix locate objects for the s3 and gcs backends.
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`

	// Region is the AWS region for the s3 backend.
	Region string `yaml:"region"`

	// Endpoint overrides the S3 endpoint, for MinIO or LocalStack.
	Endpoint string `yaml:"endpoint"`
}

// =============================================================================
// INSTITUTION CONFIGURATION STRUCTURE
// =============================================================================

// InstitutionConfig maps source files to one institution.
type InstitutionConfig struct {
	// InstitutionName is the value written to the university column of
	// merged rows.
	InstitutionName string `yaml:"institution_name"`

	// InstitutionCode is a short code used in artifact names and logs.
	InstitutionCode string `yaml:"institution_code"`

	// FileMatchingPatterns is a list of glob patterns matched against the
	// base name of files in the input directory.
	//
	// Examples:
	//   - "uni_a_*.csv"
	//   - "*_oxford.xlsx"
	FileMatchingPatterns []string `yaml:"file_matching_patterns"`

	// CSVSettings overrides the main CSV settings for this institution.
	CSVSettings *CSVSettings `yaml:"csv_settings,omitempty"`
}

// =============================================================================
// CONFIGURATION LOADING FUNCTIONS
// =============================================================================

// Default returns a configuration with every default applied. It is used
// when no configuration file exists.
func Default() *MainConfig {
	var config MainConfig
	ApplyDefaults(&config)
	return &config
}

// LoadMainConfig loads the main configuration from a YAML file.
//
// PARAMETERS:
//   - configPath: The path to the main configuration file.
//
// RETURNS:
//   - A pointer to the MainConfig struct, with defaults applied.
//   - An error if the file cannot be read or parsed.
//
// Validation is left to Validate so that environment and flag overrides
// can be applied first.
func LoadMainConfig(configPath string) (*MainConfig, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config MainConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	ApplyDefaults(&config)

	return &config, nil
}

// ApplyDefaults sets default values for any unset configuration options.
func ApplyDefaults(config *MainConfig) {
	if config.InputDir == "" {
		config.InputDir = "./input"
	}
	if config.RegistryFile == "" {
		config.RegistryFile = "./registry/journals.csv"
	}
	if config.ConfigsDir == "" {
		config.ConfigsDir = "./configs"
	}
	if config.OutputDir == "" {
		config.OutputDir = "./output"
	}
	if config.MaxConcurrency == 0 {
		config.MaxConcurrency = 1
	}

	applyCSVDefaults(&config.CSVSettings)

	if config.Store.Driver == "" {
		config.Store.Driver = DriverFile
	}
	if config.Store.DatasetFile == "" {
		config.Store.DatasetFile = "./data/journals_access.csv"
	}
	if config.Store.LedgerFile == "" {
		config.Store.LedgerFile = "./data/merged_sheets.csv"
	}
	if config.Store.LedgerFormat == "" {
		config.Store.LedgerFormat = LedgerFormatCSV
		if strings.EqualFold(filepath.Ext(config.Store.LedgerFile), ".json") {
			config.Store.LedgerFormat = LedgerFormatJSON
		}
	}

	if config.Artifacts.Backend == "" {
		config.Artifacts.Backend = BackendFS
	}
	if config.Artifacts.Dir == "" {
		config.Artifacts.Dir = "./data/institutions"
	}

	if config.LogLevel == "" {
		config.LogLevel = "info"
	}
	if config.LogFormat == "" {
		config.LogFormat = "auto"
	}
	if config.LogOutput == "" {
		config.LogOutput = "stderr"
	}
}

func applyCSVDefaults(settings *CSVSettings) {
	if settings.Delimiter == "" {
		settings.Delimiter = ","
	}
	if settings.Encoding == "" {
		settings.Encoding = "UTF-8"
	}
}

// Validate checks the configuration and creates the output directory.
func Validate(config *MainConfig) error {
	if config.ExpectedRows < 0 {
		return fmt.Errorf("expected_rows must not be negative, got %d", config.ExpectedRows)
	}
	if config.MaxConcurrency < 1 {
		return fmt.Errorf("max_concurrency must be at least 1, got %d", config.MaxConcurrency)
	}
	if _, err := config.CSVSettings.DelimiterRune(); err != nil {
		return err
	}

	switch config.Store.Driver {
	case DriverFile:
		if config.Store.LedgerFormat != LedgerFormatCSV && config.Store.LedgerFormat != LedgerFormatJSON {
			return fmt.Errorf("unsupported store.ledger_format %q", config.Store.LedgerFormat)
		}
	case DriverSQLite, DriverPostgres:
		if config.Store.DSN == "" {
			return fmt.Errorf("store.dsn is required for driver %q", config.Store.Driver)
		}
	default:
		return fmt.Errorf("unsupported store.driver %q", config.Store.Driver)
	}

	switch config.Artifacts.Backend {
	case BackendFS, BackendNone:
	case BackendS3, BackendGCS:
		if config.Artifacts.Bucket == "" {
			return fmt.Errorf("artifacts.bucket is required for backend %q", config.Artifacts.Backend)
		}
	default:
		return fmt.Errorf("unsupported artifacts.backend %q", config.Artifacts.Backend)
	}

	if err := os.MkdirAll(config.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", config.OutputDir, err)
	}

	return nil
}

// LoadInstitutionConfigs loads all institution configurations from a directory.
//
// PARAMETERS:
//   - configsDir: The directory containing institution configuration files.
//
// RETURNS:
//   - The configurations, ordered by file name.
//   - An error if a file cannot be parsed, lacks a name, or reuses a code.
func LoadInstitutionConfigs(configsDir string) ([]*InstitutionConfig, error) {
	files, err := filepath.Glob(filepath.Join(configsDir, "*.yaml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}

	ymlFiles, err := filepath.Glob(filepath.Join(configsDir, "*.yml"))
	if err != nil {
		return nil, fmt.Errorf("failed to list config files: %w", err)
	}
	files = append(files, ymlFiles...)

	var configs []*InstitutionConfig
	codes := make(map[string]string)

	for _, file := range files {
		config, err := loadInstitutionConfig(file)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", file, err)
		}

		if config.InstitutionCode == "" {
			config.InstitutionCode = strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
		}
		if prev, ok := codes[config.InstitutionCode]; ok {
			return nil, fmt.Errorf("institution code %q used by both %s and %s", config.InstitutionCode, prev, file)
		}
		codes[config.InstitutionCode] = file

		configs = append(configs, config)
	}

	return configs, nil
}

// loadInstitutionConfig loads a single institution configuration file.
func loadInstitutionConfig(filePath string) (*InstitutionConfig, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	var config InstitutionConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}

	if config.InstitutionName == "" {
		return nil, fmt.Errorf("institution_name is required")
	}
	if len(config.FileMatchingPatterns) == 0 {
		return nil, fmt.Errorf("file_matching_patterns must not be empty")
	}
	for _, pattern := range config.FileMatchingPatterns {
		if _, err := filepath.Match(pattern, ""); err != nil {
			return nil, fmt.Errorf("invalid file matching pattern %q: %w", pattern, err)
		}
	}
	if config.CSVSettings != nil {
		applyCSVDefaults(config.CSVSettings)
	}

	return &config, nil
}

// EffectiveCSVSettings returns the institution override or the main settings.
func (c *InstitutionConfig) EffectiveCSVSettings(main CSVSettings) CSVSettings {
	if c != nil && c.CSVSettings != nil {
		return *c.CSVSettings
	}
	return main
}
