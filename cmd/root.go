// =============================================================================
// Journal Access Sync - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands are attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (journal-sync)
//   ├── processCmd  (journal-sync process)
//   ├── validateCmd (journal-sync validate)
//   ├── ledgerCmd   (journal-sync ledger list)
//   ├── issnCmd     (journal-sync issn check|digit)
//   └── versionCmd  (journal-sync version)
//
// CONFIGURATION LAYERS (later layers win):
//   1. Built-in defaults
//   2. The YAML file given by --config (default config.yaml, optional)
//   3. .env and .env.local files, loaded into the environment
//   4. JOURNALSYNC_* environment variables, e.g. JOURNALSYNC_STORE_DSN
//   5. Command-line flags
//
// =============================================================================

package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ginjaninja78/journal-access-sync/internal/config"
	"github.com/ginjaninja78/journal-access-sync/internal/logging"
)

// envPrefix prefixes every environment variable read by the CLI.
const envPrefix = "JOURNALSYNC"

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the main configuration file.
var cfgFile string

// verbose enables debug logging unless a log level is set explicitly.
var verbose bool

// logCloser closes the log file, if logging goes to one.
var logCloser io.Closer

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "journal-sync",
	Short: "Journal Access Sync - validate and merge institution journal access sheets",
	Long: `Journal Access Sync collects the journal subscription sheets reported by
each institution, checks them against the canonical journal registry and merges
the ones that pass into a single consolidated dataset.

Each sheet is merged at most once: merged sheets are recorded in a ledger and
skipped on later runs. A sheet that fails any check is reported with the reason
and left for the institution to fix; other sheets are not affected.

Example Usage:
  journal-sync process                     # Validate and merge new sheets
  journal-sync validate                    # Check every new sheet, merge nothing
  journal-sync ledger list                 # Show merged sheets
  journal-sync issn check 0028-0836        # Verify an ISSN check digit`,

	SilenceUsage: true,

	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			_ = logCloser.Close()
		}
	},

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the CLI. An interrupt or SIGTERM cancels the command context;
// a run in progress finishes its current sheet and stops.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "config.yaml", "Path to the main configuration file")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	flags.String("log-level", "", "Log level (debug, info, warn, error)")
	flags.String("log-format", "", "Log format (json, console, auto)")
	flags.String("input-dir", "", "Directory scanned for institution sheets")
	flags.String("registry", "", "Canonical journal registry file (.csv or .xlsx)")
	flags.String("configs-dir", "", "Directory of institution configs")
	flags.String("output-dir", "", "Directory for run reports")
	flags.String("store-driver", "", "Dataset and ledger store (file, sqlite, postgres)")
	flags.String("store-dsn", "", "Database connection string for sqlite or postgres")

	bindFlag("log_level", "log-level")
	bindFlag("log_format", "log-format")
	bindFlag("input_dir", "input-dir")
	bindFlag("registry_file", "registry")
	bindFlag("configs_dir", "configs-dir")
	bindFlag("output_dir", "output-dir")
	bindFlag("store.driver", "store-driver")
	bindFlag("store.dsn", "store-dsn")
}

func bindFlag(key, flag string) {
	if err := viper.BindPFlag(key, rootCmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(fmt.Sprintf("failed to bind %s flag: %v", flag, err))
	}
}

// initConfig loads .env files and sets up environment variable handling.
func initConfig() {
	// .env.local is loaded first because godotenv never overrides a
	// variable that is already set.
	for _, envFile := range []string{".env.local", ".env"} {
		_ = godotenv.Load(envFile)
	}

	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

// =============================================================================
// CONFIGURATION LOADING
// =============================================================================

// loadConfig reads the main configuration, applies environment and flag
// overrides, validates the result and configures logging.
//
// A missing config.yaml is not an error unless --config was given
// explicitly.
func loadConfig(cmd *cobra.Command) (*config.MainConfig, error) {
	var (
		cfg *config.MainConfig
		err error
	)

	if _, statErr := os.Stat(cfgFile); statErr != nil && os.IsNotExist(statErr) && !cmd.Flags().Changed("config") {
		cfg = config.Default()
	} else {
		cfg, err = config.LoadMainConfig(cfgFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load main config: %w", err)
		}
	}

	applyOverrides(cfg)

	if verbose && !viper.IsSet("log_level") {
		cfg.LogLevel = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logCloser = logging.Configure(&logging.Config{
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
		Output:  cfg.LogOutput,
		NoColor: os.Getenv("NO_COLOR") != "",
	})

	return cfg, nil
}

// applyOverrides copies every configuration key set through the
// environment or a flag onto cfg.
func applyOverrides(cfg *config.MainConfig) {
	stringKeys := map[string]*string{
		"input_dir":              &cfg.InputDir,
		"registry_file":          &cfg.RegistryFile,
		"configs_dir":            &cfg.ConfigsDir,
		"output_dir":             &cfg.OutputDir,
		"csv_settings.delimiter": &cfg.CSVSettings.Delimiter,
		"csv_settings.encoding":  &cfg.CSVSettings.Encoding,
		"store.driver":           &cfg.Store.Driver,
		"store.dsn":              &cfg.Store.DSN,
		"store.dataset_file":     &cfg.Store.DatasetFile,
		"store.ledger_file":      &cfg.Store.LedgerFile,
		"store.ledger_format":    &cfg.Store.LedgerFormat,
		"artifacts.backend":      &cfg.Artifacts.Backend,
		"artifacts.dir":          &cfg.Artifacts.Dir,
		"artifacts.bucket":       &cfg.Artifacts.Bucket,
		"artifacts.prefix":       &cfg.Artifacts.Prefix,
		"artifacts.region":       &cfg.Artifacts.Region,
		"artifacts.endpoint":     &cfg.Artifacts.Endpoint,
		"log_level":              &cfg.LogLevel,
		"log_format":             &cfg.LogFormat,
		"log_output":             &cfg.LogOutput,
	}
	for key, target := range stringKeys {
		if viper.IsSet(key) {
			*target = viper.GetString(key)
		}
	}

	intKeys := map[string]*int{
		"expected_rows":   &cfg.ExpectedRows,
		"max_concurrency": &cfg.MaxConcurrency,
	}
	for key, target := range intKeys {
		if viper.IsSet(key) {
			*target = viper.GetInt(key)
		}
	}

	if viper.IsSet("include_notes") {
		cfg.IncludeNotes = viper.GetBool("include_notes")
	}
	if viper.IsSet("missing_tokens") {
		cfg.MissingTokens = splitList(viper.GetStringSlice("missing_tokens"))
	}

	// A ledger file renamed to .json switches format unless the format
	// was set too.
	if viper.IsSet("store.ledger_file") && !viper.IsSet("store.ledger_format") {
		cfg.Store.LedgerFormat = ""
		config.ApplyDefaults(cfg)
	}
}

// splitList also accepts the comma separated form used in environment
// variables ("missing,null,n/a").
func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
