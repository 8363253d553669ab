// internal/cli/root.go
package aletheia

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/mwiater/aletheia/internal/appconfig"
	"github.com/mwiater/aletheia/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile       string
	currentConfig *appconfig.Config

	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "aletheia",
	Short: "aletheia: entropy guessing, word grouping and engine benchmarks from the terminal",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 1) Load config (file or defaults)
		if err := ensureConfigLoaded(); err != nil {
			return err
		}

		// 2) If user did NOT set a flag, copy the config value into the flag so
		//    both pflags and viper reflect the same, final value.
		for _, name := range []string{"debug", "hardMode", "simd"} {
			if !cmd.Flags().Changed(name) {
				val := viper.GetBool(name)
				_ = cmd.Flags().Set(name, strconv.FormatBool(val))
			}
		}

		// 3) Materialize the fully merged configuration into currentConfig
		//    (flags > config > defaults). This gives other packages a stable snapshot.
		cfg := appconfig.Defaults()
		if err := viper.Unmarshal(&cfg); err != nil {
			return fmt.Errorf("unmarshal config: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}
		cfg.ConfigPath = viper.ConfigFileUsed()
		currentConfig = &cfg
		logging.SetDebug(cfg.Debug)

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// SetVersionInfo records build metadata for the version command.
func SetVersionInfo(v, c, d string) {
	version, commit, date = v, c, d
}

func init() {
	cobra.OnInitialize(initConfig)

	// --config (defaults to your existing path)
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", appconfig.DefaultConfigPath, "config file (e.g., config/config.json)")

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging and engine call tracing")
	rootCmd.PersistentFlags().Bool("hardMode", false, "restrict guesses to remaining candidates")
	rootCmd.PersistentFlags().Bool("simd", true, "use vectorized candidate filtering")

	// Bind flags to Viper keys (flags override config)
	_ = viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	_ = viper.BindPFlag("hardMode", rootCmd.PersistentFlags().Lookup("hardMode"))
	_ = viper.BindPFlag("simd", rootCmd.PersistentFlags().Lookup("simd"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}
}

// ensureConfigLoaded reads the config and sets safe defaults.
func ensureConfigLoaded() error {
	defaults := appconfig.Defaults()
	viper.SetDefault("debug", false)
	viper.SetDefault("hardMode", false)
	viper.SetDefault("simd", defaults.Simd)
	viper.SetDefault("engine", defaults.Engine)

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// No file: fine, we'll use defaults/flags
			return nil
		}
		return fmt.Errorf("failed to load config: %w", err)
	}
	return nil
}

// GetConfig returns the loaded application configuration for other packages.
func GetConfig() *appconfig.Config {
	return currentConfig
}

// config returns the merged configuration, or defaults before PersistentPreRunE ran.
func config() appconfig.Config {
	if currentConfig == nil {
		return appconfig.Defaults()
	}
	return *currentConfig
}

// Helper accessors (reflect merged Viper state)
func DebugEnabled() bool { return viper.GetBool("debug") }
