// Package main provides the vibe-xcf command-line tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Exit codes
const (
	ExitSuccess = 0
	ExitError   = 1
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return ExitError
	}
	return ExitSuccess
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vibe-xcf",
		Short: "Region queries over VCF, VCF.gz, BCF and uncompressed BCF",
		Long: `vibe-xcf answers genomic region queries against variant files in any of
the four storage forms. Block-compressed files with a CSI or tabix index are
queried by seeking; everything else is scanned.`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}
	cmd.SetVersionTemplate("vibe-xcf version {{.Version}}\n")

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")
	viper.BindPFlag("verbose", cmd.PersistentFlags().Lookup("verbose"))

	cmd.AddCommand(newDetectCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// configFile returns ~/.vibe-xcf.yaml.
func configFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".vibe-xcf.yaml"), nil
}

// configDefaults lists every configuration key. The type of each default
// is the type config set stores.
var configDefaults = map[string]any{
	"verbose":         false,
	"index.format":    "csi",
	"index.min_shift": 14,
	"index.depth":     0,
	"query.workers":   1,
	"query.format":    "vcf",
}

// initConfig loads ~/.vibe-xcf.yaml and VIBE_XCF_* environment overrides.
func initConfig() error {
	for key, value := range configDefaults {
		viper.SetDefault(key, value)
	}

	viper.SetEnvPrefix("VIBE_XCF")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	cfg, err := configFile()
	if err != nil {
		return err
	}
	viper.SetConfigFile(cfg)
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("reading config: %w", err)
		}
	}
	return nil
}

// newLogger builds the CLI logger. Production logging keeps stderr quiet
// apart from warnings; --verbose switches to a development logger.
func newLogger() (*zap.Logger, error) {
	if viper.GetBool("verbose") {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	cfg.Encoding = "console"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}
