package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ossyrian/mpak/internal/config"
	"github.com/ossyrian/mpak/internal/logging"
	"github.com/ossyrian/mpak/internal/parser"
)

// app carries the configuration shared by every subcommand
type app struct {
	v        *viper.Viper
	cfgFile  string
	cfg      *config.Config
	closeLog func() error
}

// newRootCmd builds the mpak command tree on its own viper instance
func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:               "mpak",
		Short:             "List, print and extract files from Mpak archives",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE:  a.setup,
		PersistentPostRunE: a.teardown,
	}

	rootCmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "path to config file")
	rootCmd.PersistentFlags().String("log-level", "warn", "log level (trace, debug, info, warn, error, fatal)")
	rootCmd.PersistentFlags().String("log-output-dir", "", "directory to write log files (if set, logs are written to both stderr and file)")

	a.v.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	a.v.BindPFlag("log_output_dir", rootCmd.PersistentFlags().Lookup("log-output-dir"))

	rootCmd.AddCommand(
		a.lsCmd(),
		a.catCmd(),
		a.unzipCmd(),
		a.checkCmd(),
		a.sumCmd(),
		a.infoCmd(),
	)

	return rootCmd
}

// initConfig reads in config file and environment variables if set
func (a *app) initConfig(cmd *cobra.Command) {
	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "mpak"))
		}
		a.v.AddConfigPath("/etc/mpak")
		a.v.SetConfigName("config")
		a.v.SetConfigType("toml")
	}

	a.v.SetEnvPrefix("MPAK")
	a.v.AutomaticEnv()

	if err := a.v.ReadInConfig(); err == nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Using config file: %s\n", a.v.ConfigFileUsed())
	}
}

// setup loads configuration and logging before any subcommand runs
func (a *app) setup(cmd *cobra.Command, args []string) error {
	a.initConfig(cmd)

	a.cfg = &config.Config{}
	if err := a.v.Unmarshal(a.cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	closeLog, err := logging.Setup(logging.Options{
		Level:   a.cfg.LogLevel,
		Dir:     a.cfg.LogOutputDir,
		Console: cmd.ErrOrStderr(),
	})
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	a.closeLog = closeLog

	return nil
}

// teardown closes the log file opened by setup
func (a *app) teardown(cmd *cobra.Command, args []string) error {
	if a.closeLog == nil {
		return nil
	}
	return a.closeLog()
}

// open opens the archive named on the command line
func (a *app) open(path string) (*parser.Archive, error) {
	slog.Info("opening archive", "input", path)

	archive, err := parser.Open(path, parser.WithLogger(slog.Default()))
	if err != nil {
		return nil, fmt.Errorf("failed to open Mpak file: %w", err)
	}
	return archive, nil
}

func main() {
	// A closed stdout pipe (mpak cat ... | head) must surface as EPIPE
	// from Write instead of killing the process.
	signal.Ignore(syscall.SIGPIPE)

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
