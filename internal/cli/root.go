package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"imgsearch/internal/config"
	"imgsearch/pkg/logger"
)

var (
	flagConfig   string
	flagDBPath   string
	flagDBName   string
	flagSocket   string
	flagLogLevel string
)

var rootCmd = &cobra.Command{
	Use:          "imgsearch",
	Short:        "Content-based image retrieval over a vocabulary tree",
	SilenceUsage: true,
	Long: `imgsearch trains a visual-word catalog from precomputed image descriptors
and answers similarity queries over a unix socket or HTTP.`,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfig, "config", "c", "", "YAML configuration file")
	pf.StringVar(&flagDBPath, "db-path", "", "catalog directory (overrides dbpath)")
	pf.StringVar(&flagDBName, "db-name", "", "catalog base name (overrides dbname)")
	pf.StringVar(&flagSocket, "socket", "", "unix socket path (overrides socket)")
	pf.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error (overrides log.level)")
}

// Execute is called by main.go.
func Execute() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig resolves the configuration from --config and the override
// flags, then initializes logging from it.
func loadConfig() (*config.Config, error) {
	var (
		conf *config.Config
		err  error
	)
	if flagConfig != "" {
		conf, err = config.FromFile(flagConfig)
	} else {
		dir := flagDBPath
		if dir == "" {
			dir = "."
		}
		conf, err = config.NewConfig(dir)
	}
	if err != nil {
		return nil, err
	}

	if flagDBPath != "" {
		conf.DBPath = flagDBPath
	}
	if flagDBName != "" {
		conf.DBName = flagDBName
	}
	if flagSocket != "" {
		conf.Socket = flagSocket
	}
	if flagLogLevel != "" {
		conf.Log.Level = flagLogLevel
	}

	if err := logger.InitLogger(conf.Log.Level, conf.Log.File); err != nil {
		return nil, fmt.Errorf("cannot initialize logger: %w", err)
	}
	return conf, nil
}
