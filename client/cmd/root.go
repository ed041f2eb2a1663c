package cmd

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/caesay/osu/util"
)

var (
	defaultConfigPath string
	defaultLogFile    string
	defaultStagingDir string

	configPath    string
	logLevel      string
	logFile       string
	releasesURL   string
	stagingDir    string
	checkInterval time.Duration

	rootCmd = &cobra.Command{
		Use:          "osu",
		Short:        "osu! game client",
		SilenceUsage: true,
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	configDir := "/etc/osu/"
	logDir := "/var/log/osu/"
	cacheDir := "/var/cache/osu/"
	if runtime.GOOS == "windows" {
		configDir = os.Getenv("PROGRAMDATA") + "\\osu\\"
		logDir = os.Getenv("PROGRAMDATA") + "\\osu\\"
		cacheDir = os.Getenv("PROGRAMDATA") + "\\osu\\"
	}

	defaultConfigPath = filepath.Join(configDir, "config.json")
	defaultLogFile = filepath.Join(logDir, "client.log")
	defaultStagingDir = filepath.Join(cacheDir, "updates")

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfigPath, "client config file location")
	rootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "l", "info", "sets the client log level")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", defaultLogFile, "sets the client log path. If console is specified the log will be output to stdout")
	rootCmd.PersistentFlags().StringVar(&releasesURL, "releases-url", "", "release manifest URL overriding the configured one")
	rootCmd.PersistentFlags().StringVar(&stagingDir, "staging-dir", "", "directory for downloaded updates overriding the configured one")
	rootCmd.PersistentFlags().DurationVar(&checkInterval, "update-check-interval", 0, "pause between update checks overriding the configured one")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(versionCmd)
}

// Config holds the client settings persisted in the config file. Flags
// override the stored values.
type Config struct {
	ReleasesURL   string `json:"releasesUrl"`
	StagingDir    string `json:"stagingDir"`
	CheckInterval string `json:"checkInterval"`
}

func loadConfig() (*Config, error) {
	cfg := &Config{
		ReleasesURL: "https://releases.ppy.sh/latest.json",
		StagingDir:  defaultStagingDir,
	}

	if _, err := os.Stat(configPath); err == nil {
		if err := util.ReadJson(configPath, cfg); err != nil {
			return nil, err
		}
	}

	if releasesURL != "" {
		cfg.ReleasesURL = releasesURL
	}
	if stagingDir != "" {
		cfg.StagingDir = stagingDir
	}
	return cfg, nil
}

func (c *Config) interval() time.Duration {
	if checkInterval > 0 {
		return checkInterval
	}
	if c.CheckInterval == "" {
		return 0
	}
	d, err := time.ParseDuration(c.CheckInterval)
	if err != nil {
		log.Warnf("invalid checkInterval %q in config, using the default: %v", c.CheckInterval, err)
		return 0
	}
	return d
}

// SetupCloseHandler cancels the given context on SIGINT and SIGTERM
func SetupCloseHandler(ctx context.Context, cancel context.CancelFunc) {
	termCh := make(chan os.Signal, 1)
	signal.Notify(termCh, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-ctx.Done():
		case <-termCh:
			log.Info("shutdown signal received")
			cancel()
		}
	}()
}
