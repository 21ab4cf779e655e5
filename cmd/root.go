package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/logger"
)

var (
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger
)

var rootCmd = &cobra.Command{
	Use:   "idorscan",
	Short: "Enumerate object identifiers and flag responses that break the pattern",
	Long: `idorscan - IDOR discovery by response fingerprinting

Requests a URL template such as https://api.example.com/orders/{id} for every
identifier in a range, picks the dominant response shape as the baseline and
reports identifiers whose status or body length deviates from it.

COMMANDS:
  idorscan scan job.yaml                       - Run a scan described by a job file
  idorscan scan --target URL --range 1,500     - Run a scan from flags
  idorscan serve                               - Start the HTTP/websocket API

Only scan systems you are authorized to test.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := initConfig(); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		var err error
		log, err = logger.New(cfg.Logger)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if log != nil {
			// Sync errors on stdout/stderr are expected on Linux and can be safely ignored
			if err := log.Sync(); err != nil && !isStdSyncError(err) {
				fmt.Fprintf(os.Stderr, "Warning: failed to sync logger: %v\n", err)
			}
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is .idorscan.yaml in . or $HOME)")

	// Logging configuration
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "console", "log format (json, console)")
	viper.BindPFlag("logger.level", rootCmd.PersistentFlags().Lookup("log-level"))
	viper.BindPFlag("logger.format", rootCmd.PersistentFlags().Lookup("log-format"))
	viper.BindEnv("logger.level", "IDORSCAN_LOG_LEVEL")
	viper.BindEnv("logger.format", "IDORSCAN_LOG_FORMAT")

	// HTTP client
	rootCmd.PersistentFlags().Bool("block-private", false, "refuse to connect to private and loopback addresses")
	viper.BindPFlag("http.block_private", rootCmd.PersistentFlags().Lookup("block-private"))
	// Redis configuration
	rootCmd.PersistentFlags().String("redis-addr", "", "Redis address for the report store (empty keeps reports in memory)")
	rootCmd.PersistentFlags().String("redis-password", "", "Redis password")
	rootCmd.PersistentFlags().Int("redis-db", 0, "Redis database number")
	viper.BindPFlag("redis.addr", rootCmd.PersistentFlags().Lookup("redis-addr"))
	viper.BindPFlag("redis.password", rootCmd.PersistentFlags().Lookup("redis-password"))
	viper.BindPFlag("redis.db", rootCmd.PersistentFlags().Lookup("redis-db"))
	viper.BindEnv("redis.addr", "IDORSCAN_REDIS_ADDR", "REDIS_URL")
	viper.BindEnv("redis.password", "IDORSCAN_REDIS_PASSWORD")

	// API keys (environment variables only, never flags)
	viper.BindEnv("server.api_key", "IDORSCAN_API_KEY")

	setDefaults(config.DefaultConfig())
}

// setDefaults registers defaults so env-only keys unmarshal too
func setDefaults(d *config.Config) {
	viper.SetDefault("logger.level", d.Logger.Level)
	viper.SetDefault("logger.format", d.Logger.Format)
	viper.SetDefault("logger.output_paths", d.Logger.OutputPaths)

	viper.SetDefault("http.block_private", d.HTTP.BlockPrivate)
	viper.SetDefault("http.follow_redirects", d.HTTP.FollowRedirects)
	viper.SetDefault("http.max_redirects", d.HTTP.MaxRedirects)

	viper.SetDefault("telemetry.enabled", d.Telemetry.Enabled)
	viper.SetDefault("telemetry.service_name", d.Telemetry.ServiceName)
	viper.SetDefault("telemetry.exporter_type", d.Telemetry.ExporterType)
	viper.SetDefault("telemetry.endpoint", d.Telemetry.Endpoint)
	viper.SetDefault("telemetry.sample_rate", d.Telemetry.SampleRate)

	viper.SetDefault("redis.max_retries", d.Redis.MaxRetries)
	viper.SetDefault("redis.dial_timeout", d.Redis.DialTimeout)
	viper.SetDefault("redis.read_timeout", d.Redis.ReadTimeout)
	viper.SetDefault("redis.write_timeout", d.Redis.WriteTimeout)
	viper.SetDefault("redis.result_ttl", d.Redis.ResultTTL)

	viper.SetDefault("server.host", d.Server.Host)
	viper.SetDefault("server.port", d.Server.Port)
	viper.SetDefault("server.max_range", d.Server.MaxRange)
	viper.SetDefault("server.rate_limit.requests_per_second", d.Server.RateLimit.RequestsPerSecond)
	viper.SetDefault("server.rate_limit.burst_size", d.Server.RateLimit.BurstSize)
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".idorscan")
	}

	viper.SetEnvPrefix("IDORSCAN")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg = &config.Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return nil
}

func isStdSyncError(err error) bool {
	msg := err.Error()
	return msg == "sync /dev/stdout: invalid argument" || msg == "sync /dev/stderr: invalid argument"
}
