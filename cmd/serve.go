package cmd

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/api"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/store"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the idorscan HTTP API server",
	Long: `Start the HTTP API server.

Endpoints:
  GET  /health              - health check (no auth)
  POST /api/v1/scans        - run a scan job (JSON or YAML body) and return the report
  GET  /api/v1/scans/:id    - fetch a stored report
  GET  /api/v1/scans/ws     - websocket: send a job, receive progress frames and the report

Reports are kept in memory, or in Redis when --redis-addr is set.
Set IDORSCAN_API_KEY to require a bearer token on /api/v1.

Example:
  idorscan serve --port 8080
  IDORSCAN_API_KEY=secret idorscan serve --redis-addr localhost:6379
`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("host", "127.0.0.1", "Host to bind to")
	viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	serverLog := log.WithComponent("api-server")

	st, err := store.New(cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize report store: %w", err)
	}
	defer st.Close()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tel.Close()

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	server := api.NewServer(ctx, cfg.Server, st, tel, serverLog,
		idor.WithClientConfig(clientConfig(cfg.HTTP)),
	)

	addr := net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port))
	serverLog.Infow("Starting idorscan API server",
		"address", addr,
		"store", storeKind(cfg.Redis.Addr),
		"auth_enabled", cfg.Server.APIKey != "",
		"config_file", viper.ConfigFileUsed(),
	)

	return server.ListenAndServe(ctx, addr)
}

func storeKind(redisAddr string) string {
	if redisAddr == "" {
		return "memory"
	}
	return "redis"
}
