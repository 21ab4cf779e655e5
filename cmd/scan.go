package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CodeMonkeyCybersecurity/idorscan/internal/config"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/httpclient"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/progress"
	"github.com/CodeMonkeyCybersecurity/idorscan/internal/telemetry"
	"github.com/CodeMonkeyCybersecurity/idorscan/pkg/scanners/idor"
)

func init() {
	rootCmd.AddCommand(newScanCommand())
}

func newScanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [job.yaml]",
		Short: "Scan an identifier range for IDOR candidates",
		Long: `Scan an identifier range against a URL template and flag responses
whose status code or body length differs from the baseline.

The job can come from a YAML file, from flags, or both (flags win):

  target: https://api.example.com/orders/{id}
  id_range: [1, 500]
  headers:
    - "Authorization: Bearer <token>"
  concurrency: 10
  rate_limit: 20

Examples:
  idorscan scan job.yaml
  idorscan scan --target 'https://api.example.com/orders/{id}' --range 1,500 -H 'Cookie: session=abc'
  idorscan scan job.yaml --json > report.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: runScan,
	}

	cmd.Flags().String("target", "", "URL template containing {id}")
	cmd.Flags().IntSlice("range", nil, "identifier range as START,END (default 1,10)")
	cmd.Flags().StringArrayP("header", "H", nil, "request header as 'Key: Value' (repeatable)")
	cmd.Flags().Int("concurrency", idor.DefaultConcurrency, "maximum in-flight requests")
	cmd.Flags().Float64("rate-limit", 0, "requests per second (0 = unlimited)")
	cmd.Flags().String("proxy", "", "proxy URL (default from HTTP_PROXY/HTTPS_PROXY)")
	cmd.Flags().Bool("json", false, "print the full report as JSON")
	cmd.Flags().Bool("no-progress", false, "disable the progress bar")

	return cmd
}

func runScan(cmd *cobra.Command, args []string) error {
	scanCfg, err := buildScanConfig(cmd, args)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	tel, err := telemetry.New(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer tel.Close()

	jsonOutput, _ := cmd.Flags().GetBool("json")
	noProgress, _ := cmd.Flags().GetBool("no-progress")
	tracker := progress.New(os.Stderr, !jsonOutput && !noProgress)

	scanLog := log.WithComponent("idor").WithTarget(scanCfg.Target)
	scanner := idor.NewScanner(
		idor.WithLogger(scanLog),
		idor.WithClientConfig(clientConfig(cfg.HTTP)),
		idor.WithProgress(progress.Tee(
			tracker.Observe,
			progress.LogCheckpoints(ctx, scanLog, progress.DefaultStep),
		)),
	)

	report, err := scanner.Run(ctx, scanCfg)
	tel.RecordScan(ctx, report, err)
	if err != nil {
		return err
	}
	tracker.Complete()
	scanLog.WithScanID(report.ScanID).Debugw("Scan report ready",
		"flagged", len(report.Flagged()),
		"json", jsonOutput,
	)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	printReport(os.Stdout, report)
	return nil
}

// buildScanConfig loads the optional job file and overlays any flags the user set
func buildScanConfig(cmd *cobra.Command, args []string) (idor.ScanConfig, error) {
	scanCfg := idor.ScanConfig{
		IDStart:     idor.DefaultIDStart,
		IDEnd:       idor.DefaultIDEnd,
		Headers:     map[string]string{},
		Concurrency: idor.DefaultConcurrency,
	}

	if len(args) == 1 {
		loaded, err := idor.LoadConfig(args[0])
		if err != nil {
			return idor.ScanConfig{}, err
		}
		scanCfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		scanCfg.Target, _ = flags.GetString("target")
	}
	if flags.Changed("range") {
		ids, _ := flags.GetIntSlice("range")
		if len(ids) != 2 {
			return idor.ScanConfig{}, fmt.Errorf("%w: got %d values", idor.ErrInvalidRange, len(ids))
		}
		scanCfg.IDStart, scanCfg.IDEnd = ids[0], ids[1]
	}
	if flags.Changed("header") {
		lines, _ := flags.GetStringArray("header")
		headers, err := idor.ParseHeaders(lines)
		if err != nil {
			return idor.ScanConfig{}, err
		}
		for k, v := range headers {
			scanCfg.Headers[k] = v
		}
	}
	if flags.Changed("concurrency") {
		scanCfg.Concurrency, _ = flags.GetInt("concurrency")
	}
	if flags.Changed("rate-limit") {
		scanCfg.RateLimit, _ = flags.GetFloat64("rate-limit")
	}
	if flags.Changed("proxy") {
		scanCfg.Proxy, _ = flags.GetString("proxy")
	}

	if err := scanCfg.Validate(); err != nil {
		return idor.ScanConfig{}, err
	}
	return scanCfg, nil
}

func clientConfig(c config.HTTPConfig) httpclient.ClientConfig {
	cc := httpclient.DefaultConfig()
	cc.BlockPrivate = c.BlockPrivate
	cc.FollowRedirects = c.FollowRedirects
	if c.MaxRedirects > 0 {
		cc.MaxRedirects = c.MaxRedirects
	}
	return cc
}

// signalContext is cancelled on Ctrl+C or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
