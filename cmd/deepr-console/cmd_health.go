package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/eternisai/deepr-console/internal/health"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(healthCmd)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query the backend health endpoint once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		log := newLogger(cfg)
		client := health.NewClient(cfg.BackendURL+cfg.HealthPath, cfg.RequestTimeout, log)

		ctx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
		defer cancel()
		status, err := client.Check(ctx)
		if err != nil {
			return fmt.Errorf("health check: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "STATUS\tSESSIONS\tRAM MB\tRAM %\tTIMESTAMP")
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n",
			status.Status,
			status.ActiveSessions,
			status.SystemUsage.RAMUsedMB,
			status.SystemUsage.RAMUsagePercent,
			status.Timestamp,
		)
		return w.Flush()
	},
}
