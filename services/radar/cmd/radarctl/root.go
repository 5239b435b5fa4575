package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

type commandContext struct {
	addr    string
	token   string
	timeout time.Duration
	asJSON  bool
}

func (c *commandContext) client() *commandClient {
	return newCommandClient(c.addr, c.token, c.timeout)
}

func (c *commandContext) ctx(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func newRootCommand() *cobra.Command {
	cc := &commandContext{}

	root := &cobra.Command{
		Use:           "radarctl",
		Short:         "Control a running comment radar",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&cc.addr, "addr", envOr("RADAR_ADDR", "http://127.0.0.1:8090"), "Radar HTTP address")
	root.PersistentFlags().StringVar(&cc.token, "token", strings.TrimSpace(os.Getenv("RADAR_TOKEN")), "Bearer token for the command API")
	root.PersistentFlags().DurationVar(&cc.timeout, "timeout", 10*time.Second, "Request timeout")
	root.PersistentFlags().BoolVar(&cc.asJSON, "json", false, "Print the raw acknowledgement as JSON")

	root.AddCommand(
		newScanCommand(cc),
		newReportCommand(cc),
		newCompleteCommand(cc),
		newCancelCommand(cc),
		newQueueCommand(cc),
		newLogsCommand(cc),
		newStatsCommand(cc),
		newStatusCommand(cc),
		newPingCommand(cc),
	)
	return root
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
