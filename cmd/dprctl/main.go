package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/LUMINOUX-HEHE/DPR/internal/config"
	"github.com/LUMINOUX-HEHE/DPR/internal/connectors/dpr"
	"github.com/LUMINOUX-HEHE/DPR/internal/logging"
)

var version = "dev"

// cli carries the state shared by every subcommand.
type cli struct {
	apiFlag      string
	logLevelFlag string

	cfg    config.Config
	client *dpr.Client
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "dprctl",
		Short: "Operate the DPR analysis backend from a terminal",
		Long: `dprctl uploads Detailed Project Reports to the analysis backend, follows
their evaluation, and lists, exports or deletes submitted reports.

The backend address comes from --api or APP_DPR_API_BASE_URL.

Examples:
  dprctl upload ./bridge-dpr.pdf --watch
  dprctl status 5f3c9a --watch
  dprctl list --status COMPLETED --sort filename
  dprctl export --all --format csv -o dprs.csv
  dprctl delete 5f3c9a 77b1e0`,
		Version:       version,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.cfg = config.FromEnv()
			if c.apiFlag != "" {
				c.cfg.DPRAPIBaseURL = c.apiFlag
			}
			logging.InitWriter(cmd.ErrOrStderr(), c.logLevelFlag, "console")
			c.client = dpr.NewClient(c.cfg.DPRAPIBaseURL, c.cfg.UploadTimeout, c.cfg.ListTimeout)
		},
	}
	root.PersistentFlags().StringVar(&c.apiFlag, "api", "", "DPR API base URL (overrides APP_DPR_API_BASE_URL)")
	root.PersistentFlags().StringVar(&c.logLevelFlag, "log-level", "warn", "Log level: debug, info, warn, error")

	root.AddCommand(
		c.uploadCmd(),
		c.statusCmd(),
		c.listCmd(),
		c.deleteCmd(),
		c.exportCmd(),
	)
	return root
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// pollInterval falls back to the configured interval when the flag is unset.
func (c *cli) pollInterval(flag time.Duration) time.Duration {
	if flag > 0 {
		return flag
	}
	return c.cfg.PollInterval
}
