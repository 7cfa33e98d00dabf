package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/conneroisu/sitecycle/internal/deploy"
	"github.com/conneroisu/sitecycle/internal/errors"
	"github.com/conneroisu/sitecycle/internal/logging"
)

var deployCmd = &cobra.Command{
	Use:   "deploy",
	Short: "Trigger a deployment through the deploy hook",
	Long: `POST once to the deploy hook URL (deploy.hook_url, SITECYCLE_DEPLOY_HOOK_URL
or VERCEL_DEPLOY_HOOK) and print the job the platform queued.

A missing hook URL is reported and the command exits cleanly. A failed
request is logged and not retried.

Examples:
  VERCEL_DEPLOY_HOOK=https://api.vercel.com/v1/integrations/deploy/... sitecycle deploy
  sitecycle deploy --format json`,
	RunE: runDeploy,
}

var deployFormat string

func init() {
	rootCmd.AddCommand(deployCmd)

	deployCmd.Flags().StringVarP(&deployFormat, "format", "f", "text", "Output format (text, json)")
	deployCmd.Flags().Duration("timeout", 30*time.Second, "Request timeout")
	_ = viper.BindPFlag("deploy.timeout", deployCmd.Flags().Lookup("timeout"))
}

func runDeploy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cmd)
	ctx := cmd.Context()

	if cfg.Deploy.HookURL == "" {
		logger.Info(ctx, "deploy hook URL is not set, nothing to do")
		return nil
	}
	client, err := deploy.NewClient(cfg.Deploy.HookURL, cfg.Deploy.Timeout, deploy.WithLogger(logger))
	if err != nil {
		return err
	}

	job, err := client.Trigger(ctx)
	if err != nil {
		logger.Error(ctx, err, "deploy failed", errors.Fields(err)...)
		return nil
	}

	logger.Info(ctx, "deployment queued",
		"job", job.ID, "state", job.State, "hook", logging.RedactURL(cfg.Deploy.HookURL))

	switch deployFormat {
	case "json":
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]*deploy.Job{"job": job})
	case "text":
		fmt.Fprintf(cmd.OutOrStdout(), "Deployment %s is %s (created %s)\n",
			job.ID, job.State, job.Created().UTC().Format(time.RFC3339))
		return nil
	default:
		return fmt.Errorf("unsupported format: %s (supported: text, json)", deployFormat)
	}
}
