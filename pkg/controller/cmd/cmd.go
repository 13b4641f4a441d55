package cmd

import (
	"github.com/m-mizutani/goerr"
	"github.com/urfave/cli/v2"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

func Run(argv []string) error {
	cfg := &model.Config{}

	app := &cli.App{
		Name:  "gh-ec-audit",
		Usage: "Read-only access audits for a GitHub organization",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "org",
				Aliases:     []string{"o"},
				Usage:       "GitHub organization to be audited",
				EnvVars:     []string{types.EnvOrg},
				Required:    true,
				Destination: &cfg.Org,
			},

			// Authentication: a personal access token or a GitHub App
			&cli.StringFlag{
				Name:        "token",
				Usage:       "GitHub personal access token",
				EnvVars:     []string{types.EnvToken},
				Destination: &cfg.Token,
			},
			&cli.Int64Flag{
				Name:        "app-id",
				EnvVars:     []string{types.EnvAppID},
				Usage:       "GitHub App ID",
				Destination: &cfg.AppID,
			},
			&cli.Int64Flag{
				Name:        "install-id",
				EnvVars:     []string{types.EnvInstallID},
				Usage:       "GitHub App install ID",
				Destination: &cfg.InstallID,
			},
			&cli.StringFlag{
				Name:        "private-key-file",
				EnvVars:     []string{types.EnvPrivateKeyFile},
				Usage:       "GitHub App private key file path",
				Destination: &cfg.PrivateKeyFile,
			},
			&cli.StringFlag{
				Name:        "private-key-data",
				EnvVars:     []string{types.EnvPrivateKeyData},
				Usage:       "GitHub App private key data",
				Destination: &cfg.PrivateKeyData,
			},

			// Misc options
			&cli.StringFlag{
				Name:        "log-level",
				Aliases:     []string{"l"},
				Usage:       "Log level [error|warn|info|debug|trace]",
				EnvVars:     []string{types.EnvLogLevel},
				Destination: &cfg.LogLevel,
				Value:       "info",
			},
			&cli.StringFlag{
				Name:        "log-format",
				Aliases:     []string{"f"},
				Usage:       "Log format [text|json]",
				EnvVars:     []string{types.EnvLogFormat},
				Destination: &cfg.LogFormat,
				Value:       "text",
			},
			&cli.StringFlag{
				Name:        "slack-webhook",
				Usage:       "Slack incoming webhook URL for run summaries",
				EnvVars:     []string{types.EnvSlackWebhook},
				Destination: &cfg.SlackWebhook,
			},

			// Runtime options
			&cli.Int64Flag{
				Name:        "thread",
				Usage:       "Number of concurrent workers",
				EnvVars:     []string{types.EnvThread},
				Destination: &cfg.Thread,
				Value:       4,
			},
			&cli.Int64Flag{
				Name:        "limit",
				Usage:       "Limit of audited repositories (0 = no limit)",
				EnvVars:     []string{types.EnvLimit},
				Destination: &cfg.Limit,
				Value:       0,
			},
		},
		Before: func(c *cli.Context) error {
			if err := cfg.Validate(); err != nil {
				return err
			}

			if err := utils.RenewLogger(cfg.LogLevel, cfg.LogFormat); err != nil {
				return err
			}

			utils.Logger.With("config", cfg).Debug("starting audit")
			return nil
		},

		Commands: commands(cfg),
	}

	if err := app.Run(argv); err != nil {
		utils.Logger.Err(err).Error("exit with error")
		return goerr.Wrap(err)
	}

	return nil
}
