package cmd

import (
	"os"

	"github.com/m-mizutani/goerr"
	"github.com/urfave/cli/v2"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/infra"
	"github.com/obelisk/gh-ec-audit/pkg/infra/githubapp"
	"github.com/obelisk/gh-ec-audit/pkg/infra/notify"
	"github.com/obelisk/gh-ec-audit/pkg/usecase"
)

// newUsecase assembles the clients from the validated config. Exactly
// one audit runs per invocation, so this happens inside each command's
// action rather than in Before.
func newUsecase(c *cli.Context, cfg *model.Config, verbose, all bool) (*usecase.Usecase, *types.Context, error) {
	ctx := types.NewContext(types.WithCtx(c.Context))

	var ghClient githubapp.Client
	if cfg.Token != "" {
		ghClient = githubapp.NewWithToken(ctx, cfg.Token)
	} else {
		privateKey := []byte(cfg.PrivateKeyData)
		if cfg.PrivateKeyFile != "" {
			raw, err := os.ReadFile(cfg.PrivateKeyFile)
			if err != nil {
				return nil, nil, goerr.Wrap(err, "failed to read private key file")
			}
			privateKey = raw
		}

		client, err := githubapp.New(cfg.AppID, cfg.InstallID, privateKey)
		if err != nil {
			return nil, nil, goerr.Wrap(err).With("appID", cfg.AppID).With("installID", cfg.InstallID)
		}
		ghClient = client
	}

	options := []infra.Option{infra.WithGitHub(ghClient)}
	if cfg.SlackWebhook != "" {
		options = append(options, infra.WithSlack(notify.NewSlackWebhook(cfg.SlackWebhook)))
	}

	uc := usecase.New(infra.New(options...),
		usecase.WithThread(cfg.Thread),
		usecase.WithLimit(cfg.Limit),
		usecase.WithVerbose(verbose),
		usecase.WithAll(all),
	)
	return uc, ctx, nil
}

func commands(cfg *model.Config) []*cli.Command {
	var (
		repoList cli.StringSlice
		previous string
		output   string
		team     string
		search   bool
		alsoAPI  bool
		verbose  bool
		all      bool
	)

	repoFlag := &cli.StringSliceFlag{
		Name:        "repos",
		Aliases:     []string{"r"},
		Usage:       "Limit the audit to the given repositories",
		Destination: &repoList,
	}
	searchFlag := &cli.BoolFlag{
		Name:        "search",
		Usage:       "Discover CODEOWNERS files via the code search API instead of walking repositories",
		Destination: &search,
	}
	verboseFlag := &cli.BoolFlag{
		Name:        "verbose",
		Aliases:     []string{"v"},
		Usage:       "Also report clean results",
		Destination: &verbose,
	}

	return []*cli.Command{
		{
			Name:    "external-collaborators",
			Aliases: []string{"ec"},
			Usage:   "Reconcile external collaborator access against the previous run's CSV",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "previous",
					Aliases:     []string{"p"},
					Usage:       "CSV written by the previous run",
					Destination: &previous,
				},
				&cli.StringFlag{
					Name:        "output",
					Usage:       "Path for the updated CSV (default: stdout)",
					Destination: &output,
				},
				verboseFlag,
			},
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditExternalCollaborators(ctx, cfg.Org, previous, output)
			},
		},
		{
			Name:  "codeowners",
			Usage: "Validate CODEOWNERS files against org membership and teams",
			Flags: []cli.Flag{
				repoFlag,
				searchFlag,
				verboseFlag,
				&cli.BoolFlag{
					Name:        "also-api",
					Usage:       "Merge GitHub's own CODEOWNERS error check into the findings",
					Destination: &alsoAPI,
				},
			},
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditCodeowners(ctx, cfg.Org, &usecase.CodeownersInput{
					Repos:   repoList.Value(),
					Search:  search,
					AlsoAPI: alsoAPI,
				})
			},
		},
		{
			Name:  "team-in-codeowners",
			Usage: "Find CODEOWNERS entries referencing a team",
			Flags: []cli.Flag{
				repoFlag,
				searchFlag,
				&cli.StringFlag{
					Name:        "team",
					Aliases:     []string{"t"},
					Usage:       "Team slug to look for",
					Required:    true,
					Destination: &team,
				},
			},
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditTeamInCodeowners(ctx, cfg.Org, team, repoList.Value(), search)
			},
		},
		{
			Name:  "empty-teams",
			Usage: "Report teams with no members, counting sub-team members",
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditEmptyTeams(ctx, cfg.Org)
			},
		},
		{
			Name:  "team-permissions",
			Usage: "List the repositories a team has access to",
			Flags: []cli.Flag{
				&cli.StringFlag{
					Name:        "team",
					Aliases:     []string{"t"},
					Usage:       "Team slug",
					Required:    true,
					Destination: &team,
				},
			},
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditTeamPermissions(ctx, cfg.Org, team)
			},
		},
		{
			Name:  "members",
			Usage: "List organization members",
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditMembers(ctx, cfg.Org)
			},
		},
		{
			Name:  "admins",
			Usage: "List organization admins",
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditAdmins(ctx, cfg.Org)
			},
		},
		{
			Name:    "deploy-keys",
			Aliases: []string{"dk"},
			Usage:   "Flag deploy keys added by non-members",
			Flags: []cli.Flag{
				&cli.BoolFlag{
					Name:        "all",
					Usage:       "List every deploy key, not only the suspicious ones",
					Destination: &all,
				},
			},
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditDeployKeys(ctx, cfg.Org)
			},
		},
		{
			Name:    "branch-protections",
			Aliases: []string{"bpr"},
			Usage:   "Dump default-branch protection and rulesets per repository",
			Flags:   []cli.Flag{repoFlag},
			Action: func(c *cli.Context) error {
				uc, ctx, err := newUsecase(c, cfg, verbose, all)
				if err != nil {
					return err
				}
				return uc.AuditBranchProtections(ctx, cfg.Org, repoList.Value())
			},
		},
	}
}
