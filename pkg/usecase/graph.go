package usecase

import (
	"sync"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// BuildOrgGraph drains the member and team traversals completely and
// assembles the validated graph. Any fetch failure aborts the whole
// build: validating CODEOWNERS against a partially known org would
// produce false unknown-team findings, which is worse than no report.
func (x *Usecase) BuildOrgGraph(ctx *types.Context, org string) (*model.OrgGraph, error) {
	utils.Logger.With("org", org).Info("building organization graph")

	members, err := x.clients.GitHub().GetOrgMembers(ctx, org)
	if err != nil {
		return nil, goerr.Wrap(types.ErrGraphIncomplete, "failed to fetch org members").
			With("org", org).With("cause", err.Error())
	}
	utils.Logger.With("members", len(members)).Trace("fetched org members")

	teams, err := x.clients.GitHub().GetTeams(ctx, org)
	if err != nil {
		return nil, goerr.Wrap(types.ErrGraphIncomplete, "failed to fetch org teams").
			With("org", org).With("cause", err.Error())
	}
	utils.Logger.With("teams", len(teams)).Trace("fetched org teams")

	teamCh := make(chan *model.Team, len(teams))
	errCh := make(chan error, len(teams))

	var wg sync.WaitGroup
	for i := 0; i < int(x.thread); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for team := range teamCh {
				direct, err := x.clients.GitHub().GetTeamMembers(ctx, org, team.Slug)
				if err != nil {
					errCh <- goerr.Wrap(err).With("team", team.Slug)
					continue
				}
				children, err := x.clients.GitHub().GetChildTeams(ctx, org, team.Slug)
				if err != nil {
					errCh <- goerr.Wrap(err).With("team", team.Slug)
					continue
				}

				for _, m := range direct {
					team.Members = append(team.Members, m.Login)
				}
				team.Children = children
			}
		}()
	}

	for _, team := range teams {
		teamCh <- team
	}
	close(teamCh)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		return nil, goerr.Wrap(types.ErrGraphIncomplete, "failed to fetch team details").
			With("org", org).With("cause", err.Error())
	}

	graph, err := model.NewOrgGraph(members, teams)
	if err != nil {
		return nil, err
	}

	utils.Logger.With("members", len(members)).With("teams", len(teams)).Info("organization graph ready")
	return graph, nil
}
