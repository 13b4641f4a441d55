package usecase

import (
	"fmt"
	"sort"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// AuditTeamPermissions lists every repository a team can reach and the
// access level the membership confers.
func (x *Usecase) AuditTeamPermissions(ctx *types.Context, org, team string) error {
	repos, err := x.clients.GitHub().GetTeamRepos(ctx, org, team)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch team repositories").With("team", team)
	}

	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	utils.Logger.With("team", team).With("repos", len(repos)).Info("fetched team repositories")
	for _, repo := range repos {
		fmt.Fprintf(x.out, "%s: %s\n", repo.Name, repo.Permission)
	}
	return nil
}

// AuditEmptyTeams reports teams whose transitive membership is empty,
// together with the number of repositories each one can still reach.
func (x *Usecase) AuditEmptyTeams(ctx *types.Context, org string) error {
	graph, err := x.BuildOrgGraph(ctx, org)
	if err != nil {
		return err
	}

	for _, slug := range graph.Teams() {
		empty, err := graph.IsEmpty(slug)
		if err != nil {
			return err
		}
		if !empty {
			continue
		}

		repos, err := x.clients.GitHub().GetTeamRepos(ctx, org, slug)
		if err != nil {
			utils.Logger.With("team", slug).With("error", err.Error()).
				Warn("empty team found, but could not fetch its repositories")
			fmt.Fprintf(x.out, "empty team: %s\n", slug)
			continue
		}
		fmt.Fprintf(x.out, "empty team: %s (access to %d repositories)\n", slug, len(repos))
	}
	return nil
}
