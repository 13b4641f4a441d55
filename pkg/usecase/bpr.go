package usecase

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// AuditBranchProtections dumps the default-branch protection and the
// active rulesets of each repository.
func (x *Usecase) AuditBranchProtections(ctx *types.Context, org string, allowlist []string) error {
	repos, err := x.clients.GitHub().GetRepos(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch repositories").With("org", org)
	}

	selected := repos
	if len(allowlist) > 0 {
		allowed := make(map[string]struct{}, len(allowlist))
		for _, name := range allowlist {
			allowed[name] = struct{}{}
		}
		selected = nil
		for _, repo := range repos {
			if _, ok := allowed[repo.Name]; ok {
				selected = append(selected, repo)
			}
		}
	}
	selected = capLimit(selected, x.limit)

	for _, repo := range selected {
		fmt.Fprintf(x.out, "repo: %s (default branch: %s)\n", repo.Name, repo.DefaultBranch)

		protection, err := x.clients.GitHub().GetBranchProtection(ctx, org, repo.Name, repo.DefaultBranch)
		switch {
		case errors.Is(err, types.ErrNotFound):
			fmt.Fprintln(x.out, "branch protection: none")
		case err != nil:
			utils.Logger.With("repo", repo.Name).With("error", err.Error()).
				Warn("skipping repository, could not fetch branch protection")
			continue
		default:
			x.printJSON("branch protection", protection)
		}

		rules, err := x.clients.GitHub().GetBranchRules(ctx, org, repo.Name, repo.DefaultBranch)
		if err != nil {
			utils.Logger.With("repo", repo.Name).With("error", err.Error()).
				Warn("could not fetch branch rules")
			continue
		}
		x.printJSON("rulesets", json.RawMessage(rules))
	}
	return nil
}

func (x *Usecase) printJSON(label string, v interface{}) {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		utils.Logger.With("error", err.Error()).Warn("could not render " + label)
		return
	}
	fmt.Fprintf(x.out, "%s: %s\n", label, raw)
}
