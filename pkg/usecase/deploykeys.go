package usecase

import (
	"fmt"
	"sync"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// AuditDeployKeys walks every repository's deploy keys and flags the
// ones added by someone who is not an org member. With WithAll it lists
// every key.
func (x *Usecase) AuditDeployKeys(ctx *types.Context, org string) error {
	members, err := x.clients.GitHub().GetOrgMembers(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch org members").With("org", org)
	}
	memberSet := make(map[string]struct{}, len(members))
	for _, m := range members {
		memberSet[m.Login] = struct{}{}
	}

	repos, err := x.clients.GitHub().GetRepos(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch repositories").With("org", org)
	}
	repos = capLimit(repos, x.limit)
	utils.Logger.With("repos", len(repos)).Info("checking repositories for deploy keys")

	type repoKeys struct {
		repo string
		keys []*model.DeployKey
	}

	repoCh := make(chan *model.Repository, len(repos))
	keyCh := make(chan *repoKeys, len(repos))

	var wg sync.WaitGroup
	for i := 0; i < int(x.thread); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repo := range repoCh {
				keys, err := x.clients.GitHub().GetDeployKeys(ctx, org, repo.Name)
				if err != nil {
					utils.Logger.With("repo", repo.Name).With("error", err.Error()).
						Warn("skipping repository, could not fetch deploy keys")
					continue
				}
				if len(keys) > 0 {
					keyCh <- &repoKeys{repo: repo.Name, keys: keys}
				}
			}
		}()
	}

	for _, repo := range repos {
		repoCh <- repo
	}
	close(repoCh)
	go func() {
		wg.Wait()
		close(keyCh)
	}()

	for rk := range keyCh {
		for _, key := range rk.keys {
			_, isMember := memberSet[key.AddedBy]
			if !isMember {
				fmt.Fprintf(x.out, "%s: deploy key %q added by non-member %s\n", rk.repo, key.Title, key.AddedBy)
				continue
			}
			if x.all {
				fmt.Fprintf(x.out, "%s: deploy key %q added by %s (read-only: %v)\n", rk.repo, key.Title, key.AddedBy, key.ReadOnly)
			}
		}
	}
	return nil
}
