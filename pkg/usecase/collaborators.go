package usecase

import (
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/infra/storage"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// AuditExternalCollaborators computes the current access of every
// outside collaborator across the org's repositories, reconciles it with
// the previous run's state file, and writes the updated state.
func (x *Usecase) AuditExternalCollaborators(ctx *types.Context, org, previousPath, outputPath string) error {
	var previous []model.CollaboratorRecord
	if previousPath != "" {
		got, err := storage.ReadRecords(previousPath)
		if err != nil {
			return err
		}
		previous = got
		utils.Logger.With("records", len(previous)).Info("loaded previous state")
	} else {
		utils.Logger.Info("no previous state file, assuming first run")
	}

	outside, err := x.clients.GitHub().GetOutsideCollaborators(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch outside collaborators").With("org", org)
	}
	outsideSet := make(map[string]struct{}, len(outside))
	for _, m := range outside {
		outsideSet[m.Login] = struct{}{}
	}
	utils.Logger.With("outside collaborators", len(outside)).Info("fetched outside collaborators")

	repos, err := x.clients.GitHub().GetRepos(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch repositories").With("org", org)
	}
	repos = capLimit(repos, x.limit)
	utils.Logger.With("repos", len(repos)).Info("checking repositories for external collaborator access")

	type repoAccess struct {
		repo    string
		collabs []*model.Collaborator
	}

	repoCh := make(chan *model.Repository, len(repos))
	accessCh := make(chan *repoAccess, len(repos))

	var wg sync.WaitGroup
	for i := 0; i < int(x.thread); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for repo := range repoCh {
				collabs, err := x.clients.GitHub().GetCollaborators(ctx, org, repo.Name)
				if err != nil {
					// One inaccessible repository must not block the rest of the
					// audit. Its previous rows will show up as removed, so warn loudly.
					utils.Logger.With("repo", repo.Name).With("error", err.Error()).
						Warn("skipping repository, could not fetch collaborators")
					continue
				}
				accessCh <- &repoAccess{repo: repo.Name, collabs: collabs}
			}
		}()
	}

	for _, repo := range repos {
		repoCh <- repo
	}
	close(repoCh)
	go func() {
		wg.Wait()
		close(accessCh)
	}()

	var current []model.CollaboratorRecord
	seen := map[string]struct{}{}
	for access := range accessCh {
		for _, collab := range access.collabs {
			if _, ok := outsideSet[collab.Login]; !ok {
				continue
			}
			current = append(current, model.CollaboratorRecord{
				Login:  collab.Login,
				Repo:   access.repo,
				Access: collab.Permission,
			})
			seen[collab.Login] = struct{}{}
		}
	}

	var orphans []string
	for login := range outsideSet {
		if _, ok := seen[login]; !ok {
			orphans = append(orphans, login)
		}
	}
	sort.Strings(orphans)
	for _, login := range orphans {
		utils.Logger.With("login", login).Warn("outside collaborator has no repository access")
	}

	updated, deltas, err := model.Reconcile(current, previous)
	if err != nil {
		return err
	}

	changed := 0
	for _, delta := range deltas {
		if delta.Kind == model.DeltaUnchanged && !x.verbose {
			continue
		}
		if delta.Kind != model.DeltaUnchanged {
			changed++
		}
		fmt.Fprintln(x.out, delta.String())
	}
	utils.Logger.With("records", len(updated)).With("changes", changed).Info("reconciliation complete")

	if err := x.writeState(updated, outputPath); err != nil {
		return err
	}

	return x.notify(ctx, &runReport{
		Title: "External collaborator audit",
		Org:   org,
		Total: changed,
		Lines: deltaLines(deltas),
	})
}

func (x *Usecase) writeState(records []model.CollaboratorRecord, path string) error {
	if path == "" {
		return storage.WriteRecords(x.out, records)
	}

	fd, err := os.Create(path)
	if err != nil {
		return goerr.Wrap(err, "failed to create state file").With("path", path)
	}
	defer fd.Close()
	return storage.WriteRecords(fd, records)
}

func deltaLines(deltas []model.Delta) []string {
	var lines []string
	for _, delta := range deltas {
		if delta.Kind == model.DeltaUnchanged {
			continue
		}
		lines = append(lines, delta.String())
	}
	return lines
}
