package usecase

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// CodeownersInput selects how the CODEOWNERS audit discovers files and
// whether GitHub's native check is merged into the findings.
type CodeownersInput struct {
	Repos   []string
	Search  bool
	AlsoAPI bool
}

// AuditCodeowners validates every discovered CODEOWNERS file against the
// fully built org graph and prints the ordered findings.
func (x *Usecase) AuditCodeowners(ctx *types.Context, org string, input *CodeownersInput) error {
	if input.Search && len(input.Repos) > 0 {
		return goerr.Wrap(types.ErrInvalidConfig, "--search implies an org-wide scan and cannot be combined with --repos")
	}

	files, err := x.collectCodeowners(ctx, org, input.Repos, input.Search)
	if err != nil {
		return err
	}
	utils.Logger.With("files", len(files)).Info("collected CODEOWNERS files")

	graph, err := x.BuildOrgGraph(ctx, org)
	if err != nil {
		return err
	}

	findings := model.ValidateCodeowners(files, graph)

	if input.AlsoAPI {
		findings = append(findings, x.nativeCodeownersFindings(ctx, org, files)...)
		model.SortFindings(findings)
	}

	dirty := map[string]struct{}{}
	for _, finding := range findings {
		dirty[finding.Repo] = struct{}{}
		fmt.Fprintln(x.out, finding.String())
	}
	if x.verbose {
		for _, file := range files {
			if _, ok := dirty[file.Repo]; !ok {
				fmt.Fprintf(x.out, "clean: no problems in CODEOWNERS of %s\n", file.Repo)
			}
		}
	}
	utils.Logger.With("findings", len(findings)).Info("CODEOWNERS audit complete")

	return x.notify(ctx, &runReport{
		Title: "CODEOWNERS audit",
		Org:   org,
		Total: len(findings),
		Lines: findingLines(findings),
	})
}

// AuditTeamInCodeowners lists every CODEOWNERS entry that directly names
// the given team, to size the impact of renaming or removing it.
func (x *Usecase) AuditTeamInCodeowners(ctx *types.Context, org, team string, repos []string, search bool) error {
	if search && len(repos) > 0 {
		return goerr.Wrap(types.ErrInvalidConfig, "--search implies an org-wide scan and cannot be combined with --repos")
	}

	files, err := x.collectCodeowners(ctx, org, repos, search)
	if err != nil {
		return err
	}

	entries := model.FindTeamEntries(files, team)
	for _, entry := range entries {
		fmt.Fprintf(x.out, "%s:%d %s (%s)\n", entry.Repo, entry.Line, entry.Pattern, entry.URL)
	}
	utils.Logger.With("team", team).With("occurrences", len(entries)).Info("team occurrence scan complete")
	return nil
}

// collectCodeowners gathers parsed CODEOWNERS files either by walking
// repositories or through the code search API. A repository without a
// file, or one we cannot read, is skipped with a warning.
func (x *Usecase) collectCodeowners(ctx *types.Context, org string, allowlist []string, search bool) ([]*model.CodeownersFile, error) {
	var repoNames []string
	if search {
		query := fmt.Sprintf("org:%s filename:CODEOWNERS", org)
		results, err := x.clients.GitHub().SearchCode(ctx, query)
		if err != nil {
			return nil, goerr.Wrap(err, "CODEOWNERS search failed").With("query", query)
		}
		unique := map[string]struct{}{}
		for _, result := range results {
			// Search matches on file name, so drop e.g. CODEOWNERS.bak.
			if result.GetName() != "CODEOWNERS" {
				continue
			}
			unique[result.GetRepository().GetName()] = struct{}{}
		}
		for name := range unique {
			repoNames = append(repoNames, name)
		}
	} else if len(allowlist) > 0 {
		repoNames = allowlist
	} else {
		repos, err := x.clients.GitHub().GetRepos(ctx, org)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to fetch repositories").With("org", org)
		}
		for _, repo := range capLimit(repos, x.limit) {
			repoNames = append(repoNames, repo.Name)
		}
	}
	sort.Strings(repoNames)

	nameCh := make(chan string, len(repoNames))
	fileCh := make(chan *model.CodeownersFile, len(repoNames))

	var wg sync.WaitGroup
	for i := 0; i < int(x.thread); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range nameCh {
				content, htmlURL, err := x.clients.GitHub().GetCodeownersContent(ctx, org, name)
				if err != nil {
					if errors.Is(err, types.ErrNotFound) {
						utils.Logger.With("repo", name).Warn("no CODEOWNERS file found")
					} else {
						utils.Logger.With("repo", name).With("error", err.Error()).
							Warn("skipping repository, could not read CODEOWNERS")
					}
					continue
				}
				fileCh <- model.ParseCodeowners(org, name, htmlURL, content)
			}
		}()
	}

	for _, name := range repoNames {
		nameCh <- name
	}
	close(nameCh)
	go func() {
		wg.Wait()
		close(fileCh)
	}()

	var files []*model.CodeownersFile
	for file := range fileCh {
		files = append(files, file)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Repo < files[j].Repo })
	return files, nil
}

// nativeCodeownersFindings asks GitHub's own CODEOWNERS check per
// repository and converts its problems into parse-error findings. It is
// additive and independent of the graph checks.
func (x *Usecase) nativeCodeownersFindings(ctx *types.Context, org string, files []*model.CodeownersFile) []model.CodeownersFinding {
	var findings []model.CodeownersFinding
	for _, file := range files {
		ghErrors, err := x.clients.GitHub().GetCodeownersErrors(ctx, org, file.Repo)
		if err != nil {
			utils.Logger.With("repo", file.Repo).With("error", err.Error()).
				Warn("could not fetch native CODEOWNERS errors")
			continue
		}
		for _, ghErr := range ghErrors {
			findings = append(findings, model.CodeownersFinding{
				Severity: model.SeverityError,
				Kind:     model.FindingParseError,
				Repo:     file.Repo,
				URL:      file.URL,
				Line:     ghErr.Line,
				Message:  fmt.Sprintf("%s: %s", ghErr.Kind, ghErr.Message),
			})
		}
	}
	return findings
}

func findingLines(findings []model.CodeownersFinding) []string {
	var lines []string
	for _, finding := range findings {
		lines = append(lines, finding.String())
	}
	return lines
}
