package githubapp

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v42/github"
	"github.com/m-mizutani/goerr"
	"golang.org/x/oauth2"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

// Client is the read-only view of GitHub the audits run against. Every
// list method drains the endpoint's pages completely; on a failed page it
// returns both the entities gathered so far and the error, so callers can
// degrade per-repository instead of aborting the run.
type Client interface {
	GetRepos(ctx *types.Context, org string) ([]*model.Repository, error)
	GetOrgMembers(ctx *types.Context, org string) ([]*model.Member, error)
	GetOrgAdmins(ctx *types.Context, org string) ([]*model.Member, error)
	GetOutsideCollaborators(ctx *types.Context, org string) ([]*model.Member, error)
	GetTeams(ctx *types.Context, org string) ([]*model.Team, error)
	GetTeamMembers(ctx *types.Context, org, slug string) ([]*model.Member, error)
	GetChildTeams(ctx *types.Context, org, slug string) ([]string, error)
	GetTeamRepos(ctx *types.Context, org, slug string) ([]*model.TeamRepo, error)
	GetCollaborators(ctx *types.Context, org, repo string) ([]*model.Collaborator, error)
	GetDeployKeys(ctx *types.Context, org, repo string) ([]*model.DeployKey, error)
	GetBranchProtection(ctx *types.Context, org, repo, branch string) (*github.Protection, error)
	GetBranchRules(ctx *types.Context, org, repo, branch string) (json.RawMessage, error)
	GetCodeownersContent(ctx *types.Context, org, repo string) (content, htmlURL string, err error)
	GetCodeownersErrors(ctx *types.Context, org, repo string) ([]*CodeownersError, error)
	SearchCode(ctx *types.Context, query string) ([]*github.CodeResult, error)
}

// CodeownersError is one problem GitHub's own CODEOWNERS check reports
// for a repository.
type CodeownersError struct {
	Line    int    `json:"line"`
	Kind    string `json:"kind"`
	Path    string `json:"path"`
	Message string `json:"message"`
}

type client struct {
	gh     *github.Client
	std    *retrier
	search *retrier
}

// New builds a client authenticated as a GitHub App installation.
func New(appID, installID int64, privateKey []byte) (Client, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err)
	}

	return NewWithClient(github.NewClient(&http.Client{Transport: itr})), nil
}

// NewWithToken builds a client authenticated with a personal access
// token.
func NewWithToken(ctx *types.Context, token string) Client {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return NewWithClient(github.NewClient(oauth2.NewClient(ctx, src)))
}

// NewWithClient wraps an already configured go-github client. Both retry
// policies share one cooldown gate so concurrent workers never race the
// same rate budget.
func NewWithClient(gh *github.Client) Client {
	gate := &Gate{}
	return &client{
		gh:     gh,
		std:    newRetrier(standardPolicy, gate),
		search: newRetrier(searchPolicy, gate),
	}
}

const perPage = 100

// fetchAll drains one paginated list endpoint. The page cursor advances
// only after a page succeeded, so a retried call re-reads the same page.
// On a failed page the pages gathered so far are returned with the error.
func fetchAll[T any](ctx *types.Context, rt *retrier, endpoint string,
	fn func(opt github.ListOptions) ([]T, *github.Response, error)) ([]T, error) {

	opt := github.ListOptions{PerPage: perPage}
	var all []T
	for {
		var (
			items []T
			resp  *github.Response
		)
		if err := rt.Do(ctx, endpoint, func() error {
			got, r, err := fn(opt)
			if err != nil {
				return err
			}
			if r.StatusCode != http.StatusOK {
				body, _ := io.ReadAll(r.Body)
				return goerr.Wrap(types.ErrUnexpectedGitHubResp).
					With("code", r.StatusCode).With("body", string(body))
			}
			items, resp = got, r
			return nil
		}); err != nil {
			return all, err
		}

		all = append(all, items...)
		if resp.NextPage == 0 {
			return all, nil
		}
		opt.Page = resp.NextPage
	}
}

func (x *client) GetRepos(ctx *types.Context, org string) ([]*model.Repository, error) {
	repos, err := fetchAll(ctx, x.std, "org repos",
		func(opt github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return x.gh.Repositories.ListByOrg(ctx, org, &github.RepositoryListByOrgOptions{ListOptions: opt})
		})

	result := make([]*model.Repository, 0, len(repos))
	for _, r := range repos {
		result = append(result, model.NewRepository(r))
	}
	return result, err
}

func (x *client) listMembers(ctx *types.Context, org, endpoint, role string) ([]*model.Member, error) {
	users, err := fetchAll(ctx, x.std, endpoint,
		func(opt github.ListOptions) ([]*github.User, *github.Response, error) {
			return x.gh.Organizations.ListMembers(ctx, org, &github.ListMembersOptions{
				Role:        role,
				ListOptions: opt,
			})
		})

	members := make([]*model.Member, 0, len(users))
	for _, u := range users {
		members = append(members, model.NewMember(u))
	}
	return members, err
}

func (x *client) GetOrgMembers(ctx *types.Context, org string) ([]*model.Member, error) {
	return x.listMembers(ctx, org, "org members", "all")
}

func (x *client) GetOrgAdmins(ctx *types.Context, org string) ([]*model.Member, error) {
	return x.listMembers(ctx, org, "org admins", "admin")
}

func (x *client) GetOutsideCollaborators(ctx *types.Context, org string) ([]*model.Member, error) {
	users, err := fetchAll(ctx, x.std, "outside collaborators",
		func(opt github.ListOptions) ([]*github.User, *github.Response, error) {
			return x.gh.Organizations.ListOutsideCollaborators(ctx, org, &github.ListOutsideCollaboratorsOptions{ListOptions: opt})
		})

	members := make([]*model.Member, 0, len(users))
	for _, u := range users {
		members = append(members, model.NewMember(u))
	}
	return members, err
}

func (x *client) GetTeams(ctx *types.Context, org string) ([]*model.Team, error) {
	teams, err := fetchAll(ctx, x.std, "org teams",
		func(opt github.ListOptions) ([]*github.Team, *github.Response, error) {
			return x.gh.Teams.ListTeams(ctx, org, &opt)
		})

	result := make([]*model.Team, 0, len(teams))
	for _, t := range teams {
		result = append(result, &model.Team{Slug: t.GetSlug(), Name: t.GetName()})
	}
	return result, err
}

func (x *client) GetTeamMembers(ctx *types.Context, org, slug string) ([]*model.Member, error) {
	users, err := fetchAll(ctx, x.std, "team members",
		func(opt github.ListOptions) ([]*github.User, *github.Response, error) {
			return x.gh.Teams.ListTeamMembersBySlug(ctx, org, slug, &github.TeamListTeamMembersOptions{ListOptions: opt})
		})

	members := make([]*model.Member, 0, len(users))
	for _, u := range users {
		members = append(members, model.NewMember(u))
	}
	return members, err
}

func (x *client) GetChildTeams(ctx *types.Context, org, slug string) ([]string, error) {
	teams, err := fetchAll(ctx, x.std, "child teams",
		func(opt github.ListOptions) ([]*github.Team, *github.Response, error) {
			return x.gh.Teams.ListChildTeamsByParentSlug(ctx, org, slug, &opt)
		})

	slugs := make([]string, 0, len(teams))
	for _, t := range teams {
		slugs = append(slugs, t.GetSlug())
	}
	return slugs, err
}

func (x *client) GetTeamRepos(ctx *types.Context, org, slug string) ([]*model.TeamRepo, error) {
	repos, err := fetchAll(ctx, x.std, "team repos",
		func(opt github.ListOptions) ([]*github.Repository, *github.Response, error) {
			return x.gh.Teams.ListTeamReposBySlug(ctx, org, slug, &opt)
		})

	result := make([]*model.TeamRepo, 0, len(repos))
	for _, r := range repos {
		result = append(result, &model.TeamRepo{
			Name:       r.GetName(),
			Permission: model.HighestPermission(r.GetPermissions()),
		})
	}
	return result, err
}

func (x *client) GetCollaborators(ctx *types.Context, org, repo string) ([]*model.Collaborator, error) {
	users, err := fetchAll(ctx, x.std, "repo collaborators",
		func(opt github.ListOptions) ([]*github.User, *github.Response, error) {
			return x.gh.Repositories.ListCollaborators(ctx, org, repo, &github.ListCollaboratorsOptions{ListOptions: opt})
		})

	collabs := make([]*model.Collaborator, 0, len(users))
	for _, u := range users {
		collabs = append(collabs, model.NewCollaborator(u))
	}
	return collabs, err
}

// deployKey is the REST shape of a repository deploy key. The added_by
// and last_used fields are missing from go-github v42's Key type, so the
// endpoint is fetched raw.
type deployKey struct {
	ID        int64             `json:"id"`
	Title     string            `json:"title"`
	ReadOnly  bool              `json:"read_only"`
	Verified  bool              `json:"verified"`
	AddedBy   string            `json:"added_by"`
	CreatedAt github.Timestamp  `json:"created_at"`
	LastUsed  *github.Timestamp `json:"last_used"`
}

func (x *client) GetDeployKeys(ctx *types.Context, org, repo string) ([]*model.DeployKey, error) {
	keys, err := fetchAll(ctx, x.std, "deploy keys",
		func(opt github.ListOptions) ([]*deployKey, *github.Response, error) {
			u := fmt.Sprintf("repos/%s/%s/keys?per_page=%d&page=%d", org, repo, opt.PerPage, opt.Page)
			req, err := x.gh.NewRequest(http.MethodGet, u, nil)
			if err != nil {
				return nil, nil, goerr.Wrap(err)
			}
			var got []*deployKey
			resp, err := x.gh.Do(ctx, req, &got)
			return got, resp, err
		})

	result := make([]*model.DeployKey, 0, len(keys))
	for _, k := range keys {
		dk := &model.DeployKey{
			ID:        k.ID,
			Title:     k.Title,
			ReadOnly:  k.ReadOnly,
			Verified:  k.Verified,
			AddedBy:   k.AddedBy,
			CreatedAt: k.CreatedAt.Time,
		}
		if k.LastUsed != nil {
			t := k.LastUsed.Time
			dk.LastUsed = &t
		}
		result = append(result, dk)
	}
	return result, err
}

func (x *client) GetBranchProtection(ctx *types.Context, org, repo, branch string) (*github.Protection, error) {
	var protection *github.Protection
	err := x.std.Do(ctx, "branch protection", func() error {
		got, _, err := x.gh.Repositories.GetBranchProtection(ctx, org, repo, branch)
		if err != nil {
			return err
		}
		protection = got
		return nil
	})
	return protection, err
}

func (x *client) GetBranchRules(ctx *types.Context, org, repo, branch string) (json.RawMessage, error) {
	var rules json.RawMessage
	err := x.std.Do(ctx, "branch rules", func() error {
		u := fmt.Sprintf("repos/%s/%s/rules/branches/%s", org, repo, branch)
		req, err := x.gh.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return goerr.Wrap(err)
		}
		rules = nil
		_, err = x.gh.Do(ctx, req, &rules)
		return err
	})
	return rules, err
}

// codeownersLocations are the places GitHub looks for a CODEOWNERS file,
// in the priority order documented for the feature. The first hit wins.
var codeownersLocations = []string{".github/CODEOWNERS", "CODEOWNERS", "docs/CODEOWNERS"}

func (x *client) GetCodeownersContent(ctx *types.Context, org, repo string) (string, string, error) {
	for _, location := range codeownersLocations {
		var file *github.RepositoryContent
		err := x.std.Do(ctx, "repo contents", func() error {
			got, _, _, err := x.gh.Repositories.GetContents(ctx, org, repo, location, nil)
			if err != nil {
				return err
			}
			file = got
			return nil
		})
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				continue
			}
			return "", "", err
		}
		if file == nil {
			// The path resolved to a directory.
			continue
		}

		content, err := file.GetContent()
		if err != nil {
			return "", "", goerr.Wrap(types.ErrMalformedResponse, "could not decode CODEOWNERS content").
				With("repo", repo).With("path", location)
		}
		return content, file.GetHTMLURL(), nil
	}

	return "", "", goerr.Wrap(types.ErrNotFound, "no CODEOWNERS file").With("repo", repo)
}

func (x *client) GetCodeownersErrors(ctx *types.Context, org, repo string) ([]*CodeownersError, error) {
	var out struct {
		Errors []*CodeownersError `json:"errors"`
	}
	err := x.std.Do(ctx, "codeowners errors", func() error {
		u := fmt.Sprintf("repos/%s/%s/codeowners/errors", org, repo)
		req, err := x.gh.NewRequest(http.MethodGet, u, nil)
		if err != nil {
			return goerr.Wrap(err)
		}
		out.Errors = nil
		_, err = x.gh.Do(ctx, req, &out)
		return err
	})
	return out.Errors, err
}

// SearchCode pages through the code search API under the stricter search
// retry policy.
func (x *client) SearchCode(ctx *types.Context, query string) ([]*github.CodeResult, error) {
	return fetchAll(ctx, x.search, "code search",
		func(opt github.ListOptions) ([]*github.CodeResult, *github.Response, error) {
			result, resp, err := x.gh.Search.Code(ctx, query, &github.SearchOptions{ListOptions: opt})
			if err != nil {
				return nil, resp, err
			}
			return result.CodeResults, resp, nil
		})
}
