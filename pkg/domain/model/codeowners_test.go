package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
)

func TestParseCodeowners(t *testing.T) {
	content := "# global owners\n" +
		"* @acme/infra @alice\n" +
		"\n" +
		"*.go @bob dev@example.com\n" +
		"docs/ @acme/docs-team\n"

	file := model.ParseCodeowners("acme", "repo-a", "https://example.com/co", content)

	require.Len(t, file.Entries, 3)

	assert.Equal(t, "*", file.Entries[0].Pattern)
	assert.Equal(t, 2, file.Entries[0].Line)
	require.Len(t, file.Entries[0].Owners, 2)
	assert.Equal(t, model.OwnerRef{Kind: model.OwnerTeam, Name: "infra"}, file.Entries[0].Owners[0])
	assert.Equal(t, model.OwnerRef{Kind: model.OwnerUser, Name: "alice"}, file.Entries[0].Owners[1])

	// The mail address owner is dropped: it cannot be checked against the org.
	assert.Equal(t, "*.go", file.Entries[1].Pattern)
	assert.Equal(t, 4, file.Entries[1].Line)
	require.Len(t, file.Entries[1].Owners, 1)
	assert.Equal(t, model.OwnerRef{Kind: model.OwnerUser, Name: "bob"}, file.Entries[1].Owners[0])

	assert.Equal(t, model.OwnerRef{Kind: model.OwnerTeam, Name: "docs-team"}, file.Entries[2].Owners[0])
}

func TestValidateCodeownersUnknownTeam(t *testing.T) {
	graph, err := model.NewOrgGraph(members("alice"), []*model.Team{
		{Slug: "infra", Members: []string{"alice"}},
	})
	require.NoError(t, err)

	file := model.ParseCodeowners("acme", "repo-a", "url", "* @acme/ghost-team\n")
	findings := model.ValidateCodeowners([]*model.CodeownersFile{file}, graph)

	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingUnknownTeam, findings[0].Kind)
	assert.Equal(t, model.SeverityError, findings[0].Severity)
	assert.Equal(t, "ghost-team", findings[0].Owner)
	assert.Equal(t, 1, findings[0].Line)
}

func TestValidateCodeownersEmptyTeamWithPopulatedChild(t *testing.T) {
	graph, err := model.NewOrgGraph(members("carol"), []*model.Team{
		{Slug: "infra", Children: []string{"infra-sub"}},
		{Slug: "infra-sub", Members: []string{"carol"}},
	})
	require.NoError(t, err)

	file := model.ParseCodeowners("acme", "repo-a", "url", "*.go @acme/infra\n")
	findings := model.ValidateCodeowners([]*model.CodeownersFile{file}, graph)

	assert.Empty(t, findings)
}

func TestValidateCodeownersEmptyTeamWarning(t *testing.T) {
	graph, err := model.NewOrgGraph(members("alice"), []*model.Team{
		{Slug: "infra"},
	})
	require.NoError(t, err)

	file := model.ParseCodeowners("acme", "repo-a", "url", "* @acme/infra\n")
	findings := model.ValidateCodeowners([]*model.CodeownersFile{file}, graph)

	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingEmptyTeam, findings[0].Kind)
	assert.Equal(t, model.SeverityWarning, findings[0].Severity)
}

func TestValidateCodeownersUnknownUser(t *testing.T) {
	graph, err := model.NewOrgGraph(members("alice"), nil)
	require.NoError(t, err)

	file := model.ParseCodeowners("acme", "repo-a", "url", "* @alice @mallory\n")
	findings := model.ValidateCodeowners([]*model.CodeownersFile{file}, graph)

	require.Len(t, findings, 1)
	assert.Equal(t, model.FindingUnknownUser, findings[0].Kind)
	assert.Equal(t, "mallory", findings[0].Owner)
}

func TestValidateCodeownersOrdering(t *testing.T) {
	graph, err := model.NewOrgGraph(nil, nil)
	require.NoError(t, err)

	fileB := model.ParseCodeowners("acme", "repo-b", "url-b", "* @zoe\n* @abe\n")
	fileA := model.ParseCodeowners("acme", "repo-a", "url-a", "# header\n* @mia\n")

	findings := model.ValidateCodeowners([]*model.CodeownersFile{fileB, fileA}, graph)

	require.Len(t, findings, 3)
	assert.Equal(t, "repo-a", findings[0].Repo)
	assert.Equal(t, 2, findings[0].Line)
	assert.Equal(t, "repo-b", findings[1].Repo)
	assert.Equal(t, 1, findings[1].Line)
	assert.Equal(t, "repo-b", findings[2].Repo)
	assert.Equal(t, 2, findings[2].Line)
}

func TestFindTeamEntries(t *testing.T) {
	files := []*model.CodeownersFile{
		model.ParseCodeowners("acme", "repo-b", "url-b", "* @acme/infra\n"),
		model.ParseCodeowners("acme", "repo-a", "url-a", "# none here\n* @alice\n*.go @acme/infra @acme/docs\n"),
		model.ParseCodeowners("acme", "repo-c", "url-c", "* @acme/docs\n"),
	}

	entries := model.FindTeamEntries(files, "infra")

	require.Len(t, entries, 2)
	assert.Equal(t, "repo-a", entries[0].Repo)
	assert.Equal(t, 3, entries[0].Line)
	assert.Equal(t, "repo-b", entries[1].Repo)

	// A sub-team reference is not a direct occurrence of the parent.
	assert.Empty(t, model.FindTeamEntries(files, "infra-sub"))
}
