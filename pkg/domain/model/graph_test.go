package model_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

func members(logins ...string) []*model.Member {
	var result []*model.Member
	for _, login := range logins {
		result = append(result, &model.Member{Login: login})
	}
	return result
}

func TestOrgGraphMembership(t *testing.T) {
	graph, err := model.NewOrgGraph(members("alice", "bob"), nil)
	require.NoError(t, err)

	assert.True(t, graph.IsMember("alice"))
	assert.True(t, graph.IsMember("bob"))
	assert.False(t, graph.IsMember("mallory"))
}

func TestOrgGraphTransitiveEmptiness(t *testing.T) {
	cases := []struct {
		name  string
		teams []*model.Team
		slug  string
		empty bool
	}{
		{
			name: "direct members",
			teams: []*model.Team{
				{Slug: "infra", Members: []string{"alice"}},
			},
			slug:  "infra",
			empty: false,
		},
		{
			name: "no members anywhere",
			teams: []*model.Team{
				{Slug: "infra", Children: []string{"infra-sub"}},
				{Slug: "infra-sub"},
			},
			slug:  "infra",
			empty: true,
		},
		{
			name: "member only in sub-team",
			teams: []*model.Team{
				{Slug: "infra", Children: []string{"infra-sub"}},
				{Slug: "infra-sub", Members: []string{"bob"}},
			},
			slug:  "infra",
			empty: false,
		},
		{
			name: "member two levels down",
			teams: []*model.Team{
				{Slug: "root", Children: []string{"mid"}},
				{Slug: "mid", Children: []string{"leaf"}},
				{Slug: "leaf", Members: []string{"carol"}},
			},
			slug:  "root",
			empty: false,
		},
		{
			name: "diamond hierarchy",
			teams: []*model.Team{
				{Slug: "root", Children: []string{"left", "right"}},
				{Slug: "left", Children: []string{"leaf"}},
				{Slug: "right", Children: []string{"leaf"}},
				{Slug: "leaf"},
			},
			slug:  "root",
			empty: true,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			graph, err := model.NewOrgGraph(members("alice", "bob", "carol"), tc.teams)
			require.NoError(t, err)

			empty, err := graph.IsEmpty(tc.slug)
			require.NoError(t, err)
			assert.Equal(t, tc.empty, empty)
		})
	}
}

func TestOrgGraphUnknownTeam(t *testing.T) {
	graph, err := model.NewOrgGraph(nil, []*model.Team{{Slug: "infra"}})
	require.NoError(t, err)

	assert.False(t, graph.TeamExists("ghost-team"))

	_, err = graph.IsEmpty("ghost-team")
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrUnknownTeam))
}

func TestOrgGraphCycle(t *testing.T) {
	_, err := model.NewOrgGraph(nil, []*model.Team{
		{Slug: "a", Children: []string{"b"}},
		{Slug: "b", Children: []string{"c"}},
		{Slug: "c", Children: []string{"a"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrGraphCycle))
}

func TestOrgGraphSelfCycle(t *testing.T) {
	_, err := model.NewOrgGraph(nil, []*model.Team{
		{Slug: "a", Children: []string{"a"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrGraphCycle))
}

func TestOrgGraphDanglingChild(t *testing.T) {
	_, err := model.NewOrgGraph(nil, []*model.Team{
		{Slug: "a", Children: []string{"missing"}},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrGraphIncomplete))
}
