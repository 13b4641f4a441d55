package model

import (
	"sort"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

// Team is one node of the org's team hierarchy: its direct member logins
// and its direct child team slugs.
type Team struct {
	Slug     string
	Name     string
	Members  []string
	Children []string
}

// OrgGraph is the fully built membership and team-hierarchy model of one
// audit run. It is only constructed from completely drained traversals;
// a half-built graph never exists as a value of this type.
type OrgGraph struct {
	members map[string]struct{}
	teams   map[string]*Team
	empty   map[string]bool
}

// NewOrgGraph validates the team hierarchy and precomputes transitive
// emptiness for every team. A cycle or a dangling child reference is a
// data-integrity error and fails construction.
func NewOrgGraph(members []*Member, teams []*Team) (*OrgGraph, error) {
	g := &OrgGraph{
		members: make(map[string]struct{}, len(members)),
		teams:   make(map[string]*Team, len(teams)),
		empty:   make(map[string]bool, len(teams)),
	}
	for _, m := range members {
		g.members[m.Login] = struct{}{}
	}
	for _, t := range teams {
		g.teams[t.Slug] = t
	}

	for _, t := range teams {
		for _, child := range t.Children {
			if _, ok := g.teams[child]; !ok {
				return nil, goerr.Wrap(types.ErrGraphIncomplete, "child team is not in the team list").
					With("team", t.Slug).With("child", child)
			}
		}
	}

	if cycle := findCycle(g.teams); len(cycle) > 0 {
		return nil, goerr.Wrap(types.ErrGraphCycle).With("teams", cycle)
	}

	for slug := range g.teams {
		g.empty[slug] = g.computeEmpty(slug)
	}

	return g, nil
}

// findCycle runs an iterative three-color DFS over the child-team edges
// and returns the slugs on the first cycle found, or nil.
func findCycle(teams map[string]*Team) []string {
	const (
		white = iota
		gray
		black
	)
	color := make(map[string]int, len(teams))

	roots := make([]string, 0, len(teams))
	for slug := range teams {
		roots = append(roots, slug)
	}
	sort.Strings(roots)

	type frame struct {
		slug string
		next int
	}

	for _, root := range roots {
		if color[root] != white {
			continue
		}
		stack := []frame{{slug: root}}
		color[root] = gray
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			children := teams[top.slug].Children
			if top.next < len(children) {
				child := children[top.next]
				top.next++
				switch color[child] {
				case white:
					color[child] = gray
					stack = append(stack, frame{slug: child})
				case gray:
					// Everything gray on the stack from child onward is on the cycle.
					var cycle []string
					for _, f := range stack {
						if len(cycle) > 0 || f.slug == child {
							cycle = append(cycle, f.slug)
						}
					}
					return append(cycle, child)
				}
				continue
			}
			color[top.slug] = black
			stack = stack[:len(stack)-1]
		}
	}
	return nil
}

// computeEmpty walks the subtree below slug with an explicit worklist.
// Only called after findCycle passed, but the visited set also guards
// against diamonds in the hierarchy.
func (x *OrgGraph) computeEmpty(slug string) bool {
	visited := map[string]struct{}{}
	worklist := []string{slug}
	for len(worklist) > 0 {
		cur := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}

		team := x.teams[cur]
		if len(team.Members) > 0 {
			return false
		}
		worklist = append(worklist, team.Children...)
	}
	return true
}

func (x *OrgGraph) IsMember(login string) bool {
	_, ok := x.members[login]
	return ok
}

func (x *OrgGraph) TeamExists(slug string) bool {
	_, ok := x.teams[slug]
	return ok
}

// IsEmpty reports whether a team has no members, counting the members of
// all its descendant teams. Asking about a team that does not exist is an
// error, not "empty".
func (x *OrgGraph) IsEmpty(slug string) (bool, error) {
	empty, ok := x.empty[slug]
	if !ok {
		return false, goerr.Wrap(types.ErrUnknownTeam).With("slug", slug)
	}
	return empty, nil
}

// Teams returns all team slugs in lexical order.
func (x *OrgGraph) Teams() []string {
	slugs := make([]string, 0, len(x.teams))
	for slug := range x.teams {
		slugs = append(slugs, slug)
	}
	sort.Strings(slugs)
	return slugs
}
