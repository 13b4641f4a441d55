package model

import (
	"time"

	"github.com/google/go-github/v42/github"
)

// Permission is a repository access level. The order of the constants is
// the order GitHub grants capabilities in, so records can be compared and
// the highest level of a permission map can be picked.
type Permission int

const (
	PermNone Permission = iota
	PermRead
	PermTriage
	PermWrite
	PermMaintain
	PermAdmin
)

func (x Permission) String() string {
	switch x {
	case PermRead:
		return "read"
	case PermTriage:
		return "triage"
	case PermWrite:
		return "write"
	case PermMaintain:
		return "maintain"
	case PermAdmin:
		return "admin"
	default:
		return "none"
	}
}

// ParsePermission accepts both the names this tool writes and the legacy
// GitHub API names (pull/push).
func ParsePermission(s string) (Permission, bool) {
	switch s {
	case "read", "pull":
		return PermRead, true
	case "triage":
		return PermTriage, true
	case "write", "push":
		return PermWrite, true
	case "maintain":
		return PermMaintain, true
	case "admin":
		return PermAdmin, true
	case "none", "":
		return PermNone, true
	default:
		return PermNone, false
	}
}

// HighestPermission picks the top access level out of a GitHub
// permissions map ({"pull": true, "push": false, ...}).
func HighestPermission(perms map[string]bool) Permission {
	highest := PermNone
	for name, granted := range perms {
		if !granted {
			continue
		}
		if p, ok := ParsePermission(name); ok && p > highest {
			highest = p
		}
	}
	return highest
}

type Repository struct {
	Name          string
	FullName      string
	DefaultBranch string
	Visibility    string
	Private       bool
	Archived      bool
}

func NewRepository(r *github.Repository) *Repository {
	return &Repository{
		Name:          r.GetName(),
		FullName:      r.GetFullName(),
		DefaultBranch: r.GetDefaultBranch(),
		Visibility:    r.GetVisibility(),
		Private:       r.GetPrivate(),
		Archived:      r.GetArchived(),
	}
}

type Member struct {
	Login     string
	AvatarURL string
}

func NewMember(u *github.User) *Member {
	return &Member{
		Login:     u.GetLogin(),
		AvatarURL: u.GetAvatarURL(),
	}
}

type Collaborator struct {
	Login      string
	Permission Permission
}

func NewCollaborator(u *github.User) *Collaborator {
	return &Collaborator{
		Login:      u.GetLogin(),
		Permission: HighestPermission(u.GetPermissions()),
	}
}

type DeployKey struct {
	ID        int64
	Title     string
	ReadOnly  bool
	Verified  bool
	AddedBy   string
	CreatedAt time.Time
	LastUsed  *time.Time
}

// TeamRepo is one repository a team has access to, with the level the
// team membership confers.
type TeamRepo struct {
	Name       string
	Permission Permission
}
