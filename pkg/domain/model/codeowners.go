package model

import (
	"fmt"
	"sort"
	"strings"
)

type OwnerKind int

const (
	OwnerUser OwnerKind = iota
	OwnerTeam
)

// OwnerRef is one owner mention in a CODEOWNERS entry: a user login or a
// team slug (without the @org/ prefix).
type OwnerRef struct {
	Kind OwnerKind
	Name string
}

// CodeownersEntry is one non-comment line of a CODEOWNERS file.
type CodeownersEntry struct {
	Repo    string
	URL     string
	Line    int
	Pattern string
	Owners  []OwnerRef
}

// CodeownersFile is the parsed content of one repository's CODEOWNERS.
type CodeownersFile struct {
	Repo    string
	URL     string
	Entries []CodeownersEntry
}

// ParseCodeowners splits file content into entries. Owner references of
// the form @<org>/<slug> are teams, @<login> are users. mail-address
// owners cannot be checked against the org graph and are dropped.
func ParseCodeowners(org, repo, url, content string) *CodeownersFile {
	file := &CodeownersFile{Repo: repo, URL: url}
	teamPrefix := "@" + org + "/"

	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		entry := CodeownersEntry{
			Repo:    repo,
			URL:     url,
			Line:    i + 1,
			Pattern: fields[0],
		}
		for _, field := range fields[1:] {
			switch {
			case strings.HasPrefix(field, teamPrefix):
				entry.Owners = append(entry.Owners, OwnerRef{
					Kind: OwnerTeam,
					Name: strings.TrimPrefix(field, teamPrefix),
				})
			case strings.HasPrefix(field, "@"):
				entry.Owners = append(entry.Owners, OwnerRef{
					Kind: OwnerUser,
					Name: strings.TrimPrefix(field, "@"),
				})
			}
		}
		file.Entries = append(file.Entries, entry)
	}

	return file
}

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

type FindingKind string

const (
	FindingUnknownUser FindingKind = "unknown-user"
	FindingUnknownTeam FindingKind = "unknown-team"
	FindingEmptyTeam   FindingKind = "empty-team-referenced"
	FindingParseError  FindingKind = "parse-error"
)

type CodeownersFinding struct {
	Severity Severity
	Kind     FindingKind
	Repo     string
	URL      string
	Line     int
	Owner    string
	Message  string
}

func (x CodeownersFinding) String() string {
	return fmt.Sprintf("[%s] %s:%d (%s) %s", x.Severity, x.Repo, x.Line, x.Kind, x.Message)
}

// ValidateCodeowners checks every owner reference of every entry against
// the org graph. The graph must be fully built; IsEmpty is only asked for
// teams that exist, so it cannot fail here.
func ValidateCodeowners(files []*CodeownersFile, graph *OrgGraph) []CodeownersFinding {
	var findings []CodeownersFinding

	for _, file := range files {
		for _, entry := range file.Entries {
			for _, owner := range entry.Owners {
				switch owner.Kind {
				case OwnerUser:
					if !graph.IsMember(owner.Name) {
						findings = append(findings, CodeownersFinding{
							Severity: SeverityError,
							Kind:     FindingUnknownUser,
							Repo:     entry.Repo,
							URL:      entry.URL,
							Line:     entry.Line,
							Owner:    owner.Name,
							Message:  fmt.Sprintf("user @%s does not belong to the org", owner.Name),
						})
					}

				case OwnerTeam:
					if !graph.TeamExists(owner.Name) {
						findings = append(findings, CodeownersFinding{
							Severity: SeverityError,
							Kind:     FindingUnknownTeam,
							Repo:     entry.Repo,
							URL:      entry.URL,
							Line:     entry.Line,
							Owner:    owner.Name,
							Message:  fmt.Sprintf("team %s does not exist in the org", owner.Name),
						})
						continue
					}
					if empty, err := graph.IsEmpty(owner.Name); err == nil && empty {
						findings = append(findings, CodeownersFinding{
							Severity: SeverityWarning,
							Kind:     FindingEmptyTeam,
							Repo:     entry.Repo,
							URL:      entry.URL,
							Line:     entry.Line,
							Owner:    owner.Name,
							Message:  fmt.Sprintf("team %s has no members, including sub-teams", owner.Name),
						})
					}
				}
			}
		}
	}

	SortFindings(findings)
	return findings
}

// SortFindings orders findings by (repository, line, owner) so reports
// are stable across runs. Callers merging parse-error findings from the
// GitHub API re-sort the combined list with this.
func SortFindings(findings []CodeownersFinding) {
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Repo != findings[j].Repo {
			return findings[i].Repo < findings[j].Repo
		}
		if findings[i].Line != findings[j].Line {
			return findings[i].Line < findings[j].Line
		}
		return findings[i].Owner < findings[j].Owner
	})
}

// FindTeamEntries returns every entry that names the given team slug as
// an owner, directly. Used to size the blast radius of a team rename.
func FindTeamEntries(files []*CodeownersFile, slug string) []CodeownersEntry {
	var entries []CodeownersEntry
	for _, file := range files {
		for _, entry := range file.Entries {
			for _, owner := range entry.Owners {
				if owner.Kind == OwnerTeam && owner.Name == slug {
					entries = append(entries, entry)
					break
				}
			}
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Repo != entries[j].Repo {
			return entries[i].Repo < entries[j].Repo
		}
		return entries[i].Line < entries[j].Line
	})
	return entries
}
