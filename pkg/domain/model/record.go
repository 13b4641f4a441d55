package model

import (
	"fmt"
	"sort"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

// CollaboratorRecord is one row of the reconciliation state: an external
// collaborator's access to one repository, plus the review metadata a
// human filled in on a previous run.
type CollaboratorRecord struct {
	Login    string
	Repo     string
	Access   Permission
	Status   string
	Ticket   string
	Approval string
}

type RecordKey struct {
	Login string
	Repo  string
}

func (x CollaboratorRecord) Key() RecordKey {
	return RecordKey{Login: x.Login, Repo: x.Repo}
}

type DeltaKind string

const (
	DeltaNew           DeltaKind = "new"
	DeltaRemoved       DeltaKind = "removed"
	DeltaUnchanged     DeltaKind = "unchanged"
	DeltaAccessChanged DeltaKind = "access-changed"
)

// Delta describes what happened to one record key between the previous
// run and the current one.
type Delta struct {
	Kind  DeltaKind
	Login string
	Repo  string
	From  Permission
	To    Permission
}

func (x Delta) String() string {
	switch x.Kind {
	case DeltaAccessChanged:
		return fmt.Sprintf("%s on %s: access changed %s -> %s", x.Login, x.Repo, x.From, x.To)
	case DeltaNew:
		return fmt.Sprintf("%s on %s: new collaborator (%s)", x.Login, x.Repo, x.To)
	case DeltaRemoved:
		return fmt.Sprintf("%s on %s: access removed (was %s)", x.Login, x.Repo, x.From)
	default:
		return fmt.Sprintf("%s on %s: unchanged (%s)", x.Login, x.Repo, x.To)
	}
}

func indexRecords(records []CollaboratorRecord) (map[RecordKey]CollaboratorRecord, error) {
	index := make(map[RecordKey]CollaboratorRecord, len(records))
	for _, r := range records {
		key := r.Key()
		if _, ok := index[key]; ok {
			return nil, goerr.Wrap(types.ErrDuplicateRecord).
				With("login", key.Login).With("repo", key.Repo)
		}
		index[key] = r
	}
	return index, nil
}

// Reconcile merges the freshly observed collaborator set with the one
// persisted by the previous run.
//
// Review metadata (status, ticket, approval) is carried forward only when
// the access level did not move: an approval was granted for a specific
// level, so any change invalidates it and the row starts over blank.
// Keys that disappeared from the current set are reported as removed and
// never written to the output.
func Reconcile(current, previous []CollaboratorRecord) ([]CollaboratorRecord, []Delta, error) {
	curIdx, err := indexRecords(current)
	if err != nil {
		return nil, nil, err
	}
	prevIdx, err := indexRecords(previous)
	if err != nil {
		return nil, nil, err
	}

	updated := make([]CollaboratorRecord, 0, len(current))
	var deltas []Delta

	for _, cur := range current {
		prev, seen := prevIdx[cur.Key()]
		switch {
		case !seen:
			updated = append(updated, CollaboratorRecord{
				Login:  cur.Login,
				Repo:   cur.Repo,
				Access: cur.Access,
			})
			deltas = append(deltas, Delta{Kind: DeltaNew, Login: cur.Login, Repo: cur.Repo, To: cur.Access})

		case prev.Access == cur.Access:
			updated = append(updated, prev)
			deltas = append(deltas, Delta{Kind: DeltaUnchanged, Login: cur.Login, Repo: cur.Repo, From: prev.Access, To: cur.Access})

		default:
			updated = append(updated, CollaboratorRecord{
				Login:  cur.Login,
				Repo:   cur.Repo,
				Access: cur.Access,
			})
			deltas = append(deltas, Delta{Kind: DeltaAccessChanged, Login: cur.Login, Repo: cur.Repo, From: prev.Access, To: cur.Access})
		}
	}

	for _, prev := range previous {
		if _, ok := curIdx[prev.Key()]; !ok {
			deltas = append(deltas, Delta{Kind: DeltaRemoved, Login: prev.Login, Repo: prev.Repo, From: prev.Access})
		}
	}

	SortRecords(updated)
	sort.SliceStable(deltas, func(i, j int) bool {
		if deltas[i].Repo != deltas[j].Repo {
			return deltas[i].Repo < deltas[j].Repo
		}
		return deltas[i].Login < deltas[j].Login
	})

	return updated, deltas, nil
}

// SortRecords orders records by (repository, user) so two runs over the
// same state produce byte-identical output files.
func SortRecords(records []CollaboratorRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		if records[i].Repo != records[j].Repo {
			return records[i].Repo < records[j].Repo
		}
		return records[i].Login < records[j].Login
	})
}
