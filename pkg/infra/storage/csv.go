// Package storage reads and writes the collaborator state file: the CSV
// one run emits and the next run reconciles against.
package storage

import (
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/model"
	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

var columns = []string{"user", "repository", "access", "status", "ticket", "approval"}

// ReadRecords parses a previous-run state file. A malformed row is a
// hard error: silently dropping a collaborator from an access audit is
// worse than failing the run.
func ReadRecords(path string) ([]model.CollaboratorRecord, error) {
	fd, err := os.Open(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open state file").With("path", path)
	}
	defer fd.Close()

	records, err := ParseRecords(fd)
	if err != nil {
		return nil, goerr.Wrap(err).With("path", path)
	}
	return records, nil
}

// ParseRecords decodes state rows from r. A header row is tolerated but
// not required.
func ParseRecords(r io.Reader) ([]model.CollaboratorRecord, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(columns)

	var records []model.CollaboratorRecord
	seen := map[model.RecordKey]struct{}{}
	line := 0
	for {
		row, err := reader.Read()
		if err == io.EOF {
			return records, nil
		}
		line++
		if err != nil {
			return nil, goerr.Wrap(types.ErrStateFile, err.Error()).With("line", line)
		}

		if line == 1 && isHeader(row) {
			continue
		}

		access, ok := model.ParsePermission(row[2])
		if !ok {
			return nil, goerr.Wrap(types.ErrStateFile, "unknown access level").
				With("line", line).With("access", row[2])
		}

		rec := model.CollaboratorRecord{
			Login:    row[0],
			Repo:     row[1],
			Access:   access,
			Status:   row[3],
			Ticket:   row[4],
			Approval: row[5],
		}
		if _, ok := seen[rec.Key()]; ok {
			return nil, goerr.Wrap(types.ErrStateFile, "duplicate record").
				With("line", line).With("login", rec.Login).With("repo", rec.Repo)
		}
		seen[rec.Key()] = struct{}{}
		records = append(records, rec)
	}
}

// isHeader matches the full header row. A single field is not enough: a
// collaborator may literally be named "user".
func isHeader(row []string) bool {
	for i, col := range columns {
		if !strings.EqualFold(row[i], col) {
			return false
		}
	}
	return true
}

// WriteRecords writes the full updated state, header included, so the
// output can serve as the next run's input unchanged.
func WriteRecords(w io.Writer, records []model.CollaboratorRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return goerr.Wrap(err)
	}
	for _, rec := range records {
		row := []string{rec.Login, rec.Repo, rec.Access.String(), rec.Status, rec.Ticket, rec.Approval}
		if err := writer.Write(row); err != nil {
			return goerr.Wrap(err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return goerr.Wrap(err)
	}
	return nil
}
