package types

import "github.com/m-mizutani/goerr"

var (
	ErrInvalidConfig = goerr.New("invalid config")

	ErrUnexpectedGitHubResp = goerr.New("unexpected github response")

	// ErrMalformedResponse means a page decoded into something unusable.
	// It is fatal for the traversal that hit it.
	ErrMalformedResponse = goerr.New("malformed github response")

	// ErrRetryExhausted means a call kept failing transiently until the
	// policy's attempt ceiling. Partial results may accompany it.
	ErrRetryExhausted = goerr.New("retries exhausted")

	ErrAccessDenied = goerr.New("access denied by github")
	ErrNotFound     = goerr.New("resource not found")

	ErrGraphCycle      = goerr.New("team hierarchy contains a cycle")
	ErrGraphIncomplete = goerr.New("organization graph could not be fully built")
	ErrUnknownTeam     = goerr.New("unknown team slug")

	// ErrStateFile covers malformed rows in the previous-run CSV. A bad
	// row is fatal: skipping it would silently drop a collaborator.
	ErrStateFile = goerr.New("invalid collaborator state file")

	ErrDuplicateRecord = goerr.New("duplicate collaborator record key")
)
