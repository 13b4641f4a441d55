package usecase

import (
	"io"
	"os"

	"github.com/obelisk/gh-ec-audit/pkg/infra"
)

type Usecase struct {
	clients *infra.Clients
	out     io.Writer
	thread  int64
	limit   int64
	verbose bool
	all     bool
}

func New(clients *infra.Clients, options ...Option) *Usecase {
	uc := &Usecase{
		clients: clients,
		out:     os.Stdout,
		thread:  4,
	}

	for _, opt := range options {
		opt(uc)
	}

	return uc
}

type Option func(uc *Usecase)

func WithThread(n int64) Option {
	return func(uc *Usecase) {
		if n > 0 {
			uc.thread = n
		}
	}
}

func WithLimit(n int64) Option {
	return func(uc *Usecase) {
		uc.limit = n
	}
}

func WithVerbose(v bool) Option {
	return func(uc *Usecase) {
		uc.verbose = v
	}
}

// WithAll disables the audit-specific filtering, e.g. the deploy-key
// audit reports every key instead of only the suspicious ones.
func WithAll(v bool) Option {
	return func(uc *Usecase) {
		uc.all = v
	}
}

func WithOutput(w io.Writer) Option {
	return func(uc *Usecase) {
		uc.out = w
	}
}

// capLimit applies the --limit option to a repository list.
func capLimit[T any](items []T, limit int64) []T {
	if limit > 0 && int64(len(items)) > limit {
		return items[:limit]
	}
	return items
}
