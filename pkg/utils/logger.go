package utils

import (
	"os"

	"github.com/m-mizutani/goerr"
	"github.com/m-mizutani/zlog"
	"github.com/m-mizutani/zlog/filter"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

var Logger = zlog.New()

func RenewLogger(logLevel, logFormat string) error {
	var emitter zlog.Emitter
	switch logFormat {
	case "text":
		emitter = zlog.NewConsoleEmitter(zlog.ConsoleWriter(os.Stdout))
	case "json":
		emitter = zlog.NewJsonEmitter(zlog.JsonWriter(os.Stdout))
	default:
		return goerr.Wrap(types.ErrInvalidConfig, "invalid log format").With("format", logFormat)
	}
	Logger = zlog.New(
		zlog.WithEmitter(emitter),
		zlog.WithLogLevel(logLevel),
		zlog.WithFilters(
			filter.Tag("secret"),
		),
	)

	return nil
}
