package model

import (
	"regexp"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
)

type Config struct {
	Org string

	// Either a personal access token or a GitHub App credential set.
	Token          string `zlog:"secret"`
	AppID          int64
	InstallID      int64
	PrivateKeyFile string
	PrivateKeyData string `zlog:"secret"`

	LogFormat    string
	LogLevel     string
	SlackWebhook string `zlog:"secret"`

	Thread int64
	Limit  int64
}

func (x *Config) Validate() error {
	if err := validation.ValidateStruct(x,
		validation.Field(&x.Org, validation.Required, validation.Match(regexp.MustCompile(`^[a-zA-Z0-9-_.]+$`))),
		validation.Field(&x.LogFormat, validation.In("text", "json"), validation.Required),
		validation.Field(&x.LogLevel, validation.In("trace", "debug", "info", "warn", "error"), validation.Required),
		validation.Field(&x.Thread, validation.Min(int64(1))),
	); err != nil {
		return types.ErrInvalidConfig.Wrap(err)
	}

	if x.Token != "" {
		if x.AppID != 0 || x.InstallID != 0 || x.PrivateKeyFile != "" || x.PrivateKeyData != "" {
			return goerr.Wrap(types.ErrInvalidConfig, "token and GitHub App credentials are exclusive")
		}
		return nil
	}

	if x.AppID == 0 || x.InstallID == 0 {
		return goerr.Wrap(types.ErrInvalidConfig, "either a token or GitHub App ID and install ID are required")
	}
	if (x.PrivateKeyFile == "" && x.PrivateKeyData == "") ||
		(x.PrivateKeyFile != "" && x.PrivateKeyData != "") {
		return goerr.Wrap(types.ErrInvalidConfig, "either one of private key file or data is required")
	}

	return nil
}
