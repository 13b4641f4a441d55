package usecase

import (
	"fmt"

	"github.com/m-mizutani/goerr"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

func (x *Usecase) AuditMembers(ctx *types.Context, org string) error {
	members, err := x.clients.GitHub().GetOrgMembers(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch org members").With("org", org)
	}

	utils.Logger.With("members", len(members)).Info("fetched org members")
	for _, member := range members {
		fmt.Fprintf(x.out, "%s %s\n", member.Login, member.AvatarURL)
	}
	return nil
}

func (x *Usecase) AuditAdmins(ctx *types.Context, org string) error {
	admins, err := x.clients.GitHub().GetOrgAdmins(ctx, org)
	if err != nil {
		return goerr.Wrap(err, "failed to fetch org admins").With("org", org)
	}

	utils.Logger.With("admins", len(admins)).Info("fetched org admins")
	for _, admin := range admins {
		fmt.Fprintln(x.out, admin.Login)
	}
	return nil
}
