package usecase

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/obelisk/gh-ec-audit/pkg/domain/types"
	"github.com/obelisk/gh-ec-audit/pkg/utils"
)

// runReport is the Slack-facing summary of one audit run.
type runReport struct {
	Title string
	Org   string
	Total int
	Lines []string
}

func (x *runReport) summarySection() *slack.SectionBlock {
	return slack.NewSectionBlock(nil,
		[]*slack.TextBlockObject{
			slack.NewTextBlockObject(
				slack.MarkdownType,
				fmt.Sprintf("*Organization*: %s", x.Org),
				false, false,
			),
			slack.NewTextBlockObject(
				slack.MarkdownType,
				fmt.Sprintf("*Findings*: %d", x.Total),
				false, false,
			),
		},
		nil,
	)
}

func (x *runReport) buildDetailBlocks() []slack.Block {
	const listLimit = 16
	var blocks []slack.Block

	lines := x.Lines
	if len(lines) > listLimit {
		more := len(lines) - listLimit
		lines = append(lines[:listLimit:listLimit], "", fmt.Sprintf("and %d more", more))
	}
	if len(lines) > 0 {
		blocks = append(blocks,
			slack.NewDividerBlock(),
			slack.NewSectionBlock(
				slack.NewTextBlockObject(slack.MarkdownType, strings.Join(lines, "\n"), false, false), nil, nil,
			),
		)
	}
	return blocks
}

func (x *runReport) toMessage() *slack.WebhookMessage {
	color := "#2EB67D"
	header := fmt.Sprintf(":white_check_mark: %s: nothing to report", x.Title)
	if x.Total > 0 {
		color = "#E01E5A"
		header = fmt.Sprintf(":rotating_light: %s: %d findings", x.Title, x.Total)
	}

	blocks := append([]slack.Block{
		slack.NewHeaderBlock(
			slack.NewTextBlockObject(slack.PlainTextType, header, false, false),
		),
		x.summarySection(),
	}, x.buildDetailBlocks()...)

	return &slack.WebhookMessage{
		Text: x.Title,
		Attachments: []slack.Attachment{
			{
				Color: color,
				Blocks: slack.Blocks{
					BlockSet: blocks,
				},
			},
		},
	}
}

// notify posts the run summary if a webhook is configured. A failed post
// is logged but never fails an otherwise successful audit.
func (x *Usecase) notify(ctx *types.Context, report *runReport) error {
	if x.clients.Slack() == nil {
		return nil
	}

	if err := x.clients.Slack().Post(ctx, report.toMessage()); err != nil {
		utils.Logger.Err(err).Warn("failed to post Slack summary")
	}
	return nil
}
