package infra

import (
	"github.com/obelisk/gh-ec-audit/pkg/infra/githubapp"
	"github.com/obelisk/gh-ec-audit/pkg/infra/notify"
)

type Clients struct {
	github githubapp.Client
	slack  notify.SlackClient
}

func New(options ...Option) *Clients {
	clients := &Clients{}
	for _, opt := range options {
		opt(clients)
	}
	return clients
}

func (x *Clients) GitHub() githubapp.Client  { return x.github }
func (x *Clients) Slack() notify.SlackClient { return x.slack }

type Option func(c *Clients)

func WithGitHub(client githubapp.Client) Option {
	return func(c *Clients) {
		c.github = client
	}
}

func WithSlack(client notify.SlackClient) Option {
	return func(c *Clients) {
		c.slack = client
	}
}
