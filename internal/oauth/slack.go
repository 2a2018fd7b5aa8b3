// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/oauth2"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// SlackEndpoint is Slack's v2 (granular bot permissions) OAuth endpoint.
var SlackEndpoint = oauth2.Endpoint{
	AuthURL:   "https://slack.com/oauth/v2/authorize",
	TokenURL:  "https://slack.com/api/oauth.v2.access",
	AuthStyle: oauth2.AuthStyleInParams,
}

const slackAPIBase = "https://slack.com/api"

// errSlackNoTeam is returned when the token response lacks the workspace.
var errSlackNoTeam = errors.New("slack token response has no team")

// Slack installs the Lucyn bot into a Slack workspace.
type Slack struct {
	base
	scopes []string
}

// NewSlack creates the Slack provider.
func NewSlack(cfg config.ProviderConfig, opts ...Option) *Slack {
	o := applyOptions(opts)
	// Scopes go in the URL comma-separated, so x/oauth2 must not add its own.
	return &Slack{
		base: newBase(models.ProviderSlack, &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Endpoint:     SlackEndpoint,
		}, slackAPIBase, o),
		scopes: cfg.Scopes,
	}
}

// AuthCodeURL implements Provider.
func (p *Slack) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state, oauth2.SetAuthURLParam("scope", strings.Join(p.scopes, ",")))
}

// Exchange implements Provider. The workspace and bot identity come back
// with the token and are kept in Token.Metadata.
func (p *Slack) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}

	t := newToken(tok, grantedScopes(tok, p.scopes))
	if team, ok := tok.Extra("team").(map[string]interface{}); ok {
		t.Metadata["team_id"] = stringField(team, "id")
		t.Metadata["team_name"] = stringField(team, "name")
	}
	if user, ok := tok.Extra("authed_user").(map[string]interface{}); ok {
		t.Metadata["authed_user_id"] = stringField(user, "id")
	}
	if bot, ok := tok.Extra("bot_user_id").(string); ok {
		t.Metadata["bot_user_id"] = bot
	}
	if app, ok := tok.Extra("app_id").(string); ok {
		t.Metadata["app_id"] = app
	}
	return t, nil
}

// FetchProfile implements Provider. The connected account is the workspace,
// taken from the token response.
func (p *Slack) FetchProfile(_ context.Context, token *Token) (*Profile, error) {
	teamID := token.Metadata["team_id"]
	if teamID == "" {
		return nil, errSlackNoTeam
	}
	meta := map[string]string{}
	for _, k := range []string{"authed_user_id", "bot_user_id", "app_id"} {
		if v := token.Metadata[k]; v != "" {
			meta[k] = v
		}
	}
	return &Profile{
		ExternalID: teamID,
		Login:      teamID,
		Name:       token.Metadata["team_name"],
		Metadata:   meta,
	}, nil
}

func stringField(m map[string]interface{}, key string) string {
	s, _ := m[key].(string)
	return s
}
