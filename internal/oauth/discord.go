// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/models"
)

// DiscordEndpoint is Discord's OAuth2 endpoint.
var DiscordEndpoint = oauth2.Endpoint{
	AuthURL:   "https://discord.com/oauth2/authorize",
	TokenURL:  "https://discord.com/api/oauth2/token",
	AuthStyle: oauth2.AuthStyleInParams,
}

const (
	discordAPIBase = "https://discord.com/api"
	discordCDN     = "https://cdn.discordapp.com"
)

// Discord connects a Discord user account.
type Discord struct {
	base
}

// NewDiscord creates the Discord provider.
func NewDiscord(cfg config.ProviderConfig, opts ...Option) *Discord {
	o := applyOptions(opts)
	return &Discord{base: newBase(models.ProviderDiscord, &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint:     DiscordEndpoint,
	}, discordAPIBase, o)}
}

// AuthCodeURL implements Provider.
func (p *Discord) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange implements Provider.
func (p *Discord) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return newToken(tok, grantedScopes(tok, p.config.Scopes)), nil
}

type discordUser struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
	Avatar     string `json:"avatar"`
}

// FetchProfile implements Provider with GET /users/@me.
func (p *Discord) FetchProfile(ctx context.Context, token *Token) (*Profile, error) {
	var u discordUser
	if err := p.getJSON(ctx, "/users/@me", token.AccessToken, &u); err != nil {
		return nil, err
	}
	name := u.GlobalName
	if name == "" {
		name = u.Username
	}
	profile := &Profile{
		ExternalID: u.ID,
		Login:      u.Username,
		Name:       name,
	}
	if u.Avatar != "" {
		profile.AvatarURL = fmt.Sprintf("%s/avatars/%s/%s.png", discordCDN, u.ID, u.Avatar)
	}
	return profile, nil
}
