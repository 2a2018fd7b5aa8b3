// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package oauth

import (
	"context"
	"strconv"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/github"

	"github.com/lucyn-dev/lucyn/internal/config"
	"github.com/lucyn-dev/lucyn/internal/models"
)

const githubAPIBase = "https://api.github.com"

// GitHub connects a GitHub account through an OAuth App.
type GitHub struct {
	base
}

// NewGitHub creates the GitHub provider.
func NewGitHub(cfg config.ProviderConfig, opts ...Option) *GitHub {
	o := applyOptions(opts)
	return &GitHub{base: newBase(models.ProviderGitHub, &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURI,
		Scopes:       cfg.Scopes,
		Endpoint:     github.Endpoint,
	}, githubAPIBase, o)}
}

// AuthCodeURL implements Provider.
func (p *GitHub) AuthCodeURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange implements Provider.
func (p *GitHub) Exchange(ctx context.Context, code string) (*Token, error) {
	tok, err := p.exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	return newToken(tok, grantedScopes(tok, p.config.Scopes)), nil
}

type githubUser struct {
	ID        int64  `json:"id"`
	Login     string `json:"login"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatar_url"`
	HTMLURL   string `json:"html_url"`
}

// FetchProfile implements Provider with GET /user.
func (p *GitHub) FetchProfile(ctx context.Context, token *Token) (*Profile, error) {
	var u githubUser
	if err := p.getJSON(ctx, "/user", token.AccessToken, &u); err != nil {
		return nil, err
	}
	name := u.Name
	if name == "" {
		name = u.Login
	}
	return &Profile{
		ExternalID: strconv.FormatInt(u.ID, 10),
		Login:      u.Login,
		Name:       name,
		AvatarURL:  u.AvatarURL,
		Metadata:   map[string]string{"html_url": u.HTMLURL},
	}, nil
}
