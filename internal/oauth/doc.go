// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package oauth implements the authorization-code flow for the integration
providers (GitHub, Slack, Discord) on top of golang.org/x/oauth2.

Each Provider builds the authorize URL, exchanges the callback code for
tokens and fetches the connected account's profile. Every outbound call runs
through a per-provider sony/gobreaker circuit breaker so a provider outage
fails fast instead of tying up request goroutines:

	reg := oauth.NewRegistry(&cfg.OAuth)
	p, err := reg.Get("github")
	if errors.Is(err, oauth.ErrProviderNotConfigured) {
	    // 503
	}
	tok, err := p.Exchange(ctx, code)
	profile, err := p.FetchProfile(ctx, tok)

Provider 4xx answers (bad code, revoked token) count as successes for the
breaker; transport errors and 5xx answers count as failures.
*/
package oauth
