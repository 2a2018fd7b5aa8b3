// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

/*
Package authz decides what an organization member may do, using Casbin RBAC.

The model and policy are embedded (model.conf, policy.csv). Roles inherit
downwards, owner > admin > member:

	member  read dashboard, insights, repositories, integrations, organization
	        write insights
	admin   write organization and repositories; write and delete integrations
	owner   everything an admin may do

Handlers are guarded with Require after authentication:

	r.With(authzMW.Require(authz.ObjectIntegrations, authz.ActionDelete)).
	    Delete("/api/integrations/{provider}", h.DeleteIntegration)
*/
package authz
