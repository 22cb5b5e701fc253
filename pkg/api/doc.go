/*
Package api implements the ADL builder HTTP API.

Routes live under a configurable prefix (default /api/v1):

	POST   /auth/token                  form login, rate limited per client
	POST   /auth/logout                 revoke the presented access token
	POST   /auth/refresh                rotate a refresh token
	POST   /users/                      register
	GET    /users/me                    current user
	PUT    /users/me                    update profile
	POST   /users/me/password           change password, invalidates older tokens
	GET    /admin/users                 list users (admin)
	GET    /admin/users/count           count users (admin)
	DELETE /admin/users/{id}            delete user (admin)
	PATCH  /admin/users/{id}/promote    grant admin (admin)
	PATCH  /admin/users/{id}/demote     revoke admin (admin)
	POST   /assistants/                 create
	GET    /assistants/                 list own
	GET    /assistants/public           list public, no token needed
	GET    /assistants/{id}             read own or public
	PUT    /assistants/{id}             update own
	DELETE /assistants/{id}             delete own
	POST   /validate/yaml               validate an ADL document
	GET    /schema/                     the ADL schema as JSON
	GET    /templates/                  template catalog
	GET    /templates/{id}              one template
	POST   /templates/{id}/clone        copy a template into a private assistant

GET /health sits outside the prefix.

Every error body is {"detail": ...}. Authentication goes through a single
auth.Gate; see pkg/middleware for how its errors map to status codes.
*/
package api
