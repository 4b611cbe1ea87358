// Package server provides HTTP routing, middleware, and the curation API.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally; method-qualified
// patterns ("GET /v1/playlists/{id}") do the method filtering.
//
// # OAuth Callback Handler
//
// OAuthHandler implements the OAuth2 authorization code callback flow.
//
// The handler validates the state parameter (CSRF protection), exchanges the authorization code for tokens,
// persists the credential through the supplied hook, and sends the result through a channel.
//
// It only processes one callback to prevent replay attacks.
//
// The same handler serves two modes: the `auth login` CLI command runs a
// temporary server on the configured port and waits on the result channel,
// while `serve` mounts it alongside the API so authorization can be redone
// without stopping the service.
//
// # Curation API
//
// [APIHandler] exposes local playlist CRUD, remote playlist builds and
// imports, catalog sync, and job history. Remote calls go through a
// [ClientFactory] so every request gets a client bound to the stored
// credential; client errors map onto HTTP statuses via the sentinel error
// taxonomy in the shared package.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
