// Package psa implements the REST integration with the remote
// helpdesk/PSA platform.
//
// # Layers
//
// Client owns one connection: it manages the OAuth2 client-credentials
// token lifecycle (cache, 60-second expiry buffer, transparent
// re-authentication on every call) and converts every non-success
// response into the typed error taxonomy (AuthError, RateLimitError,
// NotFoundError, APIError). It never retries and never swallows a
// failure.
//
// Repository is the generic CRUD layer on top of the client. A
// concrete repository is a value: an endpoint path plus a pure
// transform mapping one raw record to one typed entity. List payloads
// arrive in several shapes (bare arrays, a generic "records" wrapper,
// per-endpoint wrapper keys); normalization matches the shape
// explicitly and degrades to an empty collection for anything
// unrecognized.
//
// The entity services (TicketService, ActionService, ClientService,
// AgentService, StatusService) bind endpoints to transforms and add
// the few domain calls the duplicate-detection and merge flows need.
//
// # Concurrency
//
// One Client is one logical connection. Its token cache is shared by
// everything using that Client; a mutex guards the cache fields, but
// no lock spans the token exchange itself. Two callers racing on an
// expired token may both re-authenticate; the remote token endpoint
// tolerates that, and the cache keeps the last response. Calls are
// otherwise independent; the engines built on this package issue them
// strictly in sequence because note ordering and the remote rate
// limit depend on it.
package psa
