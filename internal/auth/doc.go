// package auth owns the Spotify OAuth credential lifecycle.
//
// The manager is a four state machine (unauthenticated, code received,
// token expired or refresh missing, authenticated) evaluated at every cycle
// start and re-evaluated when an API call comes back 401. Recovery is
// automatic wherever possible; the one non-automatable boundary is the
// manual authorization round trip, surfaced as [shared.ErrAuthorizationRequired]
// together with the URL to visit.
package auth
