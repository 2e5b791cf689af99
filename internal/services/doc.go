// package services implements the Spotify Web API client used by the sync
// engine.
//
// Only the operations the engine needs are covered: profile, the first page
// of the user's playlists, playlist create, member listing, bulk remove,
// chunked bulk add, track search, and cover image read/upload. Requests are
// authenticated through [auth.Manager]; a 401 response forces one credential
// state re-evaluation and a single retry.
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services
