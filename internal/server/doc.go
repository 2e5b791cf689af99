// Package server runs the short-lived local HTTP listener backing the
// interactive `auth login` flow.
//
// The listener serves exactly one OAuth redirect: [CallbackHandler] validates
// the state token, captures the authorization code, and hands it back over a
// channel so the command can complete the exchange and shut the server down.
package server
