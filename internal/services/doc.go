// Package services contains the catalog provider clients.
//
// [SpotifyClient] is the per-user client: it owns the user's token
// lifecycle (proactive and reactive refresh, revocation handling) and
// retries rate-limited, server-error, and network-failed requests with
// bounded backoff. [AppTokenSource] serves anonymous catalog lookups with
// a cached client-credentials token. [BeatportClient] streams catalog
// pages from Beatport.
//
// Provider errors are classified into the sentinel errors in
// internal/shared and wrapped in [StatusError], so callers branch with
// errors.Is rather than status-code checks.
package services
