// Package tasks contains the curation engine.
//
// [Engine.CatalogSync] pulls a genre/date window of the Beatport catalog,
// matches tracks to Spotify by ISRC through a rate-limited worker pool,
// and upserts tracks with provider cross-links into the local store. Each
// run is recorded as a SyncJob row.
//
// [Engine.PlaylistBuild] resolves a local playlist's tracks to Spotify
// URIs and pushes them to a newly created remote playlist through the
// resilient client.
//
// Both operations report progress over a channel; sends never block, so a
// slow or absent consumer cannot stall a run.
package tasks
