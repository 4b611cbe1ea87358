// Package models defines domain entities and persistence interfaces for the curation backend.
//
// The package contains two categories of types:
//
// 1. Persistent Entities: Database-backed models with full lifecycle management
//   - [User] : Accounts owning credentials and playlists
//   - [Credential] : Per-user OAuth token material, encrypted at rest
//   - [Track] : Cached catalog tracks with ISRC for cross-provider matching
//   - [Playlist] : Curation playlists linked to their Spotify counterparts
//   - [SyncJob] : Catalog sync and playlist build run history
//
// 2. Data Transfer Objects:
//   - [TokenPayload] : Token material as returned by the provider's token endpoint
//   - [ExternalData] : A provider cross-link (Spotify/Beatport) for a track
//   - [TrackWithExternalData] : Explicit composite of a track and its cross-links,
//     so related records are never attached to a fetched entity after the fact
//
// All persistent entities implement the [Model] interface providing ID generation,
// timestamps, validation, and (where applicable) soft delete support. The
// [Repository] interface defines standard CRUD operations for database access.
package models
