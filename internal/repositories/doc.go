// Package repositories implements SQLite persistence for all domain entities.
//
// Each repository handles CRUD operations with atomic sequence generation for human-readable ordering.
// Repositories with soft delete support exclude deleted records from queries by default.
//
// Key Implementations:
//   - [CredentialRepository] : Encrypted-at-rest OAuth token storage, one credential per user
//   - [UserRepository] : User account persistence with email-based lookups
//   - [TrackRepository] : Track cache with ISRC and provider cross-link management
//   - [PlaylistRepository] : Curation playlists with Spotify linkage
//   - [SyncJobRepository] : Catalog sync and playlist build history
//
// [CredentialRepository] is the token store consumed by the resilient Spotify
// client: token columns hold AES-GCM ciphertext produced by [shared.Encryptor],
// and updates are last-writer-wins (a stale refresh token write is superseded
// at the next refresh; multi-instance deployments wanting stronger guarantees
// need a version column or an external lock, which this layer does not provide).
//
// Sequence numbers provide stable, human-readable ordering independent of UUIDs
// and creation timestamps. The [NextSequence] function atomically increments
// per-table sequence counters in dedicated sequence tables.
package repositories
