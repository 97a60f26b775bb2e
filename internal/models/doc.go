// Package models defines the core domain records for Picadito.
//
// # Records
//
//   - QueueEntry: a user waiting to be grouped into a match by matchmaking
//   - Match: a scheduled game with its roster, applicants and manual players
//   - ChatMessage: an append-only entry in a match's conversation
//
// Enumerations (Format, SkillLevel, DateRange, QueueStatus, MatchStatus, VenueStatus,
// Visibility) are string types so they read naturally in the database and on the wire.
// Every switch over them lists each value explicitly.
//
// # Identity
//
// Users are identified by opaque id strings issued by the identity provider. Records
// reference each other by id, never by pointer.
package models
