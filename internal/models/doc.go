// Package models defines the core domain models for Giftwiser.
//
// # Models
//
//   - Event: a gift-giving occasion; people join it as Members with a per-event Role
//   - List: a gift list inside an Event, carrying the random assignment configuration
//   - Item: a single gift on a List
//   - Claim: a member's reservation of an Item
//   - SplitRequest: a proposal to share an already-claimed Item with a second member
//   - Activity: an event emitted for the notification subsystem
//
// # Design Principles
//
// 1. **IDs over pointers**: relationships are expressed through ID strings (UUID format)
// 2. **Unix timestamps**: all times are stored as Unix seconds
// 3. **Engine-owned fields**: Item assignment fields are written only by the random
//    assignment engine, never by direct user action
package models
