// Package types defines the Store and Table interfaces, the party entity and
// its child rows, the presence-aware input and patch types, the assembled
// view, and the error taxonomy shared by every partybook component.
//
// The primary store offers single-table operations only. Nothing in this
// package promises atomicity across tables; the orchestrator in
// internal/party layers a saga on top of these contracts.
package types
