// Package roomtap extracts record streams from the SevenRooms reservation
// platform REST API and emits them as Singer-style JSON-line messages with
// checkpointed, resumable progress.
//
// The extraction engine is organized as a small stack of components:
//
//   - pkg/client: authenticated session, rate-limited resilient request
//     executor, and cursor-paginated day fetcher
//   - pkg/catalog: the static stream definition tree (venues and their
//     dependent reservation and client streams)
//   - pkg/state: durable day-granularity checkpoint store
//   - pkg/sync: the stream sync driver that walks the configured date range,
//     cascades into child streams, and persists bookmarks
//   - pkg/emit: the outbound SCHEMA/RECORD/STATE message boundary
//
// The cmd/roomtap binary wires these together behind a cobra CLI.
package roomtap
