// Package tasks coordinates long-running operations that are executed by an
// out-of-process worker.
//
// # Lifecycle
//
// A caller submits a task of a given Kind. The Submitter validates the parameters and
// writes a Pending row to the registry. A Session then polls that row by id until the
// worker writes a terminal status:
//
//	Idle -> Requesting -> Polling -> Completed
//	                   \          \-> Failed
//	                    \-> Failed
//
// Each session owns exactly two timers: the poll timer and the timeout timer. Both are
// stopped before any state change and every timer callback re-reads the session state
// under its lock before acting, so a callback that was already queued when the session
// ended does nothing.
//
// # Budgets
//
// Poll intervals and timeout budgets are fixed per kind (see KindTiming):
//
//   - list_sync:    3s poll, 300s budget (market-wide instrument refresh)
//   - history_sync: 2s poll, 120s budget
//   - analysis:     3s poll, 300s budget (bulk screening)
//   - compare:      2s poll, 120s budget
package tasks
