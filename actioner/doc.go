// Action evaluation and dispatch engine for content-hash match notifications.
//
// This package (`github.com/hma-go/actioner/actioner`) takes match events from an upstream hash matcher (a piece of content matched a known signal, with a set of labels describing the match context), evaluates them against declarative policy rules, resolves conflicts between competing actions by priority and supersession, and publishes the resulting action work items (and, when enabled, reactions for the signal exchange) on to outbound queues.
//
// Policy configuration is loaded through a `rulestore.Store` as an immutable `policy.Snapshot`. Records in a batch are processed independently, and every record returns an explicit outcome which is aggregated in to a `BatchSummary`.
//
// See `cmd/actioner` for a daemon built on this package.
package actioner
