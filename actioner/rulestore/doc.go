// Action evaluator component for loading policy configuration (action rules, action precedence, and reaction settings).
//
// Includes an interface and implementations backed by a static value, a local JSON file, and redis. `CachedStore` memoizes snapshots for a fixed TTL (or for the process lifetime), and `RetryingStore` retries transient load failures with bounded backoff.
package rulestore
