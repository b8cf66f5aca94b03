// Package orchestrator coordinates the download lifecycle: it turns
// requests into persisted tasks, hands transfers to the engine, keeps the
// store reconciled with what the engine reports, and re-registers
// unfinished work after a restart. The store owns identity and state
// validity; the engine owns bytes; the orchestrator owns the mapping
// between the two.
package orchestrator
