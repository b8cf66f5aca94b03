// Package engine defines the transfer-engine abstraction the orchestrator
// delegates byte movement to. Implementations perform the actual network
// transfers; the orchestrator only tracks identity, state, and progress.
package engine
