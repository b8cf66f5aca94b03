// Command towline is the CLI for the towline download orchestrator. It
// queues downloads against an aria2-compatible engine, deduplicates
// requests, and keeps task state persisted across restarts.
package main
