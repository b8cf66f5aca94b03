// Package ariarpc implements the transfer engine against an aria2-compatible
// JSON-RPC 2.0 endpoint.
package ariarpc
