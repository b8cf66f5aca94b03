// Package config loads, normalizes, and validates towline configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours the TOWLINE_RPC_SECRET
// environment fallback. Obtain settings through this package so downstream
// code receives sanitized paths and clear validation errors.
package config
