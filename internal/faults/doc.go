// Package faults defines the closed error taxonomy shared across towline.
//
// Every failure a public operation can surface is tagged with one of the
// sentinel kinds below. Callers dispatch with errors.Is on the sentinel;
// the wrapped message text is diagnostic payload only and never drives
// control flow.
package faults
