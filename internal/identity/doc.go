// Package identity turns raw download requests into stable identity keys.
//
// A locator is normalized (scheme/host case, default ports, fragments, and
// query ordering are insignificant; path segments and parameter values are
// significant) and hashed into a fixed-length fingerprint. Together with the
// canonical destination path the fingerprint forms the dedup key every other
// subsystem compares on. Raw locators are never hashed directly: unparsable
// input fails with an invalid-locator error instead of risking a merge of
// unrelated resources.
package identity
