// Package resolver decides what a new download request means when earlier
// tasks already cover the same content: reuse the existing task, start
// fresh, surface the match for the caller to decide, or reject the request
// outright. Its verdicts are advisory; the task store's uniqueness guarantee
// is what actually prevents duplicate rows.
package resolver
