// Package logging constructs the slog loggers used throughout towline.
//
// It supplies json and console handler construction from config, typed
// attribute helpers, and the standardized component/event_type/error_hint
// field keys so log output stays greppable across subsystems.
package logging
