// Package logging builds the service's slog logger from configuration.
package logging
