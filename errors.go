package passage

import "fmt"

// InvalidInputError reports an empty or malformed document or query.
// Caller error, never retried or corrected.
type InvalidInputError struct {
	Msg string
}

func (e *InvalidInputError) Error() string {
	return "invalid input: " + e.Msg
}

// ConfigError reports contradictory configuration. Fatal and surfaced
// immediately; values are never silently clamped.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Msg)
}

// ProviderUnavailableError reports a transient dependency failure (embedding
// provider, summarizer). Strategies that depend on the provider degrade to a
// dependency-free fallback and record that in output metadata.
type ProviderUnavailableError struct {
	Provider string
	Err      error
}

func (e *ProviderUnavailableError) Error() string {
	if e.Err == nil {
		return e.Provider + ": unavailable"
	}
	return fmt.Sprintf("%s: unavailable: %v", e.Provider, e.Err)
}

func (e *ProviderUnavailableError) Unwrap() error { return e.Err }

// EmptyIndexError reports a retrieval against an index holding zero chunks.
// Surfaced as an empty-knowledge-base condition, not a crash.
type EmptyIndexError struct {
	Collection string
}

func (e *EmptyIndexError) Error() string {
	if e.Collection == "" {
		return "index is empty"
	}
	return "index is empty: collection " + e.Collection
}
