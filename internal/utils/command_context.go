package utils

import "context"

const loadedConfigurationContextNameConstant = "loaded_configuration"

type contextKey struct {
	name string
}

// ContextValue stores one typed value in a command execution context. Each
// ContextValue owns a distinct key, so values never collide.
type ContextValue[T any] struct {
	key *contextKey
}

// NewContextValue creates a ContextValue. The name is only used for debugging.
func NewContextValue[T any](name string) ContextValue[T] {
	return ContextValue[T]{key: &contextKey{name: name}}
}

// With returns a child of parentContext carrying item.
func (value ContextValue[T]) With(parentContext context.Context, item T) context.Context {
	if parentContext == nil {
		parentContext = context.Background()
	}
	return context.WithValue(parentContext, value.key, item)
}

// From extracts the stored item.
func (value ContextValue[T]) From(executionContext context.Context) (T, bool) {
	var zero T
	if executionContext == nil || value.key == nil {
		return zero, false
	}
	item, found := executionContext.Value(value.key).(T)
	if !found {
		return zero, false
	}
	return item, true
}

// LoadedConfigurationContext carries metadata about the configuration the
// running command was initialized from.
var LoadedConfigurationContext = NewContextValue[LoadedConfiguration](loadedConfigurationContextNameConstant)
