package filter

import (
	"strings"
)

// Predicate defines a function that returns true if the given item matches a condition.
type Predicate[T any] func(item T, filterValue string) bool

// Options holds configuration for filtering behavior.
type Options[T any] struct {
	matchers    map[string]Predicate[T]
	unsupported map[string]struct{}
	logFunc     func(key string, val string)
}

// Option configures filter Options.
type Option[T any] func(*Options[T]) error

// StringValueProvider extracts a single string value from an item of type T.
type StringValueProvider[T any] func(T) string

// defaultOptions returns the default filter Options.
func defaultOptions[T any]() Options[T] {
	return Options[T]{
		matchers:    make(map[string]Predicate[T]),
		unsupported: make(map[string]struct{}),
		logFunc:     func(key, val string) {}, // no-op
	}
}

// NormalizeString can be used to normalize a string value for filtering/comparison.
// The value is made lowercase and has any leading and/or trailing whitespace removed.
func NormalizeString(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NewOptions creates Options with defaults and applies given options.
func NewOptions[T any](opt ...Option[T]) (Options[T], error) {
	opts := defaultOptions[T]()

	for _, o := range opt {
		if o == nil {
			continue
		}
		if err := o(&opts); err != nil {
			return Options[T]{}, err
		}
	}
	return opts, nil
}

// Equals returns a Predicate that checks if the value extracted by the provider
// exactly matches the filter value (case-insensitive, normalized).
func Equals[T any](provider StringValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		return NormalizeString(provider(item)) == NormalizeString(val)
	}
}

// Partial returns a Predicate that checks if the value extracted by the provider
// contains the filter value as a substring (case-insensitive, normalized).
func Partial[T any](provider StringValueProvider[T]) Predicate[T] {
	return func(item T, val string) bool {
		return strings.Contains(NormalizeString(provider(item)), NormalizeString(val))
	}
}

// WithMatcher adds or overrides a matcher.
func WithMatcher[T any](key string, value Predicate[T]) Option[T] {
	return func(o *Options[T]) error {
		o.matchers[NormalizeString(key)] = value
		return nil
	}
}

// WithUnsupportedKeys marks specific keys as unsupported when used for filtering.
func WithUnsupportedKeys[T any](keys ...string) Option[T] {
	return func(o *Options[T]) error {
		for _, key := range keys {
			o.unsupported[NormalizeString(key)] = struct{}{}
		}
		return nil
	}
}

// WithLogFunc sets a log function which will be used to log info if unsupported keys are encountered.
func WithLogFunc[T any](logFunc func(key string, val string)) Option[T] {
	return func(o *Options[T]) error {
		if logFunc != nil {
			o.logFunc = logFunc
		}
		return nil
	}
}

// Match applies the provided filters to an item of type T using any configured Option matchers.
// Empty filter values are ignored. It returns false if any unsupported filter key is encountered
// or if any matcher rejects the item.
func Match[T any](item T, filters map[string]string, opts ...Option[T]) (bool, error) {
	if filters == nil {
		return true, nil
	}

	filterOpts, err := NewOptions(opts...)
	if err != nil {
		return false, err
	}

	for key, val := range filters {
		k := NormalizeString(key)
		if k == "" || strings.TrimSpace(val) == "" {
			continue
		}

		if _, unsupported := filterOpts.unsupported[k]; unsupported {
			filterOpts.logFunc(k, val)
			return false, nil
		}

		matcher, ok := filterOpts.matchers[k]
		if !ok {
			continue
		}
		if !matcher(item, val) {
			return false, nil
		}
	}
	return true, nil
}
