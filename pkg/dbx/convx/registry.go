// Package convx implements the type-conversion registry that translates between
// database representations and application types.
//
// The registry is keyed by (source type, target type) pairs. Later registrations
// for an identical key shadow earlier ones. Lookup performs an exact match first,
// then an assignability-based fallback over the registered entries, then falls
// back to the built-in coercion rules.
package convx

import (
	"reflect"
	"sync"

	"github.com/globalbus/dalesbred/pkg/errorx"
)

// Direction declares which way a registered converter applies.
type Direction int

const (
	// FromDatabase converters turn database values into application values.
	FromDatabase Direction = iota
	// ToDatabase converters turn application values into database values.
	ToDatabase
	// Both registers the converter for the from-database direction and marks the
	// source type as bindable via the same function in reverse lookups.
	Both
)

// ConverterFunc converts a single value. It must not mutate its input.
type ConverterFunc func(value any) (any, error)

type conversionKey struct {
	source reflect.Type
	target reflect.Type
}

// Registry is a process-wide mapping from (source, target) type pairs to
// converter functions.
//
// Registration is expected to happen during application setup, before concurrent
// use. Concurrent reads are always safe.
type Registry struct {
	mu     sync.RWMutex
	fromDB map[conversionKey]ConverterFunc
	toDB   map[reflect.Type]ConverterFunc
}

// NewRegistry creates a registry pre-populated with the built-in conversions
// for uuid, decimal, temporal and JSON column values.
func NewRegistry() *Registry {
	r := &Registry{
		fromDB: make(map[conversionKey]ConverterFunc),
		toDB:   make(map[reflect.Type]ConverterFunc),
	}

	registerBuiltins(r)

	return r
}

// Register adds a converter for the given source and target types. Registering
// the same (source, target, direction) again replaces the earlier converter.
func (r *Registry) Register(source, target reflect.Type, direction Direction, fn ConverterFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch direction {
	case FromDatabase:
		r.fromDB[conversionKey{source: source, target: target}] = fn
	case ToDatabase:
		r.toDB[source] = fn
	case Both:
		r.fromDB[conversionKey{source: source, target: target}] = fn
		r.toDB[source] = fn
	}
}

// RegisterConversion - type-safe registration helper.
//
// Example:
//
//	convx.RegisterConversion(registry, convx.FromDatabase, func(s string) (EmailAddress, error) {
//	    return ParseEmailAddress(s)
//	})
func RegisterConversion[S, T any](r *Registry, direction Direction, fn func(S) (T, error)) {
	source := reflect.TypeOf((*S)(nil)).Elem()
	target := reflect.TypeOf((*T)(nil)).Elem()

	r.Register(source, target, direction, func(value any) (any, error) {
		typed, ok := value.(S)
		if !ok {
			return nil, errorx.NewConversionError("converter for %s expects %s, got %T", target, source, value)
		}

		return fn(typed)
	})
}

// Convert converts a database value to the given target type.
//
// A nil value converts to the zero value of nilable targets and fails for
// anything else; the instantiation engine performs its own null handling before
// calling Convert, so a nil here normally indicates a direct registry use.
func (r *Registry) Convert(value any, target reflect.Type) (any, error) {
	if value == nil {
		return nilValueFor(target)
	}

	sourceType := reflect.TypeOf(value)

	if fn := r.lookup(sourceType, target); fn != nil {
		return fn(value)
	}

	if sourceType.AssignableTo(target) {
		return value, nil
	}

	// Pointer targets convert the element and take its address.
	if target.Kind() == reflect.Pointer {
		elem, err := r.Convert(value, target.Elem())
		if err != nil {
			return nil, err
		}

		ptr := reflect.New(target.Elem())
		ptr.Elem().Set(reflect.ValueOf(elem))

		return ptr.Interface(), nil
	}

	return coerce(value, target)
}

// lookup finds a registered from-database converter: exact key first, then the
// assignability fallback over all registered entries.
func (r *Registry) lookup(source, target reflect.Type) ConverterFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if fn, ok := r.fromDB[conversionKey{source: source, target: target}]; ok {
		return fn
	}

	for key, fn := range r.fromDB {
		if source.AssignableTo(key.source) && key.target.AssignableTo(target) {
			return fn
		}
	}

	return nil
}

// ToDatabase converts a statement argument to its database representation. Values
// with no registered to-database converter pass through unchanged.
func (r *Registry) ToDatabase(value any) (any, error) {
	if value == nil {
		return nil, nil
	}

	r.mu.RLock()
	fn, ok := r.toDB[reflect.TypeOf(value)]
	r.mu.RUnlock()

	if !ok {
		return value, nil
	}

	return fn(value)
}

// HasConversion reports whether a from-database converter is registered that can
// produce the given target type. The instantiation engine uses this to decide
// whether a type counts as scalar-like.
func (r *Registry) HasConversion(target reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for key := range r.fromDB {
		if key.target.AssignableTo(target) {
			return true
		}
	}

	return false
}

func nilValueFor(target reflect.Type) (any, error) {
	switch target.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return reflect.Zero(target).Interface(), nil
	default:
		return nil, errorx.NewConversionError("cannot convert database null to non-nullable type %s", target)
	}
}
