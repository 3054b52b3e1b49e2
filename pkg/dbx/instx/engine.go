// Package instx implements the row-instantiation engine: given a target type and
// one result row, it produces a value of that type.
//
// Scalar-like targets bind the row's sole column through the conversion registry.
// Struct targets resolve a binding plan matching columns to exported fields by
// name, case-insensitively and underscore-insensitively, honoring `db` tags. The
// resolved plan is cached per target type, so repeated instantiation for the same
// type amortizes the reflection scan to a map lookup per row.
package instx

import (
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/globalbus/dalesbred/pkg/dbx/convx"
	"github.com/globalbus/dalesbred/pkg/dbx/types"
	"github.com/globalbus/dalesbred/pkg/errorx"
)

// RowInstantiable is the capability interface a type may implement to take over
// its own instantiation and bypass the reflection-based binding entirely.
// FromRow must be implemented on a pointer receiver.
type RowInstantiable interface {
	FromRow(row types.RowShape) error
}

// Engine resolves and caches per-type binding plans and instantiates row values.
//
// The engine is safe for concurrent use: plan lookups are lock-free after a
// type's first resolution. Concurrent first resolutions of the same type may
// race; plan resolution is deterministic, so whichever result lands in the
// cache is the same plan.
type Engine struct {
	registry *convx.Registry
	plans    sync.Map // reflect.Type -> *plan
}

// NewEngine creates an engine backed by the given conversion registry.
func NewEngine(registry *convx.Registry) *Engine {
	return &Engine{registry: registry}
}

// Registry returns the conversion registry the engine converts values through.
func (e *Engine) Registry() *convx.Registry {
	return e.registry
}

// InstantiateAs - type-safe instantiation helper.
func InstantiateAs[T any](e *Engine, row types.RowShape) (T, error) {
	var zero T

	target := reflect.TypeOf((*T)(nil)).Elem()

	value, err := e.Instantiate(target, row)
	if err != nil {
		return zero, err
	}

	if value == nil {
		return zero, nil
	}

	return value.(T), nil
}

// Instantiate produces a value of the target type from one result row.
func (e *Engine) Instantiate(target reflect.Type, row types.RowShape) (any, error) {
	pl, err := e.planFor(target)
	if err != nil {
		return nil, err
	}

	switch pl.kind {
	case planCapability:
		return e.instantiateCapability(target, row)
	case planScalar:
		return e.instantiateScalar(target, row)
	default:
		return e.instantiateStruct(target, pl, row)
	}
}

type planKind int

const (
	planScalar planKind = iota
	planStruct
	planCapability
)

type fieldBinding struct {
	name  string
	index []int
	typ   reflect.Type
}

type plan struct {
	kind planKind

	// bindings maps normalized column keys to struct fields. ambiguous records
	// keys claimed by more than one field; binding a column to such a key fails.
	bindings  map[string]fieldBinding
	ambiguous map[string][]string
}

// planFor returns the cached plan for the target type, resolving it on first use.
func (e *Engine) planFor(target reflect.Type) (*plan, error) {
	if pl, ok := e.plans.Load(target); ok {
		return pl.(*plan), nil
	}

	pl, err := e.resolvePlan(target)
	if err != nil {
		return nil, err
	}

	cached, _ := e.plans.LoadOrStore(target, pl)

	return cached.(*plan), nil
}

func (e *Engine) resolvePlan(target reflect.Type) (*plan, error) {
	if reflect.PointerTo(derefType(target)).Implements(rowInstantiableType) {
		return &plan{kind: planCapability}, nil
	}

	if e.isScalarLike(target) {
		return &plan{kind: planScalar}, nil
	}

	structType := derefType(target)
	if structType.Kind() != reflect.Struct {
		return nil, errorx.NewInstantiationError("cannot instantiate values of type %s", target)
	}

	pl := &plan{
		kind:      planStruct,
		bindings:  make(map[string]fieldBinding),
		ambiguous: make(map[string][]string),
	}

	collectFields(structType, nil, pl)

	return pl, nil
}

// collectFields walks the exported fields of a struct type, recursing into
// anonymous embedded structs, and records one binding per normalized name.
func collectFields(structType reflect.Type, base []int, pl *plan) {
	for i := 0; i < structType.NumField(); i++ {
		field := structType.Field(i)
		if field.PkgPath != "" && !field.Anonymous {
			continue
		}

		index := append(append([]int(nil), base...), i)

		// Only value-embedded structs inline; pointer embeds would need nil
		// allocation on every bind.
		if field.Anonymous && field.Type.Kind() == reflect.Struct && field.Type != timeType {
			collectFields(field.Type, index, pl)
			continue
		}

		name := field.Tag.Get("db")
		if name == "-" {
			continue
		}
		if name == "" {
			name = field.Name
		}

		key := normalizeName(name)
		if existing, ok := pl.bindings[key]; ok {
			pl.ambiguous[key] = append(pl.ambiguous[key], existing.name, field.Name)
			continue
		}
		if _, ok := pl.ambiguous[key]; ok {
			pl.ambiguous[key] = append(pl.ambiguous[key], field.Name)
			continue
		}

		pl.bindings[key] = fieldBinding{name: field.Name, index: index, typ: field.Type}
	}
}

// isScalarLike reports whether the target binds a single column directly:
// primitives, temporal and well-known value types, byte slices, and any type a
// registered conversion can produce. Pointers to scalar-like types qualify too.
func (e *Engine) isScalarLike(target reflect.Type) bool {
	t := derefType(target)

	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	case reflect.Slice:
		return t.Elem().Kind() == reflect.Uint8
	}

	if t == timeType || t == uuidType || t == decimalType {
		return true
	}

	return e.registry.HasConversion(t)
}

func (e *Engine) instantiateScalar(target reflect.Type, row types.RowShape) (any, error) {
	if row.Len() != 1 {
		return nil, errorx.NewInstantiationError(
			"expected a single column for scalar type %s, got %d", target, row.Len())
	}

	column := row.Columns[0]
	if column.Value == nil {
		if isNilable(target) {
			return reflect.Zero(target).Interface(), nil
		}

		return nil, errorx.NewInstantiationError(
			"null value in column %q cannot be bound to non-nullable type %s", column.Name, target)
	}

	return e.registry.Convert(column.Value, target)
}

func (e *Engine) instantiateStruct(target reflect.Type, pl *plan, row types.RowShape) (any, error) {
	structType := derefType(target)
	out := reflect.New(structType).Elem()

	matched := 0

	for _, column := range row.Columns {
		key := normalizeName(column.Name)

		if fields, ok := pl.ambiguous[key]; ok {
			return nil, errorx.NewAmbiguousBindingError(
				"column %q matches multiple fields of %s: %s",
				column.Name, structType, strings.Join(fields, ", "))
		}

		binding, ok := pl.bindings[key]
		if !ok {
			continue
		}

		matched++

		fieldValue := out.FieldByIndex(binding.index)

		if column.Value == nil {
			if !isNilable(binding.typ) {
				return nil, errorx.NewInstantiationError(
					"null value in column %q cannot be bound to non-nullable field %s.%s",
					column.Name, structType, binding.name)
			}

			fieldValue.Set(reflect.Zero(binding.typ))

			continue
		}

		converted, err := e.registry.Convert(column.Value, binding.typ)
		if err != nil {
			return nil, err
		}

		fieldValue.Set(reflect.ValueOf(converted))
	}

	if matched == 0 && row.Len() > 0 {
		return nil, errorx.NewInstantiationError(
			"no columns of row %v could be bound to type %s", row.Names(), structType)
	}

	if target.Kind() == reflect.Pointer {
		ptr := reflect.New(structType)
		ptr.Elem().Set(out)

		return ptr.Interface(), nil
	}

	return out.Interface(), nil
}

func (e *Engine) instantiateCapability(target reflect.Type, row types.RowShape) (any, error) {
	structType := derefType(target)
	ptr := reflect.New(structType)

	if err := ptr.Interface().(RowInstantiable).FromRow(row); err != nil {
		return nil, errorx.NewInstantiationErrorWrapper(err, "FromRow failed for type %s", structType)
	}

	if target.Kind() == reflect.Pointer {
		return ptr.Interface(), nil
	}

	return ptr.Elem().Interface(), nil
}

// normalizeName lowercases a column or field name and strips underscores, so
// "employee_id", "EmployeeID" and "employeeid" all collide on the same key.
func normalizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))

	for i := 0; i < len(name); i++ {
		c := name[i]
		if c == '_' {
			continue
		}
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		b.WriteByte(c)
	}

	return b.String()
}

func derefType(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	return t
}

func isNilable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	default:
		return false
	}
}

var (
	rowInstantiableType = reflect.TypeOf((*RowInstantiable)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	uuidType            = reflect.TypeOf(uuid.UUID{})
	decimalType         = reflect.TypeOf(decimal.Decimal{})
)
