// Package tovec flattens nested numeric values into vectors of float64 and rebuilds
// values of the original shape from such vectors.
//
// A value is described by a [Shape], which records its type and its layout in the flat
// vector. Supported values are:
//   - scalars: signed and unsigned integers, floats;
//   - complex numbers, flattened to their real and imaginary parts;
//   - slices and arrays of supported values, of any rank;
//   - tuples, as []any holding values of different types;
//   - structs whose fields are all exported and supported;
//   - maps with string keys, flattened in the order of the sorted keys;
//   - pointers to supported values;
//   - gonum *mat.Dense (row-major) and *mat.VecDense.
//
// Nil slices, maps and pointers are preserved and contribute no entries.
package tovec

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	"gonum.org/v1/gonum/mat"

	"github.com/tuneinsight/finitediff/utils"
)

var (
	// ErrUnsupported is returned when no flattening is defined for a type.
	ErrUnsupported = errors.New("no flattening defined")
	// ErrLength is returned when a vector does not match the length of a shape.
	ErrLength = errors.New("vector length does not match the shape")
)

// Kind is the flattening strategy of a [Shape].
type Kind int

// Invalid is the kind of the zero [Shape].
const (
	Invalid = Kind(iota)
	Scalar
	Complex
	Sequence
	Array
	Tuple
	Record
	Map
	Pointer
	Dense
	Vector
)

var kindNames = [...]string{"invalid", "scalar", "complex", "sequence", "array", "tuple", "record", "map", "pointer", "dense", "vector"}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}
	return kindNames[k]
}

var (
	denseType  = reflect.TypeOf((*mat.Dense)(nil))
	vectorType = reflect.TypeOf((*mat.VecDense)(nil))
	tupleType  = reflect.TypeOf([]any(nil))
)

// Shape describes how a value maps to a flat vector and back.
// The zero value is an invalid shape.
type Shape struct {
	kind   Kind
	typ    reflect.Type
	length int
	isNil  bool

	// elems are the shapes of the elements, fields, map values or pointee, in flattening order.
	elems []Shape
	// keys are the sorted keys of a map.
	keys []string
	// rows and cols are the dimensions of a matrix, rows is the length of a vector.
	rows, cols int
}

// ToVec flattens x into a new vector and returns the shape needed to rebuild it.
func ToVec(x any) (v []float64, s Shape, err error) {

	if x == nil {
		return nil, Shape{}, fmt.Errorf("cannot ToVec: <nil>: %w", ErrUnsupported)
	}

	if s, v, err = flatten(reflect.ValueOf(x), []float64{}, map[visit]struct{}{}); err != nil {
		return nil, Shape{}, fmt.Errorf("cannot ToVec: %w", err)
	}

	return
}

// Kind returns the flattening strategy of the shape.
func (s Shape) Kind() Kind {
	return s.kind
}

// Type returns the type of the values described by the shape.
func (s Shape) Type() reflect.Type {
	return s.typ
}

// Len returns the length of the flat vector.
func (s Shape) Len() int {
	return s.length
}

// IsNil returns true if the shape describes a nil slice, map or pointer.
func (s Shape) IsNil() bool {
	return s.isNil
}

func (s Shape) String() string {
	return fmt.Sprintf("%s(%v, len=%d)", s.kind, s.typ, s.length)
}

// Reconstruct returns a new value of the shape holding the entries of v.
// Integers are rounded to the nearest value. v is not retained.
func (s Shape) Reconstruct(v []float64) (any, error) {

	if s.kind == Invalid {
		return nil, fmt.Errorf("cannot Reconstruct: invalid shape: %w", ErrUnsupported)
	}

	if len(v) != s.length {
		return nil, fmt.Errorf("cannot Reconstruct: %v: got %d entries: %w", s, len(v), ErrLength)
	}

	rv, _ := s.build(v)

	return rv.Interface(), nil
}

// Reconstruct is [Shape.Reconstruct] returning a T.
func Reconstruct[T any](s Shape, v []float64) (t T, err error) {

	var x any
	if x, err = s.Reconstruct(v); err != nil {
		return
	}

	var ok bool
	if t, ok = x.(T); !ok {
		return t, fmt.Errorf("cannot Reconstruct: %v into %T: %w", s, t, ErrUnsupported)
	}

	return
}

// visit is a reference on the path from the root value to the value being flattened.
type visit struct {
	ptr uintptr
	typ reflect.Type
}

// enter records the reference rv on the current path and returns the function removing
// it. A reference already on the path is a cycle, which has no finite flattening.
func enter(seen map[visit]struct{}, rv reflect.Value) (leave func(), err error) {
	key := visit{ptr: rv.Pointer(), typ: rv.Type()}
	if _, ok := seen[key]; ok {
		return nil, fmt.Errorf("%v: cyclic value: %w", rv.Type(), ErrUnsupported)
	}
	seen[key] = struct{}{}
	return func() { delete(seen, key) }, nil
}

// flatten appends the entries of rv to v. seen holds the references on the path to rv.
func flatten(rv reflect.Value, v []float64, seen map[visit]struct{}) (Shape, []float64, error) {

	var err error

	t := rv.Type()
	start := len(v)

	s := Shape{typ: t}

	switch t {
	case denseType:
		s.kind = Dense
		d := rv.Interface().(*mat.Dense)
		if d == nil {
			s.isNil = true
			return s, v, nil
		}
		if !d.IsEmpty() {
			s.rows, s.cols = d.Dims()
			for i := 0; i < s.rows; i++ {
				v = append(v, d.RawRowView(i)...)
			}
		}
		s.length = len(v) - start
		return s, v, nil

	case vectorType:
		s.kind = Vector
		d := rv.Interface().(*mat.VecDense)
		if d == nil {
			s.isNil = true
			return s, v, nil
		}
		if !d.IsEmpty() {
			s.rows = d.Len()
			for i := 0; i < s.rows; i++ {
				v = append(v, d.AtVec(i))
			}
		}
		s.length = len(v) - start
		return s, v, nil
	}

	switch t.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		s.kind = Scalar
		v = append(v, float64(rv.Int()))

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		s.kind = Scalar
		v = append(v, float64(rv.Uint()))

	case reflect.Float32, reflect.Float64:
		s.kind = Scalar
		v = append(v, rv.Float())

	case reflect.Complex64, reflect.Complex128:
		s.kind = Complex
		c := rv.Complex()
		v = append(v, real(c), imag(c))

	case reflect.Slice:
		s.kind = Sequence
		if t == tupleType {
			s.kind = Tuple
		}
		if rv.IsNil() {
			s.isNil = true
			break
		}
		if rv.Len() > 0 {
			leave, err := enter(seen, rv)
			if err != nil {
				return s, v, err
			}
			defer leave()
		}
		if s.elems, v, err = flattenElements(rv, v, seen); err != nil {
			return s, v, err
		}

	case reflect.Array:
		s.kind = Array
		if s.elems, v, err = flattenElements(rv, v, seen); err != nil {
			return s, v, err
		}

	case reflect.Struct:
		s.kind = Record
		s.elems = make([]Shape, t.NumField())
		for i := range s.elems {
			if f := t.Field(i); !f.IsExported() {
				return s, v, fmt.Errorf("%v: unexported field %s: %w", t, f.Name, ErrUnsupported)
			}
			if s.elems[i], v, err = flatten(rv.Field(i), v, seen); err != nil {
				return s, v, fmt.Errorf("%v.%s: %w", t, t.Field(i).Name, err)
			}
		}

	case reflect.Map:
		s.kind = Map
		if t.Key().Kind() != reflect.String {
			return s, v, fmt.Errorf("%v: map keys must be strings: %w", t, ErrUnsupported)
		}
		if rv.IsNil() {
			s.isNil = true
			break
		}
		leave, err := enter(seen, rv)
		if err != nil {
			return s, v, err
		}
		defer leave()
		values := make(map[string]reflect.Value, rv.Len())
		for it := rv.MapRange(); it.Next(); {
			values[it.Key().String()] = it.Value()
		}
		s.keys = utils.GetSortedKeys(values)
		s.elems = make([]Shape, len(s.keys))
		for i, k := range s.keys {
			if s.elems[i], v, err = flatten(values[k], v, seen); err != nil {
				return s, v, fmt.Errorf("%v[%q]: %w", t, k, err)
			}
		}

	case reflect.Pointer:
		s.kind = Pointer
		if rv.IsNil() {
			s.isNil = true
			break
		}
		leave, err := enter(seen, rv)
		if err != nil {
			return s, v, err
		}
		defer leave()
		s.elems = make([]Shape, 1)
		if s.elems[0], v, err = flatten(rv.Elem(), v, seen); err != nil {
			return s, v, err
		}

	case reflect.Interface:
		if rv.IsNil() {
			return s, v, fmt.Errorf("nil %v: %w", t, ErrUnsupported)
		}
		// the shape is the one of the dynamic value, which is assignable to the interface
		return flatten(rv.Elem(), v, seen)

	default:
		return s, v, fmt.Errorf("%v: %w", t, ErrUnsupported)
	}

	s.length = len(v) - start

	return s, v, nil
}

func flattenElements(rv reflect.Value, v []float64, seen map[visit]struct{}) (elems []Shape, out []float64, err error) {
	elems = make([]Shape, rv.Len())
	for i := range elems {
		if elems[i], v, err = flatten(rv.Index(i), v, seen); err != nil {
			return nil, v, fmt.Errorf("%v[%d]: %w", rv.Type(), i, err)
		}
	}
	return elems, v, nil
}

// build returns the value of the shape holding the first s.length entries of v and the
// remaining entries.
func (s Shape) build(v []float64) (rv reflect.Value, rest []float64) {

	if s.isNil {
		return reflect.Zero(s.typ), v
	}

	switch s.kind {
	case Scalar:
		rv = reflect.New(s.typ).Elem()
		switch s.typ.Kind() {
		case reflect.Float32, reflect.Float64:
			rv.SetFloat(v[0])
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			rv.SetInt(roundInt(v[0], s.typ.Bits()))
		default:
			rv.SetUint(roundUint(v[0], s.typ.Bits()))
		}
		return rv, v[1:]

	case Complex:
		rv = reflect.New(s.typ).Elem()
		rv.SetComplex(complex(v[0], v[1]))
		return rv, v[2:]

	case Sequence, Tuple:
		rv = reflect.MakeSlice(s.typ, len(s.elems), len(s.elems))
		v = s.buildElements(rv, v)
		return rv, v

	case Array:
		rv = reflect.New(s.typ).Elem()
		v = s.buildElements(rv, v)
		return rv, v

	case Record:
		rv = reflect.New(s.typ).Elem()
		for i, e := range s.elems {
			var ev reflect.Value
			ev, v = e.build(v)
			rv.Field(i).Set(ev)
		}
		return rv, v

	case Map:
		rv = reflect.MakeMapWithSize(s.typ, len(s.keys))
		for i, e := range s.elems {
			var ev reflect.Value
			ev, v = e.build(v)
			rv.SetMapIndex(reflect.ValueOf(s.keys[i]).Convert(s.typ.Key()), ev)
		}
		return rv, v

	case Pointer:
		rv = reflect.New(s.typ.Elem())
		var ev reflect.Value
		ev, v = s.elems[0].build(v)
		rv.Elem().Set(ev)
		return rv, v

	case Dense:
		if s.length == 0 {
			return reflect.ValueOf(new(mat.Dense)), v
		}
		data := make([]float64, s.length)
		copy(data, v)
		return reflect.ValueOf(mat.NewDense(s.rows, s.cols, data)), v[s.length:]

	case Vector:
		if s.length == 0 {
			return reflect.ValueOf(new(mat.VecDense)), v
		}
		data := make([]float64, s.length)
		copy(data, v)
		return reflect.ValueOf(mat.NewVecDense(s.rows, data)), v[s.length:]
	}

	panic(fmt.Errorf("cannot build: invalid kind %s", s.kind))
}

// roundInt rounds x to the nearest integer representable on bits bits, saturating at the
// bounds. NaN rounds to 0.
func roundInt(x float64, bits int) int64 {
	r := math.Round(x)
	switch lim := math.Ldexp(1, bits-1); {
	case math.IsNaN(r):
		return 0
	case r >= lim:
		return int64(1)<<(bits-1) - 1
	case r < -lim:
		return -int64(1) << (bits - 1)
	}
	return int64(r)
}

// roundUint is [roundInt] for unsigned integers, negative values saturate at 0.
func roundUint(x float64, bits int) uint64 {
	r := math.Round(x)
	switch {
	case !(r > 0):
		return 0
	case r >= math.Ldexp(1, bits):
		return uint64(1)<<bits - 1
	}
	return uint64(r)
}

func (s Shape) buildElements(rv reflect.Value, v []float64) []float64 {
	for i, e := range s.elems {
		var ev reflect.Value
		ev, v = e.build(v)
		rv.Index(i).Set(ev)
	}
	return v
}
