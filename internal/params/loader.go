package params

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Set is a fully populated, immutable parameter set for one variant.
type Set struct {
	variant Variant
	schema  Schema
	values  []float64
}

func (s *Set) Variant() Variant { return s.variant }

// Float returns a parameter by lookup name or file key.
func (s *Set) Float(name string) (float64, error) {
	i, ok := s.schema.index(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q for %s", ErrUnknownParameter, name, s.variant)
	}
	return s.values[i], nil
}

// Int returns an integer-valued parameter (N_h, N_max).
func (s *Set) Int(name string) (int, error) {
	i, ok := s.schema.index(name)
	if !ok {
		return 0, fmt.Errorf("%w: %q for %s", ErrUnknownParameter, name, s.variant)
	}
	if s.schema[i].Kind != Int {
		return 0, fmt.Errorf("params: %q is not integer-valued", name)
	}
	return int(s.values[i]), nil
}

// MustFloat is for callers that already validated the schema.
func (s *Set) MustFloat(name string) float64 {
	v, err := s.Float(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Values returns the parameters in schema order.
func (s *Set) Values() []float64 {
	out := make([]float64, len(s.values))
	copy(out, s.values)
	return out
}

func (s *Set) Schema() Schema {
	out := make(Schema, len(s.schema))
	copy(out, s.schema)
	return out
}

// Map returns lookup name -> value.
func (s *Set) Map() map[string]float64 {
	m := make(map[string]float64, len(s.values))
	for i, f := range s.schema {
		m[f.Name] = s.values[i]
	}
	return m
}

// FromMap builds a Set from lookup names or file keys. It applies the same
// completeness and integer checks as the file loader.
func FromMap(v Variant, values map[string]float64) (*Set, error) {
	schema, err := SchemaFor(v)
	if err != nil {
		return nil, err
	}
	b := newBuilder(v, schema)
	for name, val := range values {
		i, ok := schema.index(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q is not a %s parameter", ErrMalformed, name, v)
		}
		if schema[i].Kind == Int && val != float64(int(val)) {
			return nil, fmt.Errorf("%w: %s must be an integer, got %g", ErrMalformed, schema[i].Key, val)
		}
		if err := b.set(i, val); err != nil {
			return nil, err
		}
	}
	return b.finish()
}

// LoadFile reads a parameter file for the given variant.
func LoadFile(v Variant, path string, logger *slog.Logger) (*Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	defer f.Close()

	set, err := Load(v, f, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return set, nil
}

// Load parses "name = value" lines. Unknown names are logged and skipped.
func Load(v Variant, r io.Reader, logger *slog.Logger) (*Set, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := SchemaFor(v)
	if err != nil {
		return nil, err
	}
	b := newBuilder(v, schema)

	sc := bufio.NewScanner(r)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d: want 'name = value', got %q", ErrMalformed, lineNo, line)
		}

		i, ok := schema.index(fields[0])
		if !ok {
			logger.Warn("parameter cannot be interpreted for model type",
				"name", fields[0], "model", v.String(), "line", lineNo)
			continue
		}

		var val float64
		if schema[i].Kind == Int {
			n, err := strconv.Atoi(fields[2])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s must be an integer: %v", ErrMalformed, lineNo, fields[0], err)
			}
			val = float64(n)
		} else {
			val, err = strconv.ParseFloat(fields[2], 64)
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: %s: %v", ErrMalformed, lineNo, fields[0], err)
			}
		}
		if err := b.set(i, val); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfig, err)
	}
	return b.finish()
}

type builder struct {
	variant Variant
	schema  Schema
	values  []float64
	found   []bool
}

func newBuilder(v Variant, schema Schema) *builder {
	return &builder{
		variant: v,
		schema:  schema,
		values:  make([]float64, len(schema)),
		found:   make([]bool, len(schema)),
	}
}

func (b *builder) set(i int, val float64) error {
	if b.found[i] {
		return fmt.Errorf("%w: %s", ErrDuplicate, b.schema[i].Key)
	}
	b.values[i] = val
	b.found[i] = true
	return nil
}

func (b *builder) finish() (*Set, error) {
	var missing []string
	for i, ok := range b.found {
		if !ok {
			missing = append(missing, b.schema[i].Key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w for model type '%s': missing %s",
			ErrIncomplete, b.variant, strings.Join(missing, ", "))
	}
	return &Set{variant: b.variant, schema: b.schema, values: b.values}, nil
}
