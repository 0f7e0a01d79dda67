package expr

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// ErrNotBool is returned when a CEL condition does not produce a boolean.
var ErrNotBool = errors.New("condition did not evaluate to a boolean")

// Evaluator compiles and evaluates conditions. Compiled CEL programs are
// memoized by source text. Safe for concurrent use.
type Evaluator struct {
	env *cel.Env

	mu       sync.Mutex
	programs map[string]cel.Program
}

// NewEvaluator creates an Evaluator with the `features` variable declared.
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("features", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &Evaluator{env: env, programs: make(map[string]cel.Program)}, nil
}

// MustNewEvaluator creates an Evaluator and panics on error.
func MustNewEvaluator() *Evaluator {
	e, err := NewEvaluator()
	if err != nil {
		panic(err)
	}

	return e
}

// Validate reports whether condition is well formed.
func (e *Evaluator) Validate(condition string) error {
	if _, _, ok := simple(condition); ok {
		return nil
	}

	_, err := e.program(condition)

	return err
}

// Eval evaluates condition against features.
func (e *Evaluator) Eval(condition string, features FeatureSet) (bool, error) {
	if name, negated, ok := simple(condition); ok {
		if name == "" {
			return true, nil
		}

		return features.Has(name) != negated, nil
	}

	prg, err := e.program(condition)
	if err != nil {
		return false, err
	}

	out, _, err := prg.Eval(map[string]any{
		"features": types.NewStringList(types.DefaultTypeAdapter, features.Names()),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate %q: %w", condition, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%q: %w", condition, ErrNotBool)
	}

	return b, nil
}

//nolint:ireturn // Following CEL's function signature.
func (e *Evaluator) program(condition string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.programs[condition]; ok {
		return prg, nil
	}

	ast, issues := e.env.Compile(condition)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compile condition %q: %w", condition, issues.Err())
	}

	if k := ast.OutputType().Kind(); k != types.BoolKind && k != types.DynKind {
		return nil, fmt.Errorf("%q: %w", condition, ErrNotBool)
	}

	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("create program: %w", err)
	}

	e.programs[condition] = prg

	return prg, nil
}

// simple parses the `name` / `!name` shorthand. The empty condition is
// reported as simple with an empty name.
func simple(condition string) (name string, negated, ok bool) {
	c := strings.TrimSpace(condition)
	if c == "" {
		return "", false, true
	}

	if rest, cut := strings.CutPrefix(c, "!"); cut {
		c, negated = strings.TrimSpace(rest), true
	}

	if c == "" || !isFeatureName(c) {
		return "", false, false
	}

	return c, negated, true
}

func isFeatureName(s string) bool {
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == '/':
		default:
			return false
		}
	}

	return true
}
