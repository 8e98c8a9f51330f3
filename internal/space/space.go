// Package space compiles a Study Definition into a Search Space: an
// ordered, acyclic set of Decision Variables with legality guards, as
// described by spec.md §3 and §4.1. Cycle detection follows the same
// Kahn's-algorithm shape as
// Atul-Ranjan12-google-dag-optimization/src/solver.go's TopologicalSort —
// variables are nodes, a guard referencing variable V is an edge V→guarded.
package space

import (
	"fmt"
	"strings"

	"github.com/HariAbram/scout/internal/config"
)

// Kind classifies how a Decision Variable's chosen value feeds the
// Candidate Materializer.
type Kind int

const (
	KindChoice Kind = iota // mutually exclusive compiler_flags slot
	KindToggle             // compiler_flag_pool on/off switch
	KindParam              // compiler_params categorical (incl. boolean flags)
	KindEnv                // env categorical
)

func (k Kind) String() string {
	switch k {
	case KindChoice:
		return "choice"
	case KindToggle:
		return "toggle"
	case KindParam:
		return "param"
	case KindEnv:
		return "env"
	default:
		return "unknown"
	}
}

// Guard is a predicate over a previously-assigned variable's value.
type Guard struct {
	Var   string
	Value string // literal value, or an "N+" numeric-suffix pattern
}

// Variable is one dimension of the Search Space.
type Variable struct {
	Name   string
	Kind   Kind
	Domain []string // stringified candidate values, declaration order
	Guard  *Guard    // nil when unconditional

	// ParamKey distinguishes the underlying config key from Name for
	// variables whose domain values are rendered differently than their
	// variable name (e.g. pool toggles, where Name is already the flag).
	ParamKey string
}

// Space is the compiled, read-only Search Space: Decision Variables in a
// valid topological order (every Guard.Var precedes its guarded variable).
type Space struct {
	Variables []Variable
}

// ByName returns the compiled variable with the given name, if any.
func (s *Space) ByName(name string) (*Variable, bool) {
	for i := range s.Variables {
		if s.Variables[i].Name == name {
			return &s.Variables[i], true
		}
	}
	return nil, false
}

// Compile turns a loaded Study Definition into a Search Space, or returns a
// fatal config_error for malformed guards, cycles, duplicate names, or
// empty domains.
func Compile(cfg *config.Config) (*Space, error) {
	var vars []Variable
	seen := map[string]bool{}

	add := func(v Variable) error {
		if seen[v.Name] {
			return fmt.Errorf("duplicate decision variable %q", v.Name)
		}
		if len(v.Domain) == 0 {
			return fmt.Errorf("decision variable %q has an empty domain", v.Name)
		}
		seen[v.Name] = true
		vars = append(vars, v)
		return nil
	}

	if len(cfg.CompilerFlags) > 0 {
		if err := add(Variable{Name: "opt_level", Kind: KindChoice, Domain: cfg.CompilerFlags}); err != nil {
			return nil, err
		}
	}

	for _, flag := range cfg.CompilerFlagPool {
		if err := add(Variable{Name: flag, Kind: KindToggle, Domain: []string{"off", "on"}, ParamKey: flag}); err != nil {
			return nil, err
		}
	}

	for _, entry := range cfg.CompilerParams {
		v, err := compileEntry(entry.Key, entry.Spec, KindParam)
		if err != nil {
			return nil, err
		}
		if err := add(v); err != nil {
			return nil, err
		}
	}

	for _, entry := range cfg.Env {
		v, err := compileEntry(entry.Key, entry.Spec, KindEnv)
		if err != nil {
			return nil, err
		}
		if err := add(v); err != nil {
			return nil, err
		}
	}

	if err := checkAcyclicAndOrdered(vars); err != nil {
		return nil, err
	}

	return &Space{Variables: vars}, nil
}

func compileEntry(key string, spec config.ValueSpec, kind Kind) (Variable, error) {
	domain := make([]string, 0, len(spec.Values))
	for _, raw := range spec.Values {
		domain = append(domain, stringifyValue(raw))
	}
	v := Variable{Name: key, Kind: kind, Domain: domain, ParamKey: key}
	if spec.Guarded() {
		if len(spec.When) != 1 {
			return Variable{}, fmt.Errorf("guard on %q must name exactly one variable, got %d", key, len(spec.When))
		}
		for gv, gval := range spec.When {
			v.Guard = &Guard{Var: gv, Value: fmt.Sprint(gval)}
		}
	}
	return v, nil
}

func stringifyValue(raw any) string {
	switch t := raw.(type) {
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}

// checkAcyclicAndOrdered rejects guards that reference a variable declared
// later, and guards that reference an unknown variable, and verifies the
// guard DAG has no cycles via Kahn's algorithm.
func checkAcyclicAndOrdered(vars []Variable) error {
	position := make(map[string]int, len(vars))
	for i, v := range vars {
		position[v.Name] = i
	}

	inDegree := make([]int, len(vars))
	dependents := make([][]int, len(vars))

	for i, v := range vars {
		if v.Guard == nil {
			continue
		}
		srcPos, ok := position[v.Guard.Var]
		if !ok {
			return fmt.Errorf("variable %q guards on unknown variable %q", v.Name, v.Guard.Var)
		}
		if srcPos >= i {
			return fmt.Errorf("variable %q guards on %q, which is not declared earlier", v.Name, v.Guard.Var)
		}
		dependents[srcPos] = append(dependents[srcPos], i)
		inDegree[i]++
	}

	queue := make([]int, 0, len(vars))
	for i := range vars {
		if inDegree[i] == 0 {
			queue = append(queue, i)
		}
	}
	visited := 0
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		visited++
		for _, dep := range dependents[node] {
			inDegree[dep]--
			if inDegree[dep] == 0 {
				queue = append(queue, dep)
			}
		}
	}
	if visited != len(vars) {
		return fmt.Errorf("guard dependency cycle detected among decision variables")
	}
	return nil
}

// olevelOrder assigns a numeric rank to the non-numeric optimization-level
// suffixes GCC/Clang use, resolving spec.md §9's open question on how
// "-Ofast" compares to "-O3" under an "N+" guard: SCOuT ranks it one above
// -O3 since it is the more aggressive flag in that family, and ranks -Og
// and -O0 both at 0.
var olevelOrder = map[string]int{
	"fast": 4,
	"g":    0,
}

// numericSuffix extracts the trailing numeric rank of a flag-like value
// (e.g. "-O3" -> 3, "-Ofast" -> 4), used to evaluate "N+" guards.
func numericSuffix(value string) (int, bool) {
	trimmed := strings.TrimLeft(value, "-")
	for i := len(trimmed) - 1; i >= 0; i-- {
		if trimmed[i] < '0' || trimmed[i] > '9' {
			tail := trimmed[i+1:]
			if tail != "" {
				n := 0
				for _, c := range tail {
					n = n*10 + int(c-'0')
				}
				return n, true
			}
			if rank, ok := olevelOrder[trimmed[i+1:]]; ok {
				return rank, true
			}
			// fall through: no numeric tail at all; check known suffix map
			for suffix, rank := range olevelOrder {
				if strings.HasSuffix(trimmed, suffix) {
					return rank, true
				}
			}
			return 0, false
		}
	}
	// entirely numeric
	n := 0
	for _, c := range trimmed {
		n = n*10 + int(c-'0')
	}
	return n, true
}

// MatchGuard evaluates a Guard against the currently-chosen value of its
// referenced variable. It implements both the literal-equality form and
// the "N+" numeric-suffix form of spec.md §4.1.
func MatchGuard(g *Guard, currentValue string) bool {
	if g == nil {
		return true
	}
	if strings.HasSuffix(g.Value, "+") {
		thresholdStr := strings.TrimSuffix(g.Value, "+")
		threshold := 0
		for _, c := range thresholdStr {
			if c < '0' || c > '9' {
				return g.Value == currentValue
			}
			threshold = threshold*10 + int(c-'0')
		}
		n, ok := numericSuffix(currentValue)
		if !ok {
			return false
		}
		return n >= threshold
	}
	return g.Value == currentValue
}
