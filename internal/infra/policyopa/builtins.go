package policyopa

import "github.com/open-policy-agent/opa/ast"

// deterministic holds the builtins a bundle may call. Nothing here reads the
// clock, the network or a random source.
var deterministic = []string{
	"abs", "assign", "ceil", "concat", "contains", "count",
	"endswith", "eq", "equal", "floor", "format_int", "gt", "gte",
	"indexof", "is_number", "is_string", "lower", "lt", "lte",
	"max", "min", "neq", "object.get", "regex.match", "round",
	"sort", "split", "sprintf", "startswith", "substring", "sum",
	"trim", "trim_space", "upper",
}

var deterministicSet = func() map[string]bool {
	m := make(map[string]bool, len(deterministic))
	for _, name := range deterministic {
		m[name] = true
	}
	return m
}()

func isDeterministic(name string) bool {
	return deterministicSet[name]
}

// deterministicCapabilities strips every other builtin from the compiler's
// capability set so forbidden calls fail at compile time.
func deterministicCapabilities() *ast.Capabilities {
	caps := ast.CapabilitiesForThisVersion()
	kept := caps.Builtins[:0:0]
	for _, b := range caps.Builtins {
		if isDeterministic(b.Name) {
			kept = append(kept, b)
		}
	}
	caps.Builtins = kept
	return caps
}
