package actionlog

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/gazay/logux-core/pkg/store"
)

// KeepExpr compiles a boolean CEL expression into a Keeper. The expression
// sees these variables:
//
//	action       map(string, dyn)  the action
//	action_type  string            action["type"] formatted as a string
//	id           string            meta id, "<ms> <node> <seq>"
//	ms, time     int               id millisecond and meta time
//	added        int               arrival counter
//	reasons      list(string)
//
// An entry is kept when the expression yields true, and also when evaluation
// fails so a broken expression never deletes data.
func KeepExpr(expr string) (Keeper, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("actionlog: empty keep expression")
	}
	env, err := cel.NewEnv(
		cel.Variable("action", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("action_type", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("ms", cel.IntType),
		cel.Variable("time", cel.IntType),
		cel.Variable("added", cel.IntType),
		cel.Variable("reasons", cel.ListType(cel.StringType)),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("actionlog: keep expression: %w", iss.Err())
	}
	prog, err := env.Program(ast)
	if err != nil {
		return nil, err
	}

	return func(action store.Action, meta store.Meta) bool {
		typ, _ := action.Type()
		reasons := meta.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		out, _, err := prog.Eval(map[string]any{
			"action":      celMap(action),
			"action_type": fmt.Sprint(typ),
			"id":          meta.ID.String(),
			"ms":          meta.ID.Ms,
			"time":        meta.Time,
			"added":       int64(meta.Added),
			"reasons":     reasons,
		})
		if err != nil {
			return true
		}
		b, ok := out.Value().(bool)
		return !ok || b
	}, nil
}

// celMap converts json.Number values, as returned by JSON-backed stores, to
// int64 or float64 so CEL can compare them.
func celMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = celValue(v)
	}
	return out
}

func celValue(v any) any {
	switch v := v.(type) {
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case map[string]any:
		return celMap(v)
	case store.Action:
		return celMap(v)
	case []any:
		out := make([]any, len(v))
		for i, e := range v {
			out[i] = celValue(e)
		}
		return out
	}
	return v
}
