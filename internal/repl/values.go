package repl

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"

	"github.com/psantana5/toolshim/internal/report"
)

func resultDict(r *report.Result) starlark.Value {
	return toValue(map[string]any{
		"id":          r.ID,
		"tool":        r.Tool,
		"mode":        string(r.Mode),
		"exit_code":   r.ExitCode,
		"intercepted": r.Intercepted,
		"outcome":     string(r.Outcome),
		"duration":    r.Duration.Seconds(),
		"error":       r.Error,
	})
}

func toValue(v any) starlark.Value {
	switch v := v.(type) {
	case nil:
		return starlark.None
	case bool:
		return starlark.Bool(v)
	case string:
		return starlark.String(v)
	case int:
		return starlark.MakeInt(v)
	case int64:
		return starlark.MakeInt64(v)
	case float64:
		return starlark.Float(v)
	case []string:
		elems := make([]starlark.Value, len(v))
		for i, s := range v {
			elems[i] = starlark.String(s)
		}
		return starlark.NewList(elems)
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		d := starlark.NewDict(len(v))
		for _, k := range keys {
			d.SetKey(starlark.String(k), toValue(v[k]))
		}
		return d
	}
	panic(fmt.Errorf("unsupported type for starlark: %T", v))
}

// stringArgs accepts f("a", "b") as well as f(["a", "b"]).
func stringArgs(fn string, args starlark.Tuple, kwargs []starlark.Tuple) ([]string, error) {
	if len(kwargs) > 0 {
		return nil, fmt.Errorf("%s: unexpected keyword arguments", fn)
	}
	if len(args) == 1 {
		if list, ok := args[0].(*starlark.List); ok {
			return iterStrings(fn, list)
		}
	}
	return iterStrings(fn, args)
}

func iterStrings(fn string, it starlark.Iterable) ([]string, error) {
	iter := it.Iterate()
	defer iter.Done()

	var out []string
	var x starlark.Value
	for iter.Next(&x) {
		s, ok := starlark.AsString(x)
		if !ok {
			return nil, fmt.Errorf("%s: arguments must be strings, got %s", fn, x.Type())
		}
		out = append(out, s)
	}
	return out, nil
}
