package flowsetup

import (
	"fmt"
	"runtime"

	"gopkg.in/Knetic/govaluate.v3"
)

// CheckContext supplies the values a check expression can test: whether the
// install runs unattended, the host platform, and the state of the optional
// tasks the user picked.
type CheckContext struct {
	Silent bool
	OS     string
	Arch   string
	Tasks  map[string]bool
}

// HostCheckContext returns a check context for the running machine.
func HostCheckContext(silent bool, tasks map[string]bool) CheckContext {
	return CheckContext{Silent: silent, OS: runtime.GOOS, Arch: runtime.GOARCH, Tasks: tasks}
}

// EvaluateCheck runs a manifest check expression against a context. The empty
// expression is true. Expressions see the parameters "silent", "os" and
// "arch", and the function task("name") which reports whether the named task
// is enabled:
//
//	check: task("desktopicon") && !silent
//	check: os == "windows"
func EvaluateCheck(expr string, ctx CheckContext) (bool, error) {
	if expr == "" {
		return true, nil
	}
	functions := map[string]govaluate.ExpressionFunction{
		"task": func(args ...interface{}) (interface{}, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("task() takes exactly one argument")
			}
			name, ok := args[0].(string)
			if !ok {
				return nil, fmt.Errorf("task() takes a task name string")
			}
			return ctx.Tasks[name], nil
		},
	}
	parsed, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions)
	if err != nil {
		return false, fmt.Errorf("check %q: %w", expr, err)
	}
	result, err := parsed.Evaluate(map[string]interface{}{
		"silent": ctx.Silent,
		"os":     ctx.OS,
		"arch":   ctx.Arch,
	})
	if err != nil {
		return false, fmt.Errorf("check %q: %w", expr, err)
	}
	verdict, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("check %q: result is not a boolean", expr)
	}
	return verdict, nil
}

// CompileCheck parses a check expression without evaluating it. Build-time
// validation uses it to reject malformed expressions early; unknown
// parameters can only be caught at evaluation time.
func CompileCheck(expr string) error {
	if expr == "" {
		return nil
	}
	functions := map[string]govaluate.ExpressionFunction{
		"task": func(args ...interface{}) (interface{}, error) { return true, nil },
	}
	if _, err := govaluate.NewEvaluableExpressionWithFunctions(expr, functions); err != nil {
		return fmt.Errorf("invalid check %q: %w", expr, err)
	}
	return nil
}
