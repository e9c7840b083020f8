package flowsetup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateCheck(t *testing.T) {
	ctx := CheckContext{
		Silent: false,
		OS:     "linux",
		Arch:   "amd64",
		Tasks:  map[string]bool{"desktopicon": true},
	}

	for name, tc := range map[string]struct {
		expr string
		want bool
	}{
		"empty":       {"", true},
		"task on":     {`task("desktopicon")`, true},
		"task off":    {`task("quicklaunch")`, false},
		"not silent":  {"!silent", true},
		"os match":    {`os == "linux"`, true},
		"os mismatch": {`os == "windows"`, false},
		"combined":    {`task("desktopicon") && !silent`, true},
		"arch":        {`arch == "amd64" || arch == "arm64"`, true},
	} {
		t.Run(name, func(t *testing.T) {
			got, err := EvaluateCheck(tc.expr, ctx)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateCheckSilent(t *testing.T) {
	got, err := EvaluateCheck("!silent", CheckContext{Silent: true})
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateCheckErrors(t *testing.T) {
	_, err := EvaluateCheck("&&", CheckContext{})
	assert.Error(t, err, "syntax error")

	_, err = EvaluateCheck("nosuchparam", CheckContext{})
	assert.Error(t, err, "unknown parameter")

	_, err = EvaluateCheck("1 + 1", CheckContext{})
	assert.Error(t, err, "non-boolean result")

	_, err = EvaluateCheck("task()", CheckContext{})
	assert.Error(t, err, "missing task name")
}

func TestCompileCheck(t *testing.T) {
	require.NoError(t, CompileCheck(""))
	require.NoError(t, CompileCheck(`task("x") && !silent`))
	assert.Error(t, CompileCheck("&& silent"))
}

func TestHostCheckContext(t *testing.T) {
	ctx := HostCheckContext(true, map[string]bool{"a": true})
	assert.True(t, ctx.Silent)
	assert.NotEmpty(t, ctx.OS)
	assert.NotEmpty(t, ctx.Arch)
	assert.True(t, ctx.Tasks["a"])
}
