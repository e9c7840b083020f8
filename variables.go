package flowsetup

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
)

type StringMap map[string]string

var templateFuncs = template.FuncMap{
	"replace": func(from, to, input string) string { return strings.Replace(input, from, to, -1) },
	"trim":    func(input string) string { return strings.Trim(input, " \r\n\t") },
	"split":   func(sep, input string) []string { return strings.Split(input, sep) },
	"join":    func(sep string, input []string) string { return strings.Join(input, sep) },
	"upper":   func(input string) string { return strings.ToUpper(input) },
	"lower":   func(input string) string { return strings.ToLower(input) },
	"title":   func(input string) string { return strings.ToTitle(input) },
}

// ExpandVariables takes a string with template variables like {{.var}} and expands
// them with the given map. Referencing a variable that is not in the map is an
// error, as is invalid template syntax.
func ExpandVariables(str string, variables StringMap) (string, error) {
	templ, err := template.New("").Funcs(templateFuncs).Option("missingkey=error").Parse(str)
	if err != nil {
		return "", fmt.Errorf("invalid string template %q: %w", str, err)
	}
	var buf bytes.Buffer
	if err = templ.Execute(&buf, variables); err != nil {
		return "", fmt.Errorf("expanding %q: %w", str, err)
	}
	return buf.String(), nil
}

// MustExpand is ExpandVariables for strings that are known to be valid, such as
// compiled-in templates. It panics on expansion errors.
func MustExpand(str string, variables StringMap) string {
	expanded, err := ExpandVariables(str, variables)
	if err != nil {
		panic(err)
	}
	return expanded
}

// MergeVariables combines several variable maps into a single one. Duplicate keys
// will be overridden by the value in the last map which has the key.
func MergeVariables(varMaps ...StringMap) StringMap {
	merged := make(StringMap)
	for _, vars := range varMaps {
		for k, v := range vars {
			merged[k] = v
		}
	}
	return merged
}
