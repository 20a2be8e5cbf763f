// internal/template/template.go
package template

import (
	"fmt"
	"regexp"
	"slices"
)

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Expand replaces {{name}} placeholders with values from data. Unknown
// placeholders are left as they are.
func Expand(tmpl string, data map[string]any) string {
	return placeholder.ReplaceAllStringFunc(tmpl, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		if val, ok := data[name]; ok {
			return fmt.Sprint(val)
		}
		return match
	})
}

// Vars returns the distinct placeholder names in tmpl in order of first use.
func Vars(tmpl string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(tmpl, -1) {
		if !slices.Contains(names, m[1]) {
			names = append(names, m[1])
		}
	}
	return names
}

// Check reports the first placeholder in tmpl that is not in allowed.
func Check(tmpl string, allowed ...string) error {
	for _, name := range Vars(tmpl) {
		if !slices.Contains(allowed, name) {
			return fmt.Errorf("unknown placeholder {{%s}}", name)
		}
	}
	return nil
}
