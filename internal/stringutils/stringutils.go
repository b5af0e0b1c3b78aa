// Package stringutils formats multi-line descriptions.
package stringutils

import "strings"

// IndentString prefixes each non-empty line of str with indent.
func IndentString(str, indent string) string {
	lines := strings.SplitAfter(str, "\n")

	var result strings.Builder
	for _, line := range lines {
		if line == "" || line == "\n" {
			result.WriteString(line)
			continue
		}

		result.WriteString(indent)
		result.WriteString(line)
	}

	return result.String()
}
