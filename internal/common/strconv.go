package common

import (
	"strconv"
	"strings"
)

// AtoiDefault parses value as a base-10 integer, returning def on empty or
// malformed input. Handy for optional query parameters.
func AtoiDefault(value string, def int) int {
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return def
	}
	return parsed
}
