package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
)

var envPattern = regexp.MustCompile(`\$\{([A-Za-z0-9_]+)(:-([^}]*))?\}`)

// ExpandEnvStrict expands ${VAR} and ${VAR:-fallback} references. A ${VAR}
// whose variable is unset is an error.
func ExpandEnvStrict(input string) (string, error) {
	matches := envPattern.FindAllStringSubmatchIndex(input, -1)
	if len(matches) == 0 {
		return input, nil
	}
	var b strings.Builder
	last := 0
	for _, m := range matches {
		b.WriteString(input[last:m[0]])
		name := input[m[2]:m[3]]
		val, ok := os.LookupEnv(name)
		switch {
		case ok:
			b.WriteString(val)
		case m[4] >= 0:
			b.WriteString(input[m[6]:m[7]])
		default:
			return "", fmt.Errorf("missing env var %s", name)
		}
		last = m[1]
	}
	b.WriteString(input[last:])
	return b.String(), nil
}
