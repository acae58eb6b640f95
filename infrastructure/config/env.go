package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	domainconfig "github.com/felixgeelhaar/decision-ledger/domain/config"
)

var (
	// ${VAR}, ${VAR:-default}, ${VAR:?message}
	bracketPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-[^}]*|:\?[^}]*)?\}`)
	// $VAR
	simplePattern = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// envExpander expands environment variables in configuration text.
type envExpander struct {
	// strict fails if a referenced variable is not set.
	strict bool
	// lookup resolves a variable; os.LookupEnv when nil.
	lookup func(string) (string, bool)
	// missing tracks missing environment variables.
	missing []string
}

// Expand expands environment variables in the input string.
// Supported patterns:
//   - ${VAR} - expands to the value of VAR
//   - ${VAR:-default} - expands to VAR or "default" if unset or empty
//   - ${VAR:?error message} - fails if VAR is unset or empty
//   - $VAR - simple expansion
func (e *envExpander) Expand(input string) (string, error) {
	e.missing = nil
	if e.lookup == nil {
		e.lookup = os.LookupEnv
	}

	result := bracketPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := bracketPattern.FindStringSubmatch(match)
		return e.resolve(match, sub[1], sub[2])
	})

	result = simplePattern.ReplaceAllStringFunc(result, func(match string) string {
		return e.resolve(match, match[1:], "")
	})

	if len(e.missing) > 0 {
		return "", fmt.Errorf("%w: %s", domainconfig.ErrMissingEnvVar, strings.Join(e.missing, ", "))
	}
	return result, nil
}

func (e *envExpander) resolve(match, name, modifier string) string {
	value, exists := e.lookup(name)

	switch {
	case strings.HasPrefix(modifier, ":-"):
		if !exists || value == "" {
			return modifier[2:]
		}
	case strings.HasPrefix(modifier, ":?"):
		if !exists || value == "" {
			e.missing = append(e.missing, fmt.Sprintf("%s: %s", name, modifier[2:]))
			return match
		}
	case !exists:
		if e.strict {
			e.missing = append(e.missing, name)
		}
		return ""
	}
	return value
}

// ExpandEnv is a convenience function that expands environment variables.
func ExpandEnv(input string) string {
	e := &envExpander{}
	result, _ := e.Expand(input)
	return result
}

// ExpandEnvStrict expands environment variables and returns an error for missing vars.
func ExpandEnvStrict(input string) (string, error) {
	e := &envExpander{strict: true}
	return e.Expand(input)
}
