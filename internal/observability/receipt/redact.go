package receipt

import (
	"regexp"
	"strings"
)

// secretFlags have their value redacted whatever it looks like
var secretFlags = map[string]bool{
	"token":         true,
	"password":      true,
	"passphrase":    true,
	"secret":        true,
	"api-key":       true,
	"apikey":        true,
	"auth":          true,
	"credentials":   true,
	"bearer":        true,
	"access-token":  true,
	"private-key":   true,
	"otel-headers":  true,
	"github-token":  true,
	"registry-auth": true,
}

// secretPrefixes of well-known token formats
var secretPrefixes = []string{
	"ghp_", "github_pat_", "gho_", "ghs_", "ghu_",
	"glpat-",
	"xoxb-", "xoxp-",
	"AKIA",
	"ya29.", "AIza",
	"sk-",
	"npm_",
}

var (
	jwtLike    = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}$`)
	opaqueLong = regexp.MustCompile(`^[A-Za-z0-9+/=_-]{32,}$`)
)

const redactedValue = "[REDACTED]"

// RedactArgs hides values of secret flags and anything that looks like a
// token. Paths and URLs are left readable.
func RedactArgs(args []string) ([]string, bool) {
	if len(args) == 0 {
		return args, false
	}
	out := make([]string, len(args))
	redacted := false

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if name, value, ok := strings.Cut(arg, "="); ok && strings.HasPrefix(name, "-") {
			if secretFlags[flagName(name)] || looksSecret(value) {
				out[i] = name + "=" + redactedValue
				redacted = true
			} else {
				out[i] = arg
			}
			continue
		}

		if strings.HasPrefix(arg, "-") && secretFlags[flagName(arg)] && i+1 < len(args) {
			out[i] = arg
			i++
			out[i] = redactedValue
			redacted = true
			continue
		}

		if looksSecret(arg) {
			out[i] = redactedValue
			redacted = true
			continue
		}
		out[i] = arg
	}
	return out, redacted
}

func flagName(s string) string {
	return strings.ToLower(strings.TrimLeft(s, "-"))
}

func looksSecret(v string) bool {
	for _, p := range secretPrefixes {
		if strings.HasPrefix(v, p) {
			return true
		}
	}
	if jwtLike.MatchString(v) {
		return true
	}
	return !strings.ContainsAny(v, "/.") && opaqueLong.MatchString(v)
}
