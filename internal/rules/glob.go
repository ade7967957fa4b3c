package rules

import (
	"path"
	"strings"
)

// matchGlob matches a slash-separated path against pattern. "*" and "?"
// stay inside one segment, a "**" segment spans any number of segments.
func matchGlob(name, pattern string) bool {
	name = strings.Trim(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return false
	}
	return matchSegments(strings.Split(name, "/"), strings.Split(pattern, "/"))
}

func matchSegments(name, pattern []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			rest := pattern[1:]
			if len(rest) == 0 {
				return true
			}
			for i := 0; i <= len(name); i++ {
				if matchSegments(name[i:], rest) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		ok, err := path.Match(pattern[0], name[0])
		if err != nil || !ok {
			return false
		}
		name, pattern = name[1:], pattern[1:]
	}
	return len(name) == 0
}

func matchAny(name string, patterns []string) (string, bool) {
	for _, p := range patterns {
		if matchGlob(name, p) {
			return p, true
		}
	}
	return "", false
}

func validPattern(pattern string) bool {
	if strings.Trim(pattern, "/") == "" {
		return false
	}
	for _, seg := range strings.Split(strings.Trim(pattern, "/"), "/") {
		if seg == "**" {
			continue
		}
		if _, err := path.Match(seg, ""); err != nil {
			return false
		}
	}
	return true
}
