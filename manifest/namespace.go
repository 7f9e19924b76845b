package manifest

import "strings"

// ToLowerCamel converts a Go identifier to a script member name.
// "Translate" -> "translate", "AddChild" -> "addChild", "my_field" -> "myField"
func ToLowerCamel(s string) string {
	var words []string
	current := ""
	for i, r := range s {
		if r == '-' || r == '_' {
			if current != "" {
				words = append(words, current)
				current = ""
			}
			continue
		}
		if i > 0 && r >= 'A' && r <= 'Z' {
			prev := rune(s[i-1])
			if prev >= 'a' && prev <= 'z' {
				words = append(words, current)
				current = ""
			}
		}
		current += string(r)
	}
	if current != "" {
		words = append(words, current)
	}

	var result string
	for i, w := range words {
		if w == "" {
			continue
		}
		if i == 0 {
			result += strings.ToLower(w)
			continue
		}
		result += strings.ToUpper(w[:1]) + strings.ToLower(w[1:])
	}
	return result
}

// reservedRoots lists name roots the runtime claims for itself: std belongs
// to the standard bindings, tether to the engine.
var reservedRoots = map[string]bool{
	"std":    true,
	"tether": true,
}

// IsReservedRoot reports whether a class or enum name sits under a root
// segment claimed by the runtime. Only the root segment is checked:
// "geom.std" is fine because the root is "geom".
func IsReservedRoot(name string) bool {
	root := name
	if idx := strings.Index(name, "."); idx >= 0 {
		root = name[:idx]
	}
	return reservedRoots[root]
}
