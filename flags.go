// FILE: lixenwraith/classconfig/flags.go
package classconfig

import (
	"fmt"
	"strconv"
	"strings"
)

// DisableFlags is a bitmask of pipeline stages to skip for one resolution call.
// Each middleware owns one bit and skips itself iff flags&bit == bit.
type DisableFlags uint

const (
	// DisableInheritance skips merging of ancestor configuration
	DisableInheritance DisableFlags = 1 << iota
	// DisableExtensions skips merging of extension-contributed configuration
	DisableExtensions
)

// DisableAll disables every middleware, including ones added with WithMiddleware.
// Resolving with DisableAll is equivalent to reading the raw store.
const DisableAll = ^DisableFlags(0)

// builtinBits is the set of bits reserved by the built-in middleware
const builtinBits = DisableInheritance | DisableExtensions

// Has reports whether every bit in bit is set in f
func (f DisableFlags) Has(bit DisableFlags) bool {
	return f&bit == bit
}

// String renders flags the way ParseDisableFlags accepts them
func (f DisableFlags) String() string {
	switch f {
	case 0:
		return "none"
	case DisableAll:
		return "all"
	}

	var parts []string
	rest := f
	if f.Has(DisableInheritance) {
		parts = append(parts, "inheritance")
		rest &^= DisableInheritance
	}
	if f.Has(DisableExtensions) {
		parts = append(parts, "extensions")
		rest &^= DisableExtensions
	}
	if rest != 0 {
		parts = append(parts, strconv.FormatUint(uint64(rest), 10))
	}
	return strings.Join(parts, ",")
}

// ParseDisableFlags parses a comma-separated list of stage names or numeric bits.
// "all" yields DisableAll; "" and "none" yield 0.
func ParseDisableFlags(s string) (DisableFlags, error) {
	var flags DisableFlags
	for _, part := range strings.Split(s, ",") {
		part = strings.ToLower(strings.TrimSpace(part))
		switch part {
		case "", "none":
			continue
		case "all":
			return DisableAll, nil
		case "inheritance", "uninherited":
			flags |= DisableInheritance
		case "extensions", "extra":
			flags |= DisableExtensions
		default:
			n, err := strconv.ParseUint(part, 0, 64)
			if err != nil {
				return 0, fmt.Errorf("unknown disable flag %q", part)
			}
			flags |= DisableFlags(n)
		}
	}
	return flags, nil
}
