// FILE: lixenwraith/classconfig/errors.go
package classconfig

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrClassNotFound is matched by every *ClassNotFoundError
	ErrClassNotFound = errors.New("class not found")
	// ErrUnknownExtension is matched by every *UnknownExtensionError
	ErrUnknownExtension = errors.New("unknown extension")
	// ErrCyclicAncestry is matched by every *CyclicAncestryError
	ErrCyclicAncestry = errors.New("cyclic ancestry")

	// ErrConfigNotFound is returned when a declaration file does not exist.
	// Builder treats it as non-fatal.
	ErrConfigNotFound = errors.New("declaration file not found")
	// ErrCLIParse wraps failures parsing --Class.key=value overrides
	ErrCLIParse = errors.New("failed to parse command-line overrides")
	// ErrValueSize is returned for environment values exceeding MaxValueSize
	ErrValueSize = errors.New("value exceeds maximum size")
	// ErrInvalidExtensions is returned when a class's extensions key is neither a sequence nor a mapping
	ErrInvalidExtensions = errors.New("invalid extensions declaration")
	// ErrInvalidCallSpec is returned for malformed extension call-spec strings
	ErrInvalidCallSpec = errors.New("invalid extension call-spec")
	// ErrInvalidMiddlewareBit is returned when a middleware has a zero or overlapping disable bit
	ErrInvalidMiddlewareBit = errors.New("invalid middleware disable bit")
	// ErrInvalidClassName is returned when declaring a class with an unusable identifier
	ErrInvalidClassName = errors.New("invalid class name")
	// ErrConflictingDeclaration indicates re-declaring a class with a different parent or kind
	ErrConflictingDeclaration = errors.New("conflicting class declaration")
)

// MaxValueSize bounds a single environment-sourced value
const MaxValueSize = 1 << 20

// ClassNotFoundError reports a class identifier unknown to the declarations.
// Referrer is set when the missing class was named as the parent of another class.
type ClassNotFoundError struct {
	Class    string
	Referrer string
}

func (e *ClassNotFoundError) Error() string {
	if e.Referrer != "" {
		return fmt.Sprintf("class %q (parent of %q) not found", e.Class, e.Referrer)
	}
	return fmt.Sprintf("class %q not found", e.Class)
}

// Is reports whether target is ErrClassNotFound
func (e *ClassNotFoundError) Is(target error) bool {
	return target == ErrClassNotFound
}

// UnknownExtensionError reports an extension call-spec on Host that does not
// resolve to a declared extension type.
type UnknownExtensionError struct {
	Host      string
	Extension string
	Reason    string
}

func (e *UnknownExtensionError) Error() string {
	msg := fmt.Sprintf("extension %q applied to %q is not a registered extension", e.Extension, e.Host)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

// Is reports whether target is ErrUnknownExtension
func (e *UnknownExtensionError) Is(target error) bool {
	return target == ErrUnknownExtension
}

// CyclicAncestryError reports a parent chain that loops back on itself, or a
// resolution that re-entered the pipeline deeper than the configured limit.
type CyclicAncestryError struct {
	Class string
	Chain []string
}

func (e *CyclicAncestryError) Error() string {
	return fmt.Sprintf("cyclic ancestry for class %q: %s", e.Class, strings.Join(e.Chain, " -> "))
}

// Is reports whether target is ErrCyclicAncestry
func (e *CyclicAncestryError) Is(target error) bool {
	return target == ErrCyclicAncestry
}
