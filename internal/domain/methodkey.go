package domain

import "strings"

// MethodKey is the stable textual identifier of an operation, of the form
// "<fully-qualified-type>#<operation-name>(<arg-type-simple-names>)". It is
// used verbatim in policy lookup, idempotency rows, and audit rows.
type MethodKey string

// NewMethodKey builds a MethodKey from a qualified type name, an operation
// name, and the simple names of its argument types, in order.
func NewMethodKey(qualifiedType, operation string, argTypes ...string) MethodKey {
	var b strings.Builder
	b.WriteString(qualifiedType)
	b.WriteByte('#')
	b.WriteString(operation)
	b.WriteByte('(')
	b.WriteString(strings.Join(argTypes, ","))
	b.WriteByte(')')
	return MethodKey(b.String())
}

// Short returns the "<simple-type>#<op>" variant used only as a metrics tag,
// dropping the package-qualified prefix and the argument-type list.
func (m MethodKey) Short() string {
	s := string(m)
	if i := strings.IndexByte(s, '('); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		if hash := strings.IndexByte(s, '#'); hash >= 0 && hash > i {
			return s[i+1:]
		}
	}
	return s
}

func (m MethodKey) String() string { return string(m) }
