package utils

import "reflect"

// TypeName returns the name of the type of v without its package, following pointers, e.g. TypeName(&Foo{}) ->
// "Foo".
func TypeName(v any) string {
	if v == nil {
		return "<nil>"
	}

	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}
