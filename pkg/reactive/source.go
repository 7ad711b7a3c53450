package reactive

import "strings"

// Func is a subscriber computation. vm is the subscriber's owning context,
// bound at construction.
type Func func(vm any) (any, error)

// Source is what a subscriber evaluates: either a function or a dotted
// path resolved against the owning context. The variant is fixed when the
// subscriber is constructed.
type Source interface {
	eval(vm any) (any, error)

	// String describes the source for logs and probes.
	String() string
}

// FuncSource returns a Source that calls fn.
func FuncSource(fn Func) Source {
	return funcSource{fn: fn}
}

// PathSource returns a Source that resolves a dotted path such as
// "user.address.city" against the owning context, one segment at a time.
// A missing or non-container intermediate value resolves the whole path
// to nil instead of failing.
func PathSource(path string) Source {
	return pathSource{path: path, segments: strings.Split(path, ".")}
}

type funcSource struct {
	fn Func
}

func (s funcSource) eval(vm any) (any, error) {
	if s.fn == nil {
		return nil, nil
	}
	return s.fn(vm)
}

func (s funcSource) String() string {
	return "func"
}

type pathSource struct {
	path     string
	segments []string
}

func (s pathSource) eval(vm any) (any, error) {
	return resolvePath(vm, s.segments), nil
}

func (s pathSource) String() string {
	return s.path
}

// resolvePath walks segments through Accessors, short-circuiting to nil at
// the first absent intermediate.
func resolvePath(root any, segments []string) any {
	cur := root
	for _, seg := range segments {
		if cur == nil {
			return nil
		}
		acc, ok := cur.(Accessor)
		if !ok {
			return nil
		}
		cur = acc.Get(seg)
	}
	return cur
}
