package component

// Host receives render output. Patch is called once on mount with a nil
// prev, and again after every re-render that produced different output.
//
// Diffing and applying the output is the host's business; an error
// returned from Patch propagates to the write that caused the re-render.
type Host interface {
	Patch(prev, next any) error
}

// HostFunc adapts a function to the Host interface.
type HostFunc func(prev, next any) error

// Patch implements Host.
func (f HostFunc) Patch(prev, next any) error {
	return f(prev, next)
}

// discard is used when no host is given.
type discard struct{}

func (discard) Patch(any, any) error { return nil }
