// Package resolve implements the resolver driver: it turns a list of
// requirement strings and an index into an ordered, environment-merged
// Context, trying successive variant combinations and version downgrades
// within the budgets given by Options.
package resolve

import "github.com/themill/wiz/definition"

// Options configures a single resolve call.
type Options struct {
	MaxAttempts      int // default 15
	MaxCombinations  int // default 10000
	IncludeImplicit  bool
	SystemDescriptor definition.Descriptor
	NamespaceHints   map[string]bool

	// InitialEnviron seeds the merged environ before any package's
	// contribution is folded in, so a package's "${PATH}" reference can
	// resolve against the environment the resolver was invoked from
	// rather than only what earlier packages in the context contributed.
	InitialEnviron map[string]string
}

// DefaultOptions returns the documented defaults with IncludeImplicit set
// to true, since callers wanting explicit-only resolution must opt out
// deliberately.
func DefaultOptions(descriptor definition.Descriptor) Options {
	return Options{
		MaxAttempts:      15,
		MaxCombinations:  10000,
		IncludeImplicit:  true,
		SystemDescriptor: descriptor,
	}
}

func (o Options) normalized() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 15
	}
	if o.MaxCombinations <= 0 {
		o.MaxCombinations = 10000
	}
	return o
}
