package resolve

import (
	"fmt"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/graph"
	"github.com/themill/wiz/history"
	"github.com/themill/wiz/materialize"
	"github.com/themill/wiz/registry"
	"github.com/themill/wiz/requirement"
)

// Resolve is the public resolver entry point: it normalizes requests,
// optionally prepends implicit packages, builds the graph, and tries
// variant combinations and version downgrades within opts' budgets until
// one validates or the budgets are exhausted.
func Resolve(idx *registry.Index, requests []string, opts Options, recorder *history.Recorder) (*Context, error) {
	opts = opts.normalized()

	requirements, err := normalizeRequests(requests)
	if err != nil {
		return nil, &RequirementError{Err: err}
	}

	if opts.IncludeImplicit {
		requirements = append(append([]requirement.Requirement{}, idx.ImplicitPackages...), requirements...)
	}

	namespaceCounter := buildNamespaceCounter(requirements)
	mat := materialize.NewCache()

	attempts := 0
	var lastConflicts []requirement.Conflict
	var combinationsTried int
	excluded := make(map[string]bool)

	for attempts < opts.MaxAttempts {
		attempts++

		g := graph.New(idx, mat, namespaceCounter, opts.SystemDescriptor, excluded)
		recorder.Record(history.GraphCreation, fmt.Sprintf("building graph for attempt %d", attempts))

		if err := g.Expand(requirements, graph.Root); err != nil {
			return nil, err
		}

		var failedErrors []graph.RecordedError
		it := g.Combinations()
		for attemptCombos := 0; attemptCombos < opts.MaxCombinations; attemptCombos++ {
			combo, ok := it.Next()
			if !ok {
				break
			}
			combinationsTried++
			recorder.Record(history.CombinationExtracted, fmt.Sprintf("attempt %d, combination %d", attempts, combinationsTried))

			if err := combo.ResolveConflicts(); err != nil {
				recorder.Record(history.ResolutionFailure, err.Error())
				return nil, classify(err)
			}
			if err := combo.Validate(); err != nil {
				recorder.Record(history.ConflictDetected, err.Error())
				failedErrors = append(failedErrors, combo.Graph.Errors...)
				continue
			}

			recorder.Record(history.ResolutionSuccess, "combination validated")
			return buildContext(combo.Graph, opts.InitialEnviron)
		}

		if extracted := extractConflicts(failedErrors); len(extracted) > 0 {
			// A round that made no downgrade progress can still report an
			// uninformative ErrConflict (a fetch that simply found nothing
			// left to try, DefinitionID/A/B all zero); keep whichever round
			// last had something concrete to say about the conflict.
			lastConflicts = extracted
		}
		recorder.Record(history.Downgrade, fmt.Sprintf("attempt %d exhausted combinations, downgrading", attempts))

		added := downgradeConflicting(idx, g, failedErrors, excluded)
		if !added {
			break
		}
	}

	return nil, &GraphResolutionError{
		Attempts:     attempts,
		Combinations: combinationsTried,
		Conflicts:    lastConflicts,
		Cause:        &GraphVariantsError{Attempts: combinationsTried},
	}
}

func normalizeRequests(requests []string) ([]requirement.Requirement, error) {
	reqs := make([]requirement.Requirement, 0, len(requests))
	for _, s := range requests {
		r, err := requirement.Parse(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

func buildNamespaceCounter(reqs []requirement.Requirement) map[string]int {
	counter := make(map[string]int)
	for _, r := range reqs {
		if r.Namespace != "" {
			counter[r.Namespace]++
		}
	}
	return counter
}

// extractConflicts pulls the requirement pairs out of a round's recorded
// conflict errors, for reporting in GraphResolutionError.
func extractConflicts(errs []graph.RecordedError) []requirement.Conflict {
	var out []requirement.Conflict
	for _, e := range errs {
		if e.Kind != graph.ErrConflict {
			continue
		}
		out = append(out, requirement.Conflict{DefinitionID: e.DefinitionID, A: e.A, B: e.B})
	}
	return out
}

// downgradeConflicting makes progress when every generated combination
// failed: for each definition that required a conflicting dependency, it
// excludes that definition's current version from the next graph build,
// forcing the registry fetch to fall back to the next-older version (the
// hope being that an older release of the parent carries a looser
// sub-requirement, as in the classic "downgrade the dependent, not the
// dependency" resolution). An exclusion only counts as progress once the
// registry is checked for an older version that would actually still
// satisfy whatever first required the parent; otherwise the next attempt
// would just fail to fetch the parent at all and bury the real conflict
// under an uninformative error. Reports whether any definition was
// downgraded; false means no further progress is possible and the driver
// should stop.
func downgradeConflicting(idx *registry.Index, g *graph.Graph, errs []graph.RecordedError, excluded map[string]bool) bool {
	added := false
	for _, e := range errs {
		if e.Kind != graph.ErrConflict {
			continue
		}
		for _, parentDefID := range e.ParentDefinitionIDs {
			version, ok := g.CurrentVersion(parentDefID)
			if !ok {
				continue
			}
			key := parentDefID + "==" + version
			if excluded[key] {
				continue
			}
			req, ok := g.IncomingRequirement(parentDefID)
			if !ok {
				continue
			}
			trial := make(map[string]bool, len(excluded)+1)
			for k := range excluded {
				trial[k] = true
			}
			trial[key] = true
			if !idx.HasSatisfyingExcluding(parentDefID, req, g.Descriptor(), trial) {
				continue
			}
			excluded[key] = true
			added = true
		}
	}
	return added
}

func buildContext(g *graph.Graph, initialEnviron map[string]string) (*Context, error) {
	ordered := g.OrderedNodes()
	if !variantUniquenessHolds(g, ordered) {
		return nil, fmt.Errorf("internal error: resolved graph contains more than one variant for a definition")
	}

	var environContribs, commandContribs []orderedPairs
	registries := make(map[string]bool)
	var registryOrder []string

	// Environ and command contributions fold in descending-distance order
	// (farthest package first, closest/highest-priority package last) so a
	// high-priority package's augmentation ends up outermost in the final
	// value; the displayed package list above stays ascending per the
	// emission ordering guarantee.
	for i := len(ordered) - 1; i >= 0; i-- {
		pkg := g.Nodes[ordered[i]].Package
		environContribs = append(environContribs, toOrderedPairs(pkg.Environ))
		commandContribs = append(commandContribs, toOrderedPairs(pkg.Command))
	}
	for _, nid := range ordered {
		pkg := g.Nodes[nid].Package
		if reg := pkg.Source.SourceRegistryPath; reg != "" && !registries[reg] {
			registries[reg] = true
			registryOrder = append(registryOrder, reg)
		}
	}

	environ, _ := foldEnviron(environContribs, initialEnviron)
	command, _ := foldEnviron(commandContribs, nil)

	packages := buildPackageSummaries(g, ordered)

	ctx := &Context{
		Packages:   packages,
		Environ:    environ,
		Command:    command,
		Registries: registryOrder,
	}
	environ["WIZ_CONTEXT"] = EncodeWizContext(packages, registryOrder)
	return ctx, nil
}

func toOrderedPairs(e definition.Environ) orderedPairs {
	var pairs []keyValue
	for _, k := range e.Keys() {
		v, _ := e.Get(k)
		pairs = append(pairs, keyValue{key: k, value: v})
	}
	return orderedPairs{pairs: pairs}
}
