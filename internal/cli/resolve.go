package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/history"
	"github.com/themill/wiz/internal/config"
	"github.com/themill/wiz/internal/discovery"
	"github.com/themill/wiz/registry"
	"github.com/themill/wiz/resolve"
)

func descriptorForHost() definition.Descriptor {
	return definition.Descriptor{Platform: runtime.GOOS, Arch: runtime.GOARCH}
}

// buildIndex discovers every configured registry and builds a lookup index,
// logging any malformed definitions encountered along the way rather than
// failing the whole command over one bad file.
func buildIndex(cmd *cobra.Command, registries []string) (*registry.Index, error) {
	logger := loggerFromContext(cmd.Context())

	if local, ok := discovery.LocalRegistry(); ok {
		registries = append(registries, local)
	}

	records, parseErrs := discovery.Fetch(registries)
	for _, e := range parseErrs {
		logger.Warn(e.Error())
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("no definitions found in %v", registries)
	}

	idx, debug := registry.Build(records)
	for _, d := range debug {
		logger.Debug(d.Message)
	}
	return idx, nil
}

func newResolveCmd() *cobra.Command {
	var registries []string
	var recordHistory bool

	cmd := &cobra.Command{
		Use:   "resolve [requests...]",
		Short: "resolve a list of package requests into a context",
		Args:  cobra.MinimumNArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			regs := append(append([]string{}, cfg.Registries...), registries...)

			idx, err := buildIndex(cmd, regs)
			if err != nil {
				return err
			}

			opts := resolve.DefaultOptions(descriptorForHost())
			opts.MaxAttempts = cfg.Resolver.MaxAttempts
			opts.MaxCombinations = cfg.Resolver.MaxCombinations
			opts.IncludeImplicit = cfg.Resolver.IncludeImplicit
			opts.InitialEnviron = cfg.Environ.InitialEnviron(nil)

			var recorder *history.Recorder
			if recordHistory {
				recorder = history.NewRecorder(loggerFromContext(cmd.Context()), append([]string{"wiz", "resolve"}, args...))
			}

			ctx, err := resolve.Resolve(idx, args, opts, recorder)
			if err != nil {
				return err
			}

			for _, pkg := range ctx.Packages {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n", pkg.QualifiedIdentifier)
			}
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&registries, "registry", "r", nil, "additional registry path (repeatable)")
	cmd.Flags().BoolVar(&recordHistory, "record-history", false, "record a resolution history log")
	return cmd
}
