package cli

import (
	"fmt"
	"os"
	"os/exec"
	"sort"

	"github.com/spf13/cobra"

	"github.com/themill/wiz/internal/config"
	"github.com/themill/wiz/resolve"
)

// newUseCmd resolves a context and execs a command inside it, the
// subprocess-spawning front end the resolver core deliberately stays
// decoupled from.
func newUseCmd() *cobra.Command {
	var registries []string

	cmd := &cobra.Command{
		Use:   "use [requests...] -- [command...]",
		Short: "resolve a context and run a command inside it",
		RunE: func(cmd *cobra.Command, args []string) error {
			sep := cmd.ArgsLenAtDash()
			requests, command := args, []string(nil)
			if sep >= 0 {
				requests, command = args[:sep], args[sep:]
			}
			if len(command) == 0 {
				command = []string{os.Getenv("SHELL")}
				if command[0] == "" {
					command[0] = "/bin/sh"
				}
			}

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

			ctx, err := resolve.Resolve(idx, requests, opts, nil)
			if err != nil {
				return err
			}

			env := os.Environ()
			keys := make([]string, 0, len(ctx.Environ))
			for k := range ctx.Environ {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				env = append(env, fmt.Sprintf("%s=%s", k, ctx.Environ[k]))
			}

			sub := exec.Command(command[0], command[1:]...)
			sub.Stdin, sub.Stdout, sub.Stderr = os.Stdin, os.Stdout, os.Stderr
			sub.Env = env
			return sub.Run()
		},
	}

	cmd.Flags().StringArrayVarP(&registries, "registry", "r", nil, "additional registry path (repeatable)")
	return cmd
}
