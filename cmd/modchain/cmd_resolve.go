package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"modchain/internal/resolver"
)

// resolveCmd loads the requested modules and resolves names against the
// chain's entry point.
var resolveCmd = &cobra.Command{
	Use:   "resolve [names...]",
	Short: "Load modules and resolve symbol names",
	Long: `Loads every --module container under the selected strategy, then
resolves each name against the chain's current entry point.

Example:
  modchain resolve Greeting Version -m plugin.go -s isolated`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		r := newResolver()
		if _, err := loadModules(r); err != nil {
			return err
		}

		var missing int
		for _, name := range args {
			h, err := r.Resolve(name)
			if err != nil {
				if errors.Is(err, resolver.ErrNotFound) {
					fmt.Printf("%s: not found\n", name)
					missing++
					continue
				}
				return err
			}
			fmt.Printf("%s = %v (module %s, node %s)\n", h.Name, h.Value, h.Module, h.NodeID)
		}
		if missing > 0 {
			return fmt.Errorf("%d of %d names unresolved", missing, len(args))
		}
		return nil
	},
}
