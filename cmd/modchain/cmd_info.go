package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// infoCmd prints the chain topology after loading the requested modules.
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show chain topology after loading modules",
	RunE: func(cmd *cobra.Command, args []string) error {
		r := newResolver()
		handles, err := loadModules(r)
		if err != nil {
			return err
		}

		fmt.Printf("modules loaded: %d\n", len(handles))
		for _, h := range handles {
			fmt.Printf("  %s  strategy=%s node=%s origin=%s\n",
				h.Unit.ID, h.Strategy, h.Node.ID(), h.Unit.Origin)
		}

		fmt.Println("chain:")
		for _, info := range r.Snapshot() {
			marker := " "
			switch {
			case info.Entry:
				marker = "*"
			case info.Root:
				marker = "r"
			}
			fmt.Printf("  %s %s parent=%s delegate=%s segments=%d entries=%d v%d\n",
				marker, info.ID, orDash(info.Parent), orDash(info.Delegate),
				info.Segments, info.Entries, info.Version)
		}
		return nil
	},
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
