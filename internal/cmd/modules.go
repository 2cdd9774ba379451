package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noorall/fmtgate/internal/project"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "List the build modules discovered under the project root",
	RunE:  runModules,
}

func init() {
	rootCmd.AddCommand(modulesCmd)
}

func runModules(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Close()

	root, err := projectRoot(cmd.Context(), cmd, logger)
	if err != nil {
		return err
	}

	d := project.NewDiscoverer(
		cfg.Discovery.Descriptors,
		cfg.Discovery.IgnoreDirs,
		cfg.Discovery.MaxDepth,
		logger,
	)
	modules, err := d.Discover(root)
	if err != nil {
		return fmt.Errorf("failed to discover modules: %w", err)
	}
	if len(modules) == 0 {
		fmt.Println("No build modules found")
		return nil
	}

	for _, m := range modules {
		name := m.RelPath
		if m.IsRoot {
			name = "(root)"
		}
		fmt.Printf("%-40s %s\n", name, m.Descriptor)
	}
	return nil
}
