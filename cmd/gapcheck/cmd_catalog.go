package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/gapcheck/internal/catalog"
)

var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Inspect question catalogs",
}

var catalogShowCmd = &cobra.Command{
	Use:   "show [path]",
	Short: "Print the sections and questions of a catalog",
	Long:  "Print the configured catalog, or the catalog file at path.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := ""
		if len(args) == 1 {
			path = args[0]
		} else {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			path = cfg.Catalog.Path
		}

		cat, err := catalog.Resolve(path)
		if err != nil {
			return err
		}
		printCatalog(cmd.OutOrStdout(), cat)
		return nil
	},
}

var catalogValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cat, err := catalog.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ %s: %d sections, %d questions\n", cat.Name(), cat.SectionCount(), cat.QuestionCount())
		return nil
	},
}

var catalogExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the built-in catalog as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.OutOrStdout().Write(catalog.DefaultYAML())
	},
}

func init() {
	catalogCmd.AddCommand(catalogShowCmd, catalogValidateCmd, catalogExportCmd)
}

func printCatalog(out io.Writer, cat *catalog.Catalog) {
	fmt.Fprintf(out, "%s\n", cat.Name())
	if cat.Description() != "" {
		fmt.Fprintf(out, "%s\n", cat.Description())
	}
	fmt.Fprintf(out, "%d sections, %d questions\n", cat.SectionCount(), cat.QuestionCount())

	for i, sec := range cat.Sections() {
		fmt.Fprintf(out, "\n%d. %s\n", i+1, sec.Title)
		for _, q := range sec.Questions {
			fmt.Fprintf(out, "   [%s] %s\n", q.ID, q.Text)
		}
	}
}
