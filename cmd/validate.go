package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/user/hostcomply/pkg/catalog"
	"github.com/user/hostcomply/pkg/engine"
	"github.com/user/hostcomply/pkg/procedures"
)

var validateCmd = &cobra.Command{
	Use:   "validate [catalog]",
	Short: "Check a catalog without touching the host",
	Long: `validate parses every entry of a catalog, checks that each procedure it
references is registered and that the arguments bind to the procedure's
parameters.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.Catalog
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			return fmt.Errorf("no catalog given")
		}
		formatName, _ := cmd.Flags().GetString("catalog-format")
		if formatName == "" {
			formatName = cfg.CatalogFormat
		}
		format, err := catalog.ParseFormat(formatName)
		if err != nil {
			return err
		}

		reader, closer, err := catalog.Open(path, format)
		if err != nil {
			return err
		}
		defer closer.Close()

		params, err := parseParams(cfg.Parameters, nil)
		if err != nil {
			return err
		}
		problems := validateCatalog(reader, procedures.NewRegistry(), params, cmd.OutOrStdout())
		if problems > 0 {
			exitCode = exitError
		}
		return nil
	},
}

// validateCatalog prints every problem found in r and returns their count.
func validateCatalog(r *catalog.Reader, reg *engine.Registry, params map[string]string, w io.Writer) int {
	resources, parseErrs := r.ReadAll()
	problems := len(parseErrs)
	for _, err := range parseErrs {
		fmt.Fprintf(w, "parse error: %v\n", err)
	}
	for _, res := range resources {
		for _, err := range reg.Check(res, params) {
			fmt.Fprintf(w, "%s: %v\n", res.ID, err)
			problems++
		}
	}
	fmt.Fprintf(w, "%d resources, %d problems\n", len(resources), problems)
	return problems
}

func init() {
	validateCmd.Flags().String("catalog-format", "", "Catalog format: auto, yaml, mof")
	rootCmd.AddCommand(validateCmd)
}
