package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/hostcomply/pkg/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := runSetup(cmd.InOrStdin(), cmd.OutOrStdout(), cfg); err != nil {
			return err
		}
		if err := config.SaveConfig(cfg, ConfigPath); err != nil {
			return fmt.Errorf("error saving config: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Setup Complete! You can now run 'hostcomply audit'")
		return nil
	},
}

var setupFormats = []string{"auto", "compact", "nested", "json", "verbose"}

// runSetup asks for the catalog, report format and alternate root and
// stores the answers in c. An empty answer keeps the current value.
func runSetup(in io.Reader, out io.Writer, c *config.Config) error {
	scanner := bufio.NewScanner(in)
	ask := func(prompt string) string {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			return ""
		}
		return strings.TrimSpace(scanner.Text())
	}

	fmt.Fprintln(out, "Welcome to hostcomply Setup Wizard")
	fmt.Fprintln(out, "----------------------------------")

	fmt.Fprintln(out, "Step 1: Rule catalog")
	if catalogPath := ask(fmt.Sprintf("Catalog file [%s] > ", c.Catalog)); catalogPath != "" {
		if _, err := os.Stat(catalogPath); err != nil {
			return fmt.Errorf("catalog %s is not readable: %w", catalogPath, err)
		}
		c.Catalog = catalogPath
	}

	fmt.Fprintln(out, "\nStep 2: Report format")
	for i, f := range setupFormats {
		fmt.Fprintf(out, "%d. %s\n", i+1, f)
	}
	if choice := ask(fmt.Sprintf("Enter number or name [%s] > ", c.Format)); choice != "" {
		if idx, err := strconv.Atoi(choice); err == nil {
			if idx < 1 || idx > len(setupFormats) {
				return fmt.Errorf("invalid choice %d", idx)
			}
			choice = setupFormats[idx-1]
		}
		c.Format = strings.ToLower(choice)
	}

	fmt.Fprintln(out, "\nStep 3: Alternate root (leave empty to audit this machine)")
	if root := ask(fmt.Sprintf("Root [%s] > ", c.Root)); root != "" {
		c.Root = root
	}

	return c.Validate()
}

func init() {
	configCmd.AddCommand(setupCmd)
}
