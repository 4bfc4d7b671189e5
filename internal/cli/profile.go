package cli

import (
	"fmt"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Inspect connection profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show one profile (default profile when no name is given)",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runProfileShow,
}

func init() {
	profileCmd.AddCommand(profileListCmd)
	profileCmd.AddCommand(profileShowCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "\tNAME\tTRANSPORT\tWORKSPACE")
	for _, name := range cfg.ProfileNames() {
		p, _ := cfg.Profile(name)
		marker := ""
		if name == cfg.DefaultProfile {
			marker = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", marker, p.Name, p.Transport, orDefault(p.Workspace, "default"))
	}
	return w.Flush()
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	name := profileName
	if len(args) == 1 {
		name = args[0]
	}
	p, err := cfg.Profile(name)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Name\t%s\n", p.Name)
	fmt.Fprintf(w, "Transport\t%s\n", p.Transport)
	if p.DSN != "" {
		fmt.Fprintf(w, "DSN\t%s\n", p.DSN)
	}
	fmt.Fprintf(w, "Workspace\t%s\n", orDefault(p.Workspace, "default"))
	fmt.Fprintf(w, "User\t%s\n", orDefault(p.UserID, "anonymous"))
	fmt.Fprintf(w, "Read-only\t%t\n", p.ReadOnly)

	keys := make([]string, 0, len(p.Attributes))
	for k := range p.Attributes {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(w, "Attribute\t%s=%s\n", k, p.Attributes[k])
	}
	return w.Flush()
}

func orDefault(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
