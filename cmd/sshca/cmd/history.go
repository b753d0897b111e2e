package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nmelo/sshca/pkg/store"
	"github.com/nmelo/sshca/pkg/timeutil"
)

var (
	historyLimit int
	historyDB    string
)

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of entries to show (0 = all)")
	historyCmd.Flags().StringVar(&historyDB, "db", "", "History database path (default: ~/.local/share/sshca/issuances.db)")
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List issued certificates",
	Long: `List certificates recorded in the local issuance history.

The history is advisory: it records what this machine issued, it is not
consulted during signing and grants nothing.

Examples:
  sshca history
  sshca history --limit 0 -o json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := historyDB
		if path == "" {
			path = store.DefaultPath()
		}

		s, err := store.Open(path)
		if err != nil {
			return err
		}
		defer s.Close()

		issuances, err := s.List(historyLimit)
		if err != nil {
			return err
		}

		if outputFormat != "table" {
			if issuances == nil {
				issuances = []*store.Issuance{}
			}
			return formatOutput(issuances)
		}

		if len(issuances) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No certificates issued yet.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tKEY ID\tPRINCIPALS\tFINGERPRINT\tISSUED\tEXPIRY")
		for _, iss := range issuances {
			principals := strings.Join(iss.Principals, ",")
			if principals == "" {
				principals = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				iss.ID, iss.KeyID, principals, iss.Fingerprint,
				timeutil.RelativeTime(iss.CreatedAt),
				timeutil.FormatExpiration(iss.ValidBefore))
		}
		w.Flush()
		return nil
	},
}
