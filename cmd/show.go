package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/pkg/program"
)

// showCmd fetches and prints the active program.
var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Fetch the active program and print it",
	Long: `Fetches the program from the active profile's sheet (or --url) and
prints it. When the fetch fails, the last saved copy is shown instead
with an offline notice.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		url, _ := cmd.Flags().GetString("url")

		db := openDB()
		defer db.Close()

		st := newLoader(db).Load(context.Background(), url)

		switch st.Status {
		case loader.StatusNoSource:
			fmt.Println(st.Message)
			return nil
		case loader.StatusLoadFailedNoCache:
			fmt.Println(st.Message)
			return nil
		}

		if st.Offline {
			fmt.Println("[offline] Showing the last saved program.")
			fmt.Println()
		}
		return program.WriteText(os.Stdout, st.Nodes)
	},
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().String("url", "", "Load this sheet URL instead of the active profile")
}
