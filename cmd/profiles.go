package cmd

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/pkg/sheet"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "Manage saved program sources",
}

var profilesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDB()
		defer db.Close()

		ctx := context.Background()
		profiles, err := db.ListProfiles(ctx)
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			fmt.Println("No profiles saved. Add one with: wardprogram profiles add <sheet-url>")
			return nil
		}

		selectedID := ""
		if selected, err := db.GetSelected(ctx); err == nil && selected != nil {
			selectedID = selected.ID
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, " \tID\tUNIT\tSTAKE\tLAST USED\t")
		for _, p := range profiles {
			marker := " "
			if p.ID == selectedID {
				marker = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t\n", marker, p.ID, p.UnitName, p.StakeName, p.LastUsed.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var profilesAddCmd = &cobra.Command{
	Use:   "add <sheet-url>",
	Short: "Add a program source and make it active",
	Long: `Validates the URL, fetches the program once, and saves it as the
active profile. The profile's display names come from the sheet's
unitName and stakeName rows.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		url := args[0]
		if !sheet.IsSheetURL(url) {
			return fmt.Errorf("not a Google Sheets URL: %s", url)
		}

		db := openDB()
		defer db.Close()

		st := newLoader(db).Load(context.Background(), url)
		if st.Status != loader.StatusLoaded {
			return fmt.Errorf("could not load program from %s", url)
		}
		if st.Profile != nil {
			fmt.Printf("Saved profile %q (%s)\n", st.Profile.UnitName, st.Profile.ID)
		}
		return nil
	},
}

var profilesRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a saved profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDB()
		defer db.Close()

		ctx := context.Background()
		if err := db.RemoveProfile(ctx, args[0]); err != nil {
			return err
		}
		if selected, err := db.GetSelected(ctx); err == nil && selected != nil {
			fmt.Printf("Active profile is now %q\n", selected.UnitName)
		} else {
			fmt.Println("No profiles remain.")
		}
		return nil
	},
}

var profilesSelectCmd = &cobra.Command{
	Use:   "select <id>",
	Short: "Make a saved profile the active one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDB()
		defer db.Close()

		ctx := context.Background()
		if err := db.SelectProfile(ctx, args[0]); err != nil {
			return err
		}
		if selected, err := db.GetSelected(ctx); err == nil && selected != nil {
			fmt.Printf("Active profile is now %q\n", selected.UnitName)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(profilesCmd)
	profilesCmd.AddCommand(profilesListCmd)
	profilesCmd.AddCommand(profilesAddCmd)
	profilesCmd.AddCommand(profilesRemoveCmd)
	profilesCmd.AddCommand(profilesSelectCmd)
}
