package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/wardtools/wardprogram/pkg/program"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect or clear the offline program cache",
}

var cacheShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the cached program for the active profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDB()
		defer db.Close()

		ctx := context.Background()
		selected, err := db.GetSelected(ctx)
		if err != nil {
			return err
		}
		if selected == nil {
			fmt.Println("No active profile.")
			return nil
		}

		cached, err := db.LoadRender(ctx, selected.URL)
		if err != nil {
			return err
		}
		if cached == nil {
			fmt.Println("No cached program for the active profile.")
			return nil
		}

		fmt.Printf("Cached %s\n\n", cached.RenderedAt.Format("2006-01-02 15:04"))
		seq := program.DecodeSequence(cached.Payload)
		return program.WriteText(os.Stdout, program.Render(seq))
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop all cached programs",
	RunE: func(cmd *cobra.Command, args []string) error {
		db := openDB()
		defer db.Close()

		if err := db.ClearRenders(context.Background()); err != nil {
			return err
		}
		fmt.Println("Cache cleared.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cacheCmd)
	cacheCmd.AddCommand(cacheShowCmd)
	cacheCmd.AddCommand(cacheClearCmd)
}
