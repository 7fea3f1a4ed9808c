package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/wardtools/wardprogram/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the program web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		if listenAddr == "" {
			listenAddr = viper.GetString("server.listen")
		}

		db := openDB()
		defer db.Close()

		srv, err := server.New(db, newLoader(db),
			viper.GetString("server.username"),
			viper.GetString("server.password"))
		if err != nil {
			return err
		}
		return srv.Start(listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default from config, :8080)")
}
