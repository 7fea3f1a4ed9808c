package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/wardtools/wardprogram/internal/loader"
	"github.com/wardtools/wardprogram/internal/utils"
	"github.com/wardtools/wardprogram/pkg/sheet"
	"github.com/wardtools/wardprogram/pkg/storage"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wardprogram",
	Short: "Render and serve a meeting program from a shared spreadsheet.",
	Long: `wardprogram fetches a meeting program (hymns, speakers, leaders,
announcements) from a Google Sheets CSV export, sanitizes it, and
renders it to your terminal or over HTTP. Programs keep working
offline from the last saved copy.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.wardprogram.yaml)")

	// Global flags
	rootCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default is ~/.config/wardprogram/wardprogram.sqlite)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".wardprogram")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.wardprogram.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("fetch.timeout_seconds", 4)
	viper.SetDefault("server.listen", ":8080")
	viper.SetDefault("server.username", "")
	viper.SetDefault("server.password", "")

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}

// openDB opens the store, degrading to an empty no-op store when
// storage is unavailable. Rendering must keep working either way.
func openDB() *storage.DB {
	override, _ := rootCmd.PersistentFlags().GetString("dbpath")
	path, err := storage.DefaultPath(override)
	if err != nil {
		utils.Log.Warnf("Storage unavailable, continuing without persistence: %v", err)
		return nil
	}
	db, err := storage.Open(path)
	if err != nil {
		utils.Log.Warnf("Storage unavailable, continuing without persistence: %v", err)
		return nil
	}
	return db
}

func newLoader(db *storage.DB) *loader.Loader {
	timeout := time.Duration(viper.GetInt("fetch.timeout_seconds")) * time.Second
	return loader.New(db, sheet.NewClient(timeout))
}
