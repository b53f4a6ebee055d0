package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/pawdiary/pawdiary/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		"  ____                 ____  _\n" +
		" |  _ \\ __ ___      __|  _ \\(_) __ _ _ __ _   _\n" +
		" | |_) / _` \\ \\ /\\ / /| | | | |/ _` | '__| | | |\n" +
		" |  __/ (_| |\\ V  V / | |_| | | (_| | |  | |_| |\n" +
		" |_|   \\__,_| \\_/\\_/  |____/|_|\\__,_|_|   \\__, |\n" +
		"                                          |___/\n"
)

var rootCmd = &cobra.Command{
	Use:   "pawdiary",
	Short: "PawDiary - companion device diary engine",
	Long:  color.CyanString(logo) + "\nTurns companion-device life events into short daily diary entries.",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func printHeader(title string) {
	fmt.Println(color.CyanString(logo))
	if title != "" {
		fmt.Println(title)
		fmt.Println("─────────────────────")
	}
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(gatewayCmd)
	rootCmd.AddCommand(quotaCmd)
	rootCmd.AddCommand(eventCmd)
}
