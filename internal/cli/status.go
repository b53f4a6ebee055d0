package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pawdiary/pawdiary/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ PawDiary Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 PawDiary Status")
		fmt.Printf("Version: %s\n", version)

		cfgPath, _ := config.ConfigPath()
		if _, err := os.Stat(cfgPath); err == nil {
			fmt.Println("Config:   ✓ Found (" + cfgPath + ")")
		} else {
			fmt.Println("Config:   ✗ Not found (using defaults)")
		}

		cfg, err := config.Load()
		if err != nil {
			fmt.Println("Config:   ✗ Failed to load:", err)
			return
		}

		enabled := 0
		withKey := 0
		for _, p := range cfg.Providers {
			if p.Enabled {
				enabled++
				if p.APIKey != "" {
					withKey++
				}
			}
		}
		fmt.Printf("Providers: %d enabled, %d with API key\n", enabled, withKey)
		fmt.Printf("Categories: %d configured\n", len(cfg.Categories))
		fmt.Printf("Claimed events: %d\n", len(cfg.Claimed))
		fmt.Printf("Quota mode: %s (max %d/day)\n", cfg.Quota.Mode, cfg.Quota.MaxDaily)

		if _, err := os.Stat(cfg.Paths.JournalDB); err == nil {
			fmt.Println("Journal:  ✓ Found (" + cfg.Paths.JournalDB + ")")
		} else {
			fmt.Println("Journal:  ✗ Not created yet")
		}
		if cfg.Intake.Enabled {
			fmt.Printf("Intake:   ✓ Kafka %s topic %s\n", cfg.Intake.Brokers, cfg.Intake.Topic)
		} else {
			fmt.Println("Intake:   ✗ Disabled (admin API injection only)")
		}
		fmt.Println("Status:   Ready")
	},
}
