package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pawdiary/pawdiary/internal/config"
	"github.com/pawdiary/pawdiary/internal/quota"
)

// adminCall hits the running gateway's admin API.
func adminCall(method, path string, body []byte) (json.RawMessage, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("http://%s:%d%s", cfg.Gateway.Host, cfg.Gateway.Port, path)

	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	if cfg.Gateway.APIToken != "" {
		req.Header.Set("Authorization", "Bearer "+cfg.Gateway.APIToken)
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("is the gateway running? %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var parsed struct {
		Success bool            `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("bad gateway response: %s", string(data))
	}
	if !parsed.Success {
		return nil, fmt.Errorf("gateway error: %s", parsed.Error)
	}
	return parsed.Data, nil
}

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Inspect or reset today's diary quota",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var quotaShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the current quota snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := adminCall(http.MethodGet, "/api/v1/quota", nil)
		if err != nil {
			return err
		}
		var snap quota.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		printHeader("📔 Daily Quota")
		fmt.Printf("Day:        %s\n", snap.Day)
		fmt.Printf("Mode:       %s\n", snap.Mode)
		fmt.Printf("Quota:      %d total, %s remaining\n",
			snap.TotalQuota, color.GreenString("%d", snap.Remaining))
		if len(snap.CompletedCategories) > 0 {
			fmt.Printf("Completed:  %v\n", snap.CompletedCategories)
		}
		if len(snap.Preselected) > 0 {
			fmt.Printf("Preselected: %v\n", snap.Preselected)
		}
		return nil
	},
}

var quotaResetValue int

var quotaResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Force a quota reset for today",
	RunE: func(cmd *cobra.Command, args []string) error {
		var body []byte
		if cmd.Flags().Changed("quota") {
			body, _ = json.Marshal(map[string]int{"quota": quotaResetValue})
		}
		data, err := adminCall(http.MethodPost, "/api/v1/quota/reset", body)
		if err != nil {
			return err
		}
		var snap quota.Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Quota reset."), "New total:", snap.TotalQuota)
		return nil
	},
}

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Inject a life event into the running engine",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

var eventSendFile string

var eventSendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send an event payload (JSON file or stdin) to the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		var payload []byte
		var err error
		if eventSendFile != "" {
			payload, err = os.ReadFile(eventSendFile)
		} else {
			payload, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		data, err := adminCall(http.MethodPost, "/api/v1/events", payload)
		if err != nil {
			return err
		}
		var resp struct {
			EventID string `json:"eventId"`
			Status  string `json:"status"`
		}
		if err := json.Unmarshal(data, &resp); err != nil {
			return err
		}
		fmt.Println(color.GreenString("Event %s %s", resp.EventID, resp.Status))
		return nil
	},
}

func init() {
	quotaResetCmd.Flags().IntVar(&quotaResetValue, "quota", 0, "explicit quota instead of a random draw")
	quotaCmd.AddCommand(quotaShowCmd)
	quotaCmd.AddCommand(quotaResetCmd)

	eventSendCmd.Flags().StringVarP(&eventSendFile, "file", "f", "", "event JSON file (default: stdin)")
	eventCmd.AddCommand(eventSendCmd)
}
