package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat <user-id> <message...>",
	Short: "Send one message to the companion and print the reply",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		userID := args[0]
		message := strings.Join(args[1:], " ")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post(cmd.Context(), "/student/chat", map[string]any{
			"user_id": userID,
			"message": message,
		})
		if err != nil {
			return err
		}

		var result struct {
			Response        string `json:"response"`
			Mode            string `json:"mode"`
			ProfileUpdated  bool   `json:"profile_updated"`
			Recommendations []struct {
				Title  string `json:"title"`
				Reason string `json:"reason"`
			} `json:"recommendations"`
		}
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colorize(colorCyan, "["+result.Mode+"]"), result.Response)
		if result.ProfileUpdated {
			printSuccess("Profile updated")
		}
		for _, rec := range result.Recommendations {
			fmt.Printf("  %s %s\n", colorize(colorBold, rec.Title+":"), rec.Reason)
		}
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile <user-id>",
	Short: "Show a learner's profile as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), "/api/profile/"+args[0])
		if err != nil {
			return err
		}

		var profile any
		if err := decodeJSON(resp, &profile); err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(profile)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show agent usage statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		days, _ := cmd.Flags().GetInt("days")

		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get(cmd.Context(), fmt.Sprintf("/api/stats?days=%d", days))
		if err != nil {
			return err
		}

		var stats struct {
			TotalRequests      int     `json:"total_requests"`
			AvgExecutionTimeMS float64 `json:"avg_execution_time_ms"`
			SuccessRate        float64 `json:"success_rate"`
		}
		if err := decodeJSON(resp, &stats); err != nil {
			return err
		}

		printStatus("Requests", "%d", stats.TotalRequests)
		printStatus("Avg latency", "%.0f ms", stats.AvgExecutionTimeMS)
		printStatus("Success rate", "%.1f%%", stats.SuccessRate*100)
		return nil
	},
}

func init() {
	statsCmd.Flags().Int("days", 7, "trailing window in days")
}
