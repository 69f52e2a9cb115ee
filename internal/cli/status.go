package cli

import (
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/internal/client"
	"github.com/opsdeck/opsdeck/pkg/api"
)

// statusCmd represents the status command
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Get server status",
	Long: `Get server status. This command returns information about the server,
including version, API version, server time, and the authenticated user ID.

Examples:
  # Get server status
  opsdeck status

  # Get server status in JSON format
  opsdeck status -j`,
	RunE: getStatus,
}

// getStatus handles retrieving server status information
func getStatus(cmd *cobra.Command, args []string) error {
	rt, err := requireRuntime()
	if err != nil {
		return err
	}
	defer rt.Close()

	resp, err := rt.exec.Do(cmd.Context(), client.Request{
		Method: http.MethodGet,
		Path:   "/api/status",
	})
	if err != nil {
		if jsonOutput {
			kv := map[string]string{
				"version_cli": getCLIVersion(),
				"error":       "Unable to connect to server: " + err.Error(),
			}
			printJSON(kv)
		} else {
			fmt.Printf("opsdeck CLI %s\n", getCLIVersion())
			fmt.Println("Error: Unable to connect to server: " + err.Error())
		}
		return ErrAlreadyHandled
	}

	var statusResp api.StatusResponse
	if err := resp.Decode(&statusResp); err != nil {
		return fmt.Errorf("failed to parse response: %v", err)
	}

	if jsonOutput {
		output := map[string]any{
			"result":      1,
			"version_cli": getCLIVersion(),
			"value":       statusResp,
		}
		printJSON(output)
	} else {
		fmt.Printf("opsdeck CLI %s\n", getCLIVersion())
		printStatusPretty(statusResp)
	}

	return nil
}

// printStatusPretty prints the status information in a human-readable format
func printStatusPretty(status api.StatusResponse) {
	fmt.Printf("Server Version: %s\n", status.ServerVersion)
	fmt.Printf("API Version: %s\n", status.APIVersion)
	if status.ServerTime != "" {
		// Parse the server time and convert to local time
		if serverTime, err := time.Parse(time.RFC3339, status.ServerTime); err == nil {
			localTime := serverTime.Local()
			fmt.Printf("Server Time: %s\n", localTime.Format("2006-01-02 15:04:05 MST"))
		} else {
			fmt.Printf("Server Time: %s\n", status.ServerTime)
		}
	}
	if status.UserID != "" {
		fmt.Printf("User ID: %s\n", status.UserID)
	}
}

// init initializes the status command and adds it to the root command
func init() {
	rootCmd.AddCommand(statusCmd)
}
