package cli

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/opsdeck/opsdeck/internal/client"
	"github.com/opsdeck/opsdeck/pkg/api"
)

// Resource kinds addressable from the CLI.
const (
	KindTopics = "topics"
	KindUsers  = "users"
)

// ValidateResourceKind reports whether kind names an addressable resource.
func ValidateResourceKind(kind string) bool {
	switch kind {
	case KindTopics, KindUsers:
		return true
	default:
		return false
	}
}

// newListCmd creates and returns a new list command
func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <topics|users>",
		Short: "List resources of a given kind",
		Long: `List resources of a given kind.

Examples:
  # List all topics
  opsdeck list topics

  # List all users as JSON
  opsdeck list users -j`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if !ValidateResourceKind(kind) {
				return fmt.Errorf("unknown resource kind: %s", kind)
			}

			rt, err := requireRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.exec.Do(cmd.Context(), client.Request{
				Method: http.MethodGet,
				Path:   "/api/" + kind,
			})
			if err != nil {
				return err
			}

			if jsonOutput || resp.Empty() {
				printRawJSON(resp)
				return nil
			}

			switch kind {
			case KindTopics:
				var topics []api.Topic
				if err := resp.Decode(&topics); err != nil {
					return fmt.Errorf("failed to parse response: %v", err)
				}
				for _, t := range topics {
					fmt.Println(t.Name)
				}
			case KindUsers:
				var users []api.User
				if err := resp.Decode(&users); err != nil {
					return fmt.Errorf("failed to parse response: %v", err)
				}
				for _, u := range users {
					fmt.Printf("%s\t%s\t%s\n", u.Username, u.Email, u.Role)
				}
			}
			return nil
		},
	}
}

// newGetCmd creates and returns a new get command
func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <topics|users> <name>",
		Short: "Get a single resource",
		Long: `Get a single resource by name.

Examples:
  # Fetch one topic
  opsdeck get topics orders

  # Fetch one user
  opsdeck get users admin`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := args[0]
			if !ValidateResourceKind(kind) {
				return fmt.Errorf("unknown resource kind: %s", kind)
			}

			rt, err := requireRuntime()
			if err != nil {
				return err
			}
			defer rt.Close()

			resp, err := rt.exec.Do(cmd.Context(), client.Request{
				Method: http.MethodGet,
				Path:   "/api/" + kind + "/" + args[1],
			})
			if err != nil {
				return err
			}

			printRawJSON(resp)
			return nil
		},
	}
}

// printRawJSON pretty-prints a JSON response body, or notes the absence of one.
func printRawJSON(resp *client.Response) {
	if resp.Empty() {
		fmt.Println("No content")
		return
	}
	if resp.IsJSON() {
		var buf any
		if err := resp.Decode(&buf); err == nil {
			printJSON(buf)
			return
		}
	}
	fmt.Fprintln(os.Stdout, string(resp.Body))
}

func init() {
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newGetCmd())
}
