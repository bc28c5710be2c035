// Command orchestratorctl is an operator CLI over the Task Orchestration Core's HTTP
// API: submit a task, fetch its state, or cancel it.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var (
		baseURL string
		token   string
	)

	rootCmd := &cobra.Command{
		Use:     "orchestratorctl",
		Short:   "Operator CLI for the task orchestration core",
		Version: "dev",
	}
	rootCmd.PersistentFlags().StringVar(&baseURL, "url", "http://127.0.0.1:8080", "orchestratord API base URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("ORCHESTRATOR_API_TOKEN"), "bearer token for write endpoints")

	rootCmd.AddCommand(submitCmd(&baseURL, &token))
	rootCmd.AddCommand(getCmd(&baseURL, &token))
	rootCmd.AddCommand(cancelCmd(&baseURL, &token))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

type client struct {
	baseURL string
	token   string
	http    *http.Client
}

func newClient(baseURL, token string) *client {
	return &client{baseURL: baseURL, token: token, http: &http.Client{Timeout: 10 * time.Second}}
}

func (c *client) do(ctx context.Context, method, path string, body any) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, 0, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	return data, resp.StatusCode, nil
}

func submitCmd(baseURL, token *string) *cobra.Command {
	var (
		userID           string
		title            string
		description      string
		typeHint         string
		overrideStrategy string
		priority         int
		clientToken      string
	)

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a new task",
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			body := map[string]any{
				"user_id":           userID,
				"title":             title,
				"description":       description,
				"type_hint":         typeHint,
				"override_strategy": overrideStrategy,
				"priority":          priority,
				"client_token":      clientToken,
			}
			data, status, err := c.do(cmd.Context(), http.MethodPost, "/tasks", body)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("submit failed (status %d): %s", status, string(data))
			}
			fmt.Println(string(data))
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user-id", "", "submitting user id")
	cmd.Flags().StringVar(&title, "title", "", "task title (required)")
	cmd.Flags().StringVar(&description, "description", "", "task description")
	cmd.Flags().StringVar(&typeHint, "type-hint", "", "optional type hint (e.g. bug-fix, feature)")
	cmd.Flags().StringVar(&overrideStrategy, "override-strategy", "", "force a strategy (SingleShot, Iterative, MultiAgent)")
	cmd.Flags().IntVar(&priority, "priority", 0, "priority 0-3")
	cmd.Flags().StringVar(&clientToken, "client-token", "", "idempotency key for repeated submits")
	cmd.MarkFlagRequired("title")
	return cmd
}

func getCmd(baseURL, token *string) *cobra.Command {
	return &cobra.Command{
		Use:   "get <task-id>",
		Short: "Fetch a task's current state",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			data, status, err := c.do(cmd.Context(), http.MethodGet, "/tasks/"+args[0], nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("get failed (status %d): %s", status, string(data))
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func cancelCmd(baseURL, token *string) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <task-id>",
		Short: "Request cancellation of a running task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(*baseURL, *token)
			data, status, err := c.do(cmd.Context(), http.MethodPost, "/tasks/"+args[0]+"/cancel", nil)
			if err != nil {
				return err
			}
			if status >= 300 {
				return fmt.Errorf("cancel failed (status %d): %s", status, string(data))
			}
			fmt.Println(string(data))
			return nil
		},
	}
}
