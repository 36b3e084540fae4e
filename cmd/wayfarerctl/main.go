package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	apiFlag  string
	userFlag string
	rootCmd  = &cobra.Command{
		Use:   "wayfarerctl",
		Short: "CLI client for the wayfarer gateway REST API",
	}
)

func main() {
	rootCmd.PersistentFlags().StringVarP(&apiFlag, "api", "a", "http://localhost:8080", "Gateway base URL")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User ID")

	chatCmd := &cobra.Command{
		Use:   "chat [message]",
		Short: "Send a chat message to the assistant queue",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return runChat(apiFlag, userFlag, args[0], os.Stdout)
		},
	}
	rootCmd.AddCommand(chatCmd)

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's durable conversation history",
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return runHistory(apiFlag, userFlag, limit, os.Stdout)
		},
	}
	historyCmd.Flags().IntP("limit", "n", 20, "Maximum turns to return")
	rootCmd.AddCommand(historyCmd)

	searchCmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a user's long-term memory by similarity",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			k, _ := cmd.Flags().GetInt("top")
			if userFlag == "" {
				return fmt.Errorf("--user required")
			}
			return runSearch(apiFlag, userFlag, args[0], k, os.Stdout)
		},
	}
	searchCmd.Flags().IntP("top", "k", 5, "Maximum results to return")
	rootCmd.AddCommand(searchCmd)

	healthCmd := &cobra.Command{
		Use:   "health",
		Short: "Check gateway health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHealth(apiFlag, os.Stdout)
		},
	}
	rootCmd.AddCommand(healthCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
