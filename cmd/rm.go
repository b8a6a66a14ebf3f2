package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rmCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"remove"},
	Short:   "Remove a download, or clear all completed downloads with --clean",
	Args:    cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		clean, _ := cmd.Flags().GetBool("clean")
		if !clean && len(args) == 0 {
			fmt.Fprintln(os.Stderr, "error: provide a download ID or use --clean")
			os.Exit(1)
		}

		port := readActivePort()
		if port == 0 {
			fmt.Fprintln(os.Stderr, "rangepull is not running.")
			os.Exit(1)
		}

		if clean {
			if err := postCommand(port, "clear-completed", ""); err != nil {
				fmt.Fprintf(os.Stderr, "error clearing completed downloads: %v\n", err)
				os.Exit(1)
			}
			fmt.Println("Cleared completed downloads.")
			return
		}

		id, err := resolvePrefix(port, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := postCommand(port, "rm", id); err != nil {
			fmt.Fprintf(os.Stderr, "error removing %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Removed %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(rmCmd)
	rmCmd.Flags().Bool("clean", false, "Remove all completed downloads")
}
