package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var resumeCmd = &cobra.Command{
	Use:   "resume <id>",
	Short: "Resume a paused download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		port := readActivePort()
		if port == 0 {
			fmt.Fprintln(os.Stderr, "rangepull is not running.")
			os.Exit(1)
		}
		id, err := resolvePrefix(port, args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		if err := postCommand(port, "resume", id); err != nil {
			fmt.Fprintf(os.Stderr, "error resuming %s: %v\n", args[0], err)
			os.Exit(1)
		}
		fmt.Printf("Resumed %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(resumeCmd)
}
