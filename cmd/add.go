package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rangepull/rangepull/internal/clipboard"
)

var addCmd = &cobra.Command{
	Use:     "add [url]...",
	Aliases: []string{"get"},
	Short:   "Queue one or more downloads on the running instance",
	Args:    cobra.ArbitraryArgs,
	Run: func(cmd *cobra.Command, args []string) {
		batchFile, _ := cmd.Flags().GetString("batch")
		saveDir, _ := cmd.Flags().GetString("output")
		fromClipboard, _ := cmd.Flags().GetBool("clipboard")

		var urls []string
		urls = append(urls, args...)

		if batchFile != "" {
			fileURLs, err := readURLsFromFile(batchFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error reading batch file: %v\n", err)
				os.Exit(1)
			}
			urls = append(urls, fileURLs...)
		}

		if fromClipboard {
			u := clipboard.ReadURL()
			if u == "" {
				fmt.Fprintln(os.Stderr, "clipboard does not contain a downloadable URL")
				os.Exit(1)
			}
			urls = append(urls, u)
		}

		if len(urls) == 0 {
			cmd.Help()
			return
		}

		port := readActivePort()
		if port == 0 {
			fmt.Fprintln(os.Stderr, "rangepull is not running.")
			fmt.Fprintln(os.Stderr, "Use 'rangepull' to start it first.")
			os.Exit(1)
		}

		added := 0
		for _, u := range urls {
			id, err := sendAdd(port, u, saveDir)
			if err != nil {
				fmt.Fprintf(os.Stderr, "error adding %s: %v\n", u, err)
				continue
			}
			fmt.Printf("Added %s (%s)\n", u, id[:8])
			added++
		}
		if added > 0 {
			fmt.Printf("Queued %d download(s).\n", added)
		}
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
	addCmd.Flags().StringP("batch", "b", "", "File containing URLs to download, one per line")
	addCmd.Flags().StringP("output", "o", "", "Destination directory")
	addCmd.Flags().Bool("clipboard", false, "Queue the URL currently on the system clipboard")
}
