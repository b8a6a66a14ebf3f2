package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rangepull/rangepull/internal/utils"
)

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List downloads on the running instance",
	Run: func(cmd *cobra.Command, args []string) {
		jsonOutput, _ := cmd.Flags().GetBool("json")

		port := readActivePort()
		if port == 0 {
			fmt.Fprintln(os.Stderr, "rangepull is not running.")
			os.Exit(1)
		}

		tasks, err := fetchList(port)
		if err != nil {
			fmt.Fprintf(os.Stderr, "error listing downloads: %v\n", err)
			os.Exit(1)
		}

		if jsonOutput {
			data, _ := json.MarshalIndent(tasks, "", "  ")
			fmt.Println(string(data))
			return
		}

		if len(tasks) == 0 {
			fmt.Println("No downloads.")
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tFILENAME\tSTATUS\tPROGRESS\tSIZE\tSPEED")
		for _, t := range tasks {
			progress := "-"
			size := "-"
			if t.TotalBytes != nil && *t.TotalBytes > 0 {
				progress = fmt.Sprintf("%.1f%%", float64(t.Downloaded)*100/float64(*t.TotalBytes))
				size = utils.HumanBytes(*t.TotalBytes)
			}
			speed := "-"
			if t.Speed > 0 {
				speed = utils.HumanBytes(int64(t.Speed)) + "/s"
			}
			id := t.ID
			if len(id) > 8 {
				id = id[:8]
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", id, t.Filename, t.Status, progress, size, speed)
		}
		w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(lsCmd)
	lsCmd.Flags().Bool("json", false, "Output as JSON")
}
