// Command rangepull is a multi-connection HTTP/HTTPS download engine with
// a compact TUI, a scriptable CLI, and a local bridge for browser
// extensions.
package main

import "github.com/rangepull/rangepull/cmd"

func main() {
	cmd.Execute()
}
