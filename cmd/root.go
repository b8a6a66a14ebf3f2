package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rangepull/rangepull/internal/bridge"
	"github.com/rangepull/rangepull/internal/config"
	"github.com/rangepull/rangepull/internal/engine"
	"github.com/rangepull/rangepull/internal/tui"
	"github.com/rangepull/rangepull/internal/utils"
)

// Version is set via ldflags at build time.
var Version = "dev"

var rootCmd = &cobra.Command{
	Use:     "rangepull",
	Short:   "A multi-connection HTTP/HTTPS download engine",
	Long:    "rangepull splits range-supporting downloads across concurrent connections, resumes across restarts, and exposes a small command surface for scripting and browser integration.",
	Version: Version,
	Run:     runRoot,
}

func runRoot(cmd *cobra.Command, args []string) {
	isMaster, err := AcquireLock()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error acquiring lock: %v\n", err)
		os.Exit(1)
	}
	if !isMaster {
		fmt.Fprintln(os.Stderr, "rangepull is already running.")
		fmt.Fprintln(os.Stderr, "Use 'rangepull add <url>' to queue a download on the running instance.")
		os.Exit(1)
	}
	defer ReleaseLock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	opts, err := config.LoadOptions(config.GetSettingsPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading settings: %v\n", err)
		os.Exit(1)
	}
	cfg := &engine.RuntimeConfig{
		MaxConnectionsPerTask: opts.MaxConnections(),
		ProxyURL:              opts.Proxy(),
		Timeout:               opts.Timeout(),
		SnapshotInterval:      opts.SnapshotInterval(),
		DefaultSaveDir:        opts.DefaultSavePath,
	}
	sched := engine.NewScheduler(cfg, nil, config.GetSnapshotPath())
	if err := sched.LoadFromSnapshot(); err != nil {
		fmt.Fprintf(os.Stderr, "error loading snapshot: %v\n", err)
		os.Exit(1)
	}
	go sched.Run(ctx)

	if balance, _ := cmd.Flags().GetBool("balance"); balance {
		go engine.NewBalancer(sched, 0).Run(ctx)
	}

	commands := engine.NewCommands(sched)

	cmdLn, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		fmt.Fprintf(os.Stderr, "error starting command server: %v\n", err)
		os.Exit(1)
	}
	writePortFile(config.GetCommandPortPath(), cmdLn.Addr().(*net.TCPAddr).Port)
	defer os.Remove(config.GetCommandPortPath())

	srv := newCommandServer(commands)
	go func() {
		if err := (&httpServer{ln: cmdLn, handler: srv.mux()}).serve(ctx); err != nil {
			utils.Debug("command server error: %v", err)
		}
	}()

	tcpBridge, err := bridge.NewTCPServer(config.GetNativeHostPortPath(), commands)
	if err != nil {
		utils.Debug("bridge tcp server unavailable: %v", err)
	} else {
		defer tcpBridge.Close()
		go func() {
			if err := tcpBridge.Serve(ctx); err != nil {
				utils.Debug("bridge tcp server error: %v", err)
			}
		}()
	}

	headless, _ := cmd.Flags().GetBool("headless")
	if headless {
		fmt.Printf("rangepull %s running in headless mode.\n", Version)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nshutting down...")
		return
	}

	if err := tui.Run(ctx, sched, Version); err != nil {
		os.Exit(1)
	}
}

func writePortFile(path string, port int) {
	if err := os.WriteFile(path, []byte(fmt.Sprintf("%d", port)), 0644); err != nil {
		utils.Debug("failed to write port file %s: %v", path, err)
	}
}

// Execute runs the root command, adding every subcommand registered via
// their own init().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.Flags().Bool("headless", false, "Run without the interactive TUI")
	rootCmd.Flags().Bool("balance", false, "Enable dynamic segment splitting across idle workers within a task")
	rootCmd.SetVersionTemplate("rangepull version {{.Version}}\n")
}
