package bridge

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"path/filepath"

	"github.com/rangepull/rangepull/internal/engine"
	"github.com/rangepull/rangepull/internal/utils"
)

// tcpResponse is the single-line reply shape for the TCP listener.
type tcpResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// TCPServer is the long-lived counterpart to the stdio helper: it binds
// an ephemeral localhost port, publishes it to a well-known sibling file
// so a short-lived companion process can find it, and serves one
// newline-delimited JSON request per connection (§6 "Local TCP listener").
type TCPServer struct {
	listener net.Listener
	commands *engine.Commands
	portFile string
}

// NewTCPServer binds 127.0.0.1:0 and writes the chosen port to portFile.
func NewTCPServer(portFile string, commands *engine.Commands) (*TCPServer, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("bridge: failed to bind local listener: %w", err)
	}

	port := ln.Addr().(*net.TCPAddr).Port
	if err := os.MkdirAll(filepath.Dir(portFile), 0755); err != nil {
		ln.Close()
		return nil, fmt.Errorf("bridge: failed to create port file directory: %w", err)
	}
	if err := os.WriteFile(portFile, []byte(fmt.Sprintf("%d", port)), 0644); err != nil {
		ln.Close()
		return nil, fmt.Errorf("bridge: failed to write port file: %w", err)
	}

	return &TCPServer{listener: ln, commands: commands, portFile: portFile}, nil
}

// Addr returns the bound local address.
func (s *TCPServer) Addr() net.Addr { return s.listener.Addr() }

// Serve accepts connections until ctx is cancelled or the listener errors.
// Each connection is handled on its own goroutine and closed after one
// request, mirroring the companion process's connect-send-read-close cycle.
func (s *TCPServer) Serve(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		s.listener.Close()
	}()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return err
			}
		}
		go s.handleConn(ctx, conn)
	}
}

// Close releases the listener and removes the port file.
func (s *TCPServer) Close() error {
	err := s.listener.Close()
	os.Remove(s.portFile)
	return err
}

func (s *TCPServer) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 4096), MaxMessageBytes)
	if !scanner.Scan() {
		return
	}

	var req Request
	resp := tcpResponse{}
	if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
		resp.Error = "invalid json"
	} else {
		ok, msg := handle(ctx, s.commands, req)
		resp.OK = ok
		if !ok {
			resp.Error = msg
		}
	}

	body, err := json.Marshal(resp)
	if err != nil {
		utils.Debug("bridge tcp: failed to marshal response: %v", err)
		return
	}
	body = append(body, '\n')
	if _, err := conn.Write(body); err != nil {
		utils.Debug("bridge tcp: failed to write response: %v", err)
	}
}
