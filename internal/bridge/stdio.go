package bridge

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rangepull/rangepull/internal/engine"
	"github.com/rangepull/rangepull/internal/utils"
)

// stdioResponse is the reply shape the helper expects back on stdout.
type stdioResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ServeOnce reads exactly one length-prefixed JSON request from r,
// dispatches it, and writes exactly one length-prefixed JSON response to
// w: 4-byte little-endian payload length, then the UTF-8 JSON body,
// framed identically in both directions (§6 "Stdio helper"). A short-
// lived companion process is expected to invoke this once per run.
func ServeOnce(ctx context.Context, r io.Reader, w io.Writer, commands *engine.Commands) error {
	req, err := readFrame(r)
	if err != nil {
		if err == errMessageTooLarge {
			return writeFrame(w, stdioResponse{Success: false, Message: "message too large"})
		}
		utils.Debug("bridge stdio: read failed: %v", err)
		return err
	}

	var parsed Request
	if err := json.Unmarshal(req, &parsed); err != nil {
		return writeFrame(w, stdioResponse{Success: false, Message: "invalid json"})
	}

	ok, msg := handle(ctx, commands, parsed)
	return writeFrame(w, stdioResponse{Success: ok, Message: msg})
}

var errMessageTooLarge = fmt.Errorf("message exceeds %d bytes", MaxMessageBytes)

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, fmt.Errorf("reading frame length: %w", err)
	}
	n := binary.LittleEndian.Uint32(lenBuf[:])
	if n > MaxMessageBytes {
		return nil, errMessageTooLarge
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("reading frame payload: %w", err)
	}
	return payload, nil
}

func writeFrame(w io.Writer, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var lenBuf [4]byte
	binary.LittleEndian.PutUint32(lenBuf[:], uint32(len(body)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err = w.Write(body)
	return err
}
