package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"strings"
	"time"
)

func dial(ctx context.Context, socketPath string) (net.Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", socketPath, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(DefaultReadTimeout))
	}
	return conn, nil
}

// Send delivers one notification line, e.g. "layout changed".
func Send(ctx context.Context, socketPath, line string) error {
	conn, err := dial(ctx, socketPath)
	if err != nil {
		return err
	}
	defer conn.Close()

	line = strings.TrimRight(line, "\r\n") + "\n"
	if _, err := conn.Write([]byte(line)); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}
	return nil
}

// Query asks a running daemon for its tree.
func Query(ctx context.Context, socketPath string) (StatusReply, error) {
	conn, err := dial(ctx, socketPath)
	if err != nil {
		return StatusReply{}, err
	}
	defer conn.Close()

	if _, err := conn.Write([]byte("status\n")); err != nil {
		return StatusReply{}, fmt.Errorf("send status request: %w", err)
	}
	var reply StatusReply
	if err := json.NewDecoder(conn).Decode(&reply); err != nil {
		return StatusReply{}, fmt.Errorf("read status reply: %w", err)
	}
	return reply, nil
}
