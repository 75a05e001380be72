package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"comicshelf/internal/events"
)

func newWatchCommand() *cobra.Command {
	var apiURL, tcpAddr string
	var raw bool
	cmd := &cobra.Command{
		Use:         "watch",
		Short:       "Stream status changes and import results from a running server",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{"skipAppLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if tcpAddr != "" {
				return watchTCP(cmd.Context(), tcpAddr, out, raw)
			}
			endpoint, err := websocketURL(apiURL, "/ws")
			if err != nil {
				return err
			}
			return watchWebSocket(cmd.Context(), endpoint, out, raw)
		},
	}
	cmd.Flags().StringVar(&apiURL, "url", "http://localhost:8080", "API server base URL")
	cmd.Flags().StringVar(&tcpAddr, "tcp", "", "Read the TCP event feed at this address instead of the WebSocket")
	cmd.Flags().BoolVar(&raw, "raw", false, "Print events as received")
	return cmd
}

func websocketURL(base, path string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid api url: %w", err)
	}
	switch u.Scheme {
	case "http", "":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("api url %q has no host", base)
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func watchWebSocket(ctx context.Context, endpoint string, out io.Writer, raw bool) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", endpoint, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		fmt.Fprintln(out, describeEvent(msg, raw))
	}
}

func watchTCP(ctx context.Context, addr string, out io.Writer, raw bool) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		fmt.Fprintln(out, describeEvent(scanner.Bytes(), raw))
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return io.EOF
}

// describeEvent renders known events as one line and passes anything else through.
func describeEvent(msg []byte, raw bool) string {
	if raw {
		return string(msg)
	}
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(msg, &head); err != nil {
		return string(msg)
	}

	switch head.Type {
	case events.TypeWelcome:
		var ev events.Welcome
		if json.Unmarshal(msg, &ev) == nil {
			return fmt.Sprintf("connected over %s (%d subscribers)", ev.Transport, ev.Clients)
		}
	case events.TypeComicStatus:
		var ev events.ComicStatus
		if json.Unmarshal(msg, &ev) == nil {
			return fmt.Sprintf("comic %d %s #%s is now %s", ev.ComicID, ev.Series, ev.IssueNumber, ev.Status)
		}
	case events.TypeImportCompleted:
		var ev events.ImportCompleted
		if json.Unmarshal(msg, &ev) == nil {
			return fmt.Sprintf("import %s: %d rows, %d created, %d updated, %d unchanged, %d skipped",
				ev.RunID, ev.Rows, ev.Created, ev.Updated, ev.Unchanged, ev.Skipped)
		}
	}
	return string(msg)
}
