// Package console is a line-oriented websocket client for a roomhub server:
// stdin lines go out as text frames, received text is printed.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/websocket"
)

// Options configures Run.
type Options struct {
	// URL of the websocket endpoint, e.g. ws://127.0.0.1:8080/ws/.
	URL          string
	PingInterval time.Duration
	In           io.Reader
	Out          io.Writer
}

// Complete fills in defaults.
func (o *Options) Complete() {
	if o.PingInterval <= 0 {
		o.PingInterval = 4 * time.Second
	}
}

// Run connects and relays until stdin ends, the server closes the
// connection or ctx is done.
func Run(ctx context.Context, opts Options) error {
	opts.Complete()
	logger := logr.FromContextOrDiscard(ctx)

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, opts.URL, nil)
	if err != nil {
		return fmt.Errorf("connect to %q error: %w", opts.URL, err)
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	defer func() { _ = conn.Close() }()
	logger.Info("connected", "url", opts.URL)

	conn.SetPongHandler(func(string) error {
		logger.V(1).Info("pong received")
		return nil
	})

	readDone := make(chan error, 1)
	go func() {
		readDone <- dispatch(conn, opts.Out)
	}()

	lines := make(chan string)
	stop := make(chan struct{})
	defer close(stop)
	go scanLines(opts.In, lines, stop)

	ticker := time.NewTicker(opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return closeGracefully(conn, readDone)

		case err := <-readDone:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("receive error: %w", err)

		case line, ok := <-lines:
			if !ok {
				return closeGracefully(conn, readDone)
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
				return fmt.Errorf("send error: %w", err)
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, []byte("1"), time.Now().Add(time.Second)); err != nil {
				return fmt.Errorf("ping error: %w", err)
			}
		}
	}
}

// dispatch prints incoming frames until the connection fails or closes.
func dispatch(conn *websocket.Conn, out io.Writer) error {
	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			return err
		}
		switch messageType {
		case websocket.TextMessage:
			_, _ = fmt.Fprintf(out, "Text: %s\n", strings.TrimSpace(string(data)))
		case websocket.BinaryMessage:
			_, _ = fmt.Fprintf(out, "Binary: %v\n", data)
		}
	}
}

func scanLines(in io.Reader, lines chan<- string, stop <-chan struct{}) {
	defer close(lines)
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		select {
		case lines <- scanner.Text():
		case <-stop:
			return
		}
	}
}

// closeGracefully sends a close frame and waits briefly for the server's
// reply before giving up.
func closeGracefully(conn *websocket.Conn, readDone <-chan error) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	select {
	case <-readDone:
	case <-time.After(time.Second):
	}
	return nil
}
