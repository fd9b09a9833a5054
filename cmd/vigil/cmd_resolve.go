package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"

	"vigil/pkg/feed"

	"github.com/spf13/cobra"
)

// newResolveCmd creates the "vigil resolve" subcommand: the explicit human
// acknowledgement that releases a session from the emergency level.
func newResolveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <session-id>",
		Short: "Release a session from the emergency level",
		Long:  "Sends a RESOLVE message to the running engine. Level 5 is sticky:\nonly this explicit acknowledgement steps the session back down.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths, err := ResolvePaths()
			if err != nil {
				return fmt.Errorf("resolve paths: %w", err)
			}

			reply, err := sendMessage(paths.SocketPath, feed.Message{
				Type:    feed.MsgResolve,
				Resolve: &feed.ResolvePayload{SessionID: args[0]},
			})
			if err != nil {
				return err
			}
			if reply.Type == feed.MsgErr {
				return fmt.Errorf("engine rejected resolve: %s", reply.Ack.Error)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "session %s resolved, level now %d\n",
				args[0], reply.Ack.Level)
			return nil
		},
	}
}

// sendMessage delivers one frame over the feed socket and reads the reply.
func sendMessage(socketPath string, msg feed.Message) (feed.Message, error) {
	conn, err := net.DialTimeout("unix", socketPath, 5*time.Second)
	if err != nil {
		return feed.Message{}, fmt.Errorf("connect to engine (is it running?): %w", err)
	}
	defer func() { _ = conn.Close() }()

	_ = conn.SetDeadline(time.Now().Add(10 * time.Second))

	if err := json.NewEncoder(conn).Encode(msg); err != nil {
		return feed.Message{}, fmt.Errorf("send message: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return feed.Message{}, fmt.Errorf("read reply: %w", err)
		}
		return feed.Message{}, fmt.Errorf("engine closed connection without reply")
	}

	var reply feed.Message
	if err := json.Unmarshal(scanner.Bytes(), &reply); err != nil {
		return feed.Message{}, fmt.Errorf("decode reply: %w", err)
	}
	if reply.Ack == nil {
		return feed.Message{}, fmt.Errorf("reply missing ack payload")
	}
	return reply, nil
}
