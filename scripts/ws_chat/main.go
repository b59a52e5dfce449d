package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/chatroom-server/internal/proto"
)

type options struct {
	addr   string
	token  string
	userID int64
	roomID int64
	once   string
}

// envelope is an outbound message with undecoded data.
type envelope struct {
	Type  string          `json:"type"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func main() {
	var opts options

	cmd := &cobra.Command{
		Use:   "ws_chat",
		Short: "Interactive chatroom client; --once sends one message and waits for the ack",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts)
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&opts.addr, "addr", "ws://localhost:8080/ws", "WebSocket address")
	flags.StringVar(&opts.token, "token", "", "JWT from /api/login; registers the connection")
	flags.Int64Var(&opts.userID, "user", 0, "your user id; sent as senderId and registered when no token is given")
	flags.Int64Var(&opts.roomID, "room", 0, "chatroom id to join")
	flags.StringVar(&opts.once, "once", "", "send this message, wait for MessageSent and exit")
	_ = cmd.MarkFlagRequired("room")
	_ = cmd.MarkFlagRequired("user")

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func send(ctx context.Context, conn *websocket.Conn, typ string, data any) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", typ, err)
	}
	return wsjson.Write(ctx, conn, proto.Inbound{Type: typ, Data: raw})
}

func run(ctx context.Context, opts options) error {
	addr := opts.addr
	if opts.token != "" {
		addr += "?token=" + url.QueryEscape(opts.token)
	}

	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	if opts.token == "" {
		if err := send(ctx, conn, proto.InboundRegisterUser, proto.RegisterUserData{UserID: proto.ID(opts.userID)}); err != nil {
			return err
		}
	}
	if err := send(ctx, conn, proto.InboundJoinChatroom, proto.RoomData{RoomID: proto.ID(opts.roomID)}); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- readLoop(ctx, conn, opts.once != "")
		cancel()
	}()

	if opts.once != "" {
		if err := sendMessage(ctx, conn, opts, opts.once); err != nil {
			return err
		}
		return <-done
	}

	fmt.Printf("Joined room %d. Type messages and press Enter to send. Ctrl+C to exit.\n", opts.roomID)
	writeLoop(ctx, conn, opts)
	return nil
}

func sendMessage(ctx context.Context, conn *websocket.Conn, opts options, text string) error {
	return send(ctx, conn, proto.InboundSendMessage, proto.SendMessageData{
		SenderID: proto.ID(opts.userID),
		RoomID:   proto.ID(opts.roomID),
		Content:  text,
	})
}

// readLoop prints events. With untilAck it returns after the first MessageSent.
func readLoop(ctx context.Context, conn *websocket.Conn, untilAck bool) error {
	for {
		var ev envelope
		if err := wsjson.Read(ctx, conn, &ev); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		switch ev.Event {
		case "ReceiveMessage":
			var msg proto.EventReceiveMessage
			if err := json.Unmarshal(ev.Data, &msg); err == nil {
				fmt.Printf("[room %d] %s: %s\n", msg.RoomID, msg.SenderName, msg.Content)
				continue
			}
		case "MessageSent":
			var ack proto.EventMessageSent
			if err := json.Unmarshal(ev.Data, &ack); err == nil {
				fmt.Printf("message %d: %s\n", ack.MessageID, ack.Status)
				if untilAck {
					return nil
				}
				continue
			}
		case "ReceiveError":
			var e proto.EventReceiveError
			if err := json.Unmarshal(ev.Data, &e); err == nil {
				fmt.Printf("error %s: %s %s\n", e.Code, e.Message, e.Details)
				continue
			}
		}
		fmt.Printf("%s %s\n", ev.Event, ev.Data)
	}
}

func writeLoop(ctx context.Context, conn *websocket.Conn, opts options) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := sendMessage(ctx, conn, opts, text); err != nil {
				fmt.Fprintf(os.Stderr, "send error: %v\n", err)
				return
			}
		}
	}
}
