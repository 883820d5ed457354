package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/coder/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_smoke: %v", err)
		os.Exit(1)
	}
	fmt.Println("OK")
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080", "server base address")
	room := flag.String("room", "smoke", "room name")
	text := flag.String("text", "hello from smoke test", "message text to send")
	timeout := flag.Duration("timeout", 5*time.Second, "total timeout for the run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	base := strings.TrimRight(*addr, "/")
	url := base + "/chat/" + *room

	sender, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial sender: %w", err)
	}
	defer sender.Close(websocket.StatusNormalClosure, "done")

	receiver, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial receiver: %w", err)
	}
	defer receiver.Close(websocket.StatusNormalClosure, "done")

	if err := waitForMembers(ctx, base, *room, 2); err != nil {
		return err
	}

	if err := sender.Write(ctx, websocket.MessageText, []byte(*text)); err != nil {
		return fmt.Errorf("send: %w", err)
	}

	_, data, err := receiver.Read(ctx)
	if err != nil {
		return fmt.Errorf("receive: %w", err)
	}
	if string(data) != *text {
		return fmt.Errorf("received %q, want %q", data, *text)
	}

	// The sender must not hear its own message back.
	echoCtx, echoCancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer echoCancel()
	if _, data, err := sender.Read(echoCtx); err == nil {
		return fmt.Errorf("sender received unexpected echo: %q", data)
	}

	return nil
}

// waitForMembers polls the rooms API until the room reports the expected
// member count, so the send happens only after both sockets are registered.
func waitForMembers(ctx context.Context, wsBase, room string, want int) error {
	httpBase := strings.Replace(wsBase, "ws", "http", 1)

	var rooms struct {
		Rooms []struct {
			Name    string `json:"name"`
			Members int    `json:"members"`
		} `json:"rooms"`
	}

	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, httpBase+"/api/rooms", nil)
		if err != nil {
			return fmt.Errorf("build rooms request: %w", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			return fmt.Errorf("query rooms: %w", err)
		}
		err = json.NewDecoder(resp.Body).Decode(&rooms)
		resp.Body.Close()
		if err != nil {
			return fmt.Errorf("decode rooms: %w", err)
		}

		for _, r := range rooms.Rooms {
			if r.Name == room && r.Members >= want {
				return nil
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("room %q never reached %d members", room, want)
		case <-time.After(50 * time.Millisecond):
		}
	}
}
