package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gorilla/websocket"
)

func main() {
	if err := run(); err != nil {
		log.Printf("ws_chat: %v", err)
		os.Exit(1)
	}
}

func run() error {
	addr := flag.String("addr", "ws://localhost:8080", "server base address")
	room := flag.String("room", "general", "room to join")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	url := strings.TrimRight(*addr, "/") + "/chat/" + *room
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s\n", url)
	fmt.Println("Type messages and press Enter to send. Ctrl+C to exit.")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					return
				}
				log.Printf("read error: %v", err)
				return
			}
			fmt.Printf("<< %s\n", data)
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	sendClose := func() {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
	}

	for {
		select {
		case <-ctx.Done():
			sendClose()
			return nil
		case <-done:
			return nil
		case line, ok := <-lines:
			if !ok {
				sendClose()
				return nil
			}
			text := strings.TrimSpace(line)
			if text == "" {
				continue
			}
			if err := conn.WriteMessage(websocket.TextMessage, []byte(text)); err != nil {
				return fmt.Errorf("send: %w", err)
			}
		}
	}
}
