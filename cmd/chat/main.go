package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"chatapp/internal/chat"
	"chatapp/internal/logging"
)

func main() {
	url := flag.String("url", "ws://localhost:3000/ws", "relay WebSocket URL")
	origin := flag.String("origin", "http://localhost:3000", "Origin header sent on connect")
	logFile := flag.String("log", "", "write debug logs to this file")
	maxMessages := flag.Int("max-messages", 0, "keep only the newest N messages (0 = unbounded)")
	flag.Parse()

	// the terminal belongs to the UI, so logs go to a file or nowhere
	var logOut io.Writer = io.Discard
	if *logFile != "" {
		f, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		logOut = f
	}
	logging.Setup(false, logOut)

	if err := run(*url, *origin, *maxMessages); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(url, origin string, maxMessages int) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ui, err := NewChatUI()
	if err != nil {
		return err
	}
	defer ui.Close()

	var conn *chat.Conn
	onClose := func(c *chat.Conn, err error) {
		log.Info().Err(err).Msg("[Chat] Connection closed")
		ui.setStatus("Conexión cerrada")
	}
	dial := chat.WebSocketDialer(ctx, url, origin, onClose)

	session := chat.NewSession(
		func(s *chat.Session) (chat.Emitter, error) {
			em, err := dial(s)
			if err != nil {
				return nil, err
			}
			conn = em.(*chat.Conn)
			return em, nil
		},
		chat.WithMaxMessages(maxMessages),
		chat.WithOnChange(ui.refresh),
	)
	ui.Attach(session)

	err = ui.Run()
	if conn != nil {
		conn.Close()
	}
	return err
}
