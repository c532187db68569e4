package main

import (
	"bytes"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/spf13/pflag"
)

// Prints the notices the server pushes to a mini-app session.
func main() {
	url := pflag.String("url", "ws://localhost:8888/api/v1/ws", "notice websocket endpoint")
	initData := pflag.String("init-data", "", "telegram mini-app init data of the session")
	pflag.Parse()

	if *initData == "" {
		log.Fatal("--init-data is required")
	}

	header := http.Header{}
	header.Set("Authorization", "Telegram "+*initData)

	conn, _, err := websocket.DefaultDialer.Dial(*url, header)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			_, p, err := conn.ReadMessage()
			if err != nil {
				log.Println("read error:", err)
				return
			}

			var out bytes.Buffer
			if err := json.Indent(&out, p, "", "  "); err != nil {
				log.Printf("Received:\n%s\n", p)
				continue
			}
			log.Printf("Received:\n%s\n", out.String())
		}
	}()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	select {
	case <-done:
	case <-interrupt:
		err := conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			log.Println("write close:", err)
		}
	}
}
