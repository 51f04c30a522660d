// Package main provides a terminal client for the TradieHelper realtime gateway.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/xiaot623/tradiehelper/internal/domain"
	"github.com/xiaot623/tradiehelper/internal/realtime"
	"github.com/xiaot623/tradiehelper/internal/transport/ws"
)

// Client represents a WebSocket client.
type Client struct {
	conn   *websocket.Conn
	userID string
	done   chan struct{}
}

// NewClient creates a new client and connects to the server.
func NewClient(addr string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.Dial(addr, nil)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}

	return &Client{
		conn: conn,
		done: make(chan struct{}),
	}, nil
}

// Close closes the client connection.
func (c *Client) Close() error {
	close(c.done)
	return c.conn.Close()
}

func base(typ, channel string) ws.BaseMessage {
	return ws.BaseMessage{Type: typ, Ts: time.Now().UnixMilli(), Channel: channel}
}

// SendHello sends a hello frame and waits for hello_ack.
func (c *Client) SendHello(token string) error {
	if err := c.conn.WriteJSON(ws.HelloMessage{BaseMessage: base(ws.TypeHello, ""), Token: token}); err != nil {
		return fmt.Errorf("write hello: %w", err)
	}

	_, data, err := c.conn.ReadMessage()
	if err != nil {
		return fmt.Errorf("read hello_ack: %w", err)
	}

	var ack ws.HelloAckMessage
	if err := json.Unmarshal(data, &ack); err != nil {
		return fmt.Errorf("unmarshal hello_ack: %w", err)
	}
	if ack.Type == ws.TypeError {
		var errMsg ws.ErrorMessage
		json.Unmarshal(data, &errMsg)
		return fmt.Errorf("hello failed: %s - %s", errMsg.Code, errMsg.Message)
	}
	if ack.Type != ws.TypeHelloAck {
		return fmt.Errorf("expected hello_ack, got: %s", ack.Type)
	}

	c.userID = ack.UserID
	return nil
}

// Subscribe joins a channel, optionally for row changes of table.
func (c *Client) Subscribe(channel, table, filter string) error {
	return c.conn.WriteJSON(ws.SubscribeMessage{
		BaseMessage: base(ws.TypeSubscribe, channel),
		Table:       table,
		Filter:      filter,
	})
}

// SendTyping broadcasts the typing state for jobID.
func (c *Client) SendTyping(jobID string, typing bool) error {
	payload, _ := json.Marshal(domain.TypingEvent{UserID: c.userID, JobID: jobID, IsTyping: typing})
	return c.conn.WriteJSON(ws.BroadcastMessage{
		BaseMessage: base(ws.TypeBroadcast, realtime.TypingChannel(jobID)),
		Event:       "typing",
		Payload:     payload,
	})
}

// SendPresence publishes the user's status.
func (c *Client) SendPresence(status domain.PresenceStatus) error {
	return c.conn.WriteJSON(ws.PresenceMessage{BaseMessage: base(ws.TypePresence, ""), Status: string(status)})
}

// ReadMessages reads and prints frames from the server.
func (c *Client) ReadMessages() {
	for {
		select {
		case <-c.done:
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				if !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
					log.Printf("Read error: %v", err)
				}
				return
			}

			var frame ws.BaseMessage
			if err := json.Unmarshal(data, &frame); err != nil {
				log.Printf("Unmarshal error: %v", err)
				continue
			}

			var prettyJSON map[string]interface{}
			json.Unmarshal(data, &prettyJSON)
			formatted, _ := json.MarshalIndent(prettyJSON, "", "  ")
			fmt.Printf("\n[%s %s] Received:\n%s\n", frame.Type, frame.Channel, string(formatted))
		}
	}
}

// sendMessage posts a chat message through the REST API.
func sendMessage(apiURL, token, jobID, otherID, content string) error {
	body, _ := json.Marshal(map[string]string{"content": content})
	url := fmt.Sprintf("%s/v1/conversations/%s/%s/messages", strings.TrimRight(apiURL, "/"), jobID, otherID)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		var errResp map[string]string
		json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("status %d: %s", resp.StatusCode, errResp["error"])
	}
	return nil
}

func main() {
	addr := flag.String("addr", "ws://localhost:8080/ws", "WebSocket server address")
	apiURL := flag.String("api", "http://localhost:8080", "REST API base URL")
	token := flag.String("token", "", "Bearer token (the user ID in dev mode)")
	flag.Parse()

	log.SetFlags(log.Ltime)

	fmt.Printf("Connecting to %s...\n", *addr)

	client, err := NewClient(*addr)
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer client.Close()

	if err := client.SendHello(*token); err != nil {
		log.Fatalf("Hello failed: %v", err)
	}
	fmt.Printf("Signed in as %s\n", client.userID)

	if err := client.Subscribe(realtime.MessagesChannel(client.userID), "messages", "receiver_id=eq."+client.userID); err != nil {
		log.Fatalf("Subscribe failed: %v", err)
	}
	client.Subscribe(realtime.NotificationsChannel(client.userID), "", "")
	client.Subscribe(realtime.ChannelUserPresence, "", "")
	client.SendPresence(domain.PresenceOnline)

	fmt.Println("\nCommands:")
	fmt.Println("  /send <job> <user> <text>   send a message")
	fmt.Println("  /watch <job>                show typing for a job")
	fmt.Println("  /typing <job>               announce typing")
	fmt.Println("  /away, /online              set presence")
	fmt.Println("  /quit                       exit")

	go client.ReadMessages()

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("> ")
		select {
		case <-interrupt:
			fmt.Println("\nInterrupted")
			return
		default:
			if !scanner.Scan() {
				return
			}

			fields := strings.Fields(scanner.Text())
			if len(fields) == 0 {
				continue
			}

			var err error
			switch {
			case fields[0] == "/quit":
				client.SendPresence(domain.PresenceOffline)
				fmt.Println("Bye!")
				return
			case fields[0] == "/send" && len(fields) >= 4:
				err = sendMessage(*apiURL, *token, fields[1], fields[2], strings.Join(fields[3:], " "))
			case fields[0] == "/watch" && len(fields) == 2:
				err = client.Subscribe(realtime.TypingChannel(fields[1]), "", "")
			case fields[0] == "/typing" && len(fields) == 2:
				err = client.SendTyping(fields[1], true)
			case fields[0] == "/away":
				err = client.SendPresence(domain.PresenceAway)
			case fields[0] == "/online":
				err = client.SendPresence(domain.PresenceOnline)
			default:
				fmt.Println("Unknown command")
				continue
			}
			if err != nil {
				log.Printf("Error: %v", err)
			}
		}
	}
}
