package main

import (
	"bufio"
	"fmt"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/securemessenger/relay/shared"
)

func main() {
	if len(os.Args) < 4 {
		fmt.Println("Usage: go run client.go <host> <port> <username>")
		fmt.Println("Example: go run client.go localhost 8080 alice")
		os.Exit(1)
	}

	host := os.Args[1]
	port := os.Args[2]
	username := os.Args[3]

	conn, err := net.Dial("tcp", host+":"+port)
	if err != nil {
		fmt.Printf("Error connecting to server: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Printf("Connected to %s as %q\n", host+":"+port, username)
	fmt.Println("Type a message and press enter to broadcast.")
	fmt.Println("Use /msg <username> <message> for a direct message, /quit to exit.")

	if err := sendEnvelope(conn, shared.Envelope{
		Type:    shared.TypeUsername,
		Content: username,
	}); err != nil {
		fmt.Printf("Error announcing username: %v\n", err)
		os.Exit(1)
	}

	go func() {
		reader := bufio.NewReader(conn)
		for {
			env, err := shared.ReadEnvelope(reader)
			if err != nil {
				if err == io.EOF {
					fmt.Println("\n[Connection closed by server]")
				} else {
					fmt.Printf("\n[Error reading from server: %v]\n", err)
				}
				os.Exit(1)
			}

			switch env.Type {
			case shared.TypeMessage:
				stamp := time.UnixMilli(env.Timestamp).Format("15:04:05")
				fmt.Printf("\n[%s] %s: %s\n> ", stamp, env.Sender, env.Content)
			case shared.TypeUserJoined:
				fmt.Printf("\n* %s\n> ", env.Content)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	fmt.Print("> ")
	for scanner.Scan() {
		input := scanner.Text()

		if input == "/quit" {
			fmt.Println("Disconnecting from chat server...")
			break
		}

		env := shared.Envelope{Type: shared.TypeMessage, Content: input}

		if strings.HasPrefix(input, "/msg ") {
			parts := strings.SplitN(input, " ", 3)
			if len(parts) < 3 {
				fmt.Println("Usage: /msg <username> <message>")
				fmt.Print("> ")
				continue
			}
			env.Recipient = parts[1]
			env.Content = parts[2]
		}

		if err := sendEnvelope(conn, env); err != nil {
			fmt.Printf("Error sending message: %v\n", err)
			break
		}

		fmt.Print("> ")
	}

	if err := scanner.Err(); err != nil {
		fmt.Printf("Error reading input: %v\n", err)
	}
}

func sendEnvelope(conn net.Conn, env shared.Envelope) error {
	data, err := shared.FormatEnvelope(env)
	if err != nil {
		return err
	}
	_, err = conn.Write(data)
	return err
}
