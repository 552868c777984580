package shared

import (
	"bufio"
	"fmt"
	"net"
	"sync"
	"testing"
)

func TestNewClientAssignsIDAndAddr(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()
	defer clientEnd.Close()

	c := NewClient(serverEnd)
	if c.ID == "" {
		t.Error("Expected a non-empty client ID")
	}
	if c.Addr != serverEnd.RemoteAddr().String() {
		t.Errorf("Expected addr %s, got %s", serverEnd.RemoteAddr(), c.Addr)
	}

	other := NewClient(clientEnd)
	if other.ID == c.ID {
		t.Error("Expected distinct IDs for distinct clients")
	}
}

func TestClientSendDeliversLine(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()
	defer clientEnd.Close()

	c := NewClient(serverEnd)

	lines := make(chan string, 1)
	go func() {
		scanner := bufio.NewScanner(clientEnd)
		if scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	if err := c.Send([]byte("hello\n")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got := <-lines; got != "hello" {
		t.Errorf("Expected hello, got %q", got)
	}
}

func TestClientSendErrorOnClosedConn(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	serverEnd.Close()
	clientEnd.Close()

	c := NewClient(serverEnd)
	if err := c.Send([]byte("hello\n")); err == nil {
		t.Error("Expected an error sending on a closed connection")
	}
}

// Concurrent senders must never interleave bytes within one line.
func TestClientConcurrentSendsKeepLinesIntact(t *testing.T) {
	serverEnd, clientEnd := net.Pipe()
	defer serverEnd.Close()
	defer clientEnd.Close()

	c := NewClient(serverEnd)

	const senders = 10
	const perSender = 20

	lines := make(chan string, senders*perSender)
	go func() {
		scanner := bufio.NewScanner(clientEnd)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	var wg sync.WaitGroup
	for i := 0; i < senders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			payload := []byte(fmt.Sprintf("sender-%02d-payload\n", id))
			for j := 0; j < perSender; j++ {
				if err := c.Send(payload); err != nil {
					t.Errorf("Send failed: %v", err)
					return
				}
			}
		}(i)
	}
	wg.Wait()

	for i := 0; i < senders*perSender; i++ {
		line := <-lines
		if len(line) != len("sender-00-payload") {
			t.Fatalf("Got a torn line: %q", line)
		}
	}
}
