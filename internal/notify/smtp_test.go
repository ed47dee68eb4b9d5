package notify

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeSMTP accepts one session and returns the DATA payload on the channel.
func fakeSMTP(t *testing.T) (addr string, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	out := make(chan string, 1)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		write := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		write("220 localhost ESMTP")
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				write("250 localhost")
			case strings.HasPrefix(cmd, "MAIL"), strings.HasPrefix(cmd, "RCPT"):
				write("250 OK")
			case cmd == "DATA":
				write("354 go ahead")
				var b strings.Builder
				for {
					l, err := r.ReadString('\n')
					if err != nil {
						return
					}
					if l == ".\r\n" {
						break
					}
					b.WriteString(l)
				}
				out <- b.String()
				write("250 queued")
			case cmd == "QUIT":
				write("221 bye")
				return
			default:
				write("250 OK")
			}
		}
	}()
	return ln.Addr().String(), out
}

func TestSMTP_SendsMessage(t *testing.T) {
	addr, data := fakeSMTP(t)
	host, portStr, _ := net.SplitHostPort(addr)
	port, _ := strconv.Atoi(portStr)

	s := NewSMTP(host, port, "", "", "healthwatch@example.com")
	s.Now = func() time.Time { return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC) }

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.Send(ctx, "ops@example.com", "🚨 URGENT: Shop is DOWN", "body text"); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case msg := <-data:
		if !strings.Contains(msg, "To: ops@example.com") {
			t.Fatalf("missing To header: %q", msg)
		}
		if !strings.Contains(msg, "Subject: =?utf-8?q?") {
			t.Fatalf("subject should be Q-encoded: %q", msg)
		}
		if !strings.Contains(msg, "body text") {
			t.Fatalf("missing body: %q", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no DATA received")
	}
}

func TestSMTP_NoRecipient(t *testing.T) {
	s := NewSMTP("localhost", 25, "", "", "x@example.com")
	if err := s.Send(context.Background(), "", "s", "b"); err != ErrNoRecipient {
		t.Fatalf("expected ErrNoRecipient, got %v", err)
	}
}

func TestNewSMTP_EmptyHost(t *testing.T) {
	if NewSMTP("", 25, "", "", "") != nil {
		t.Fatal("expected nil without host")
	}
}
