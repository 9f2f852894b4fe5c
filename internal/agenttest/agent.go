// Package agenttest provides an in-process stand-in for the remote-control
// agent so that protocol, readiness and lifecycle code can be exercised
// without a real AUT.
package agenttest

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"autctl/internal/protocol"
)

// HandlerFunc produces the raw response for one received command line.
type HandlerFunc func(line string) string

// Agent is a TCP server that speaks the agent protocol: it reads one line,
// writes a response and closes the connection.
type Agent struct {
	listener net.Listener

	mu       sync.Mutex
	handlers map[string]HandlerFunc
	fallback HandlerFunc
	received []string

	wg sync.WaitGroup
}

// Start listens on a random loopback port. Unknown commands answer "true".
func Start() (*Agent, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	a := &Agent{
		listener: ln,
		handlers: make(map[string]HandlerFunc),
		fallback: Reply("true"),
	}
	a.wg.Add(1)
	go a.serve()
	return a, nil
}

// Reply returns a handler that always answers response.
func Reply(response string) HandlerFunc {
	return func(string) string { return response }
}

// Handle installs the handler for a command name.
func (a *Agent) Handle(name string, h HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.handlers[name] = h
}

// HandleDefault replaces the handler used for unknown commands.
func (a *Agent) HandleDefault(h HandlerFunc) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.fallback = h
}

// Endpoint returns the address the agent listens on.
func (a *Agent) Endpoint() protocol.Endpoint {
	host, port, _ := net.SplitHostPort(a.listener.Addr().String())
	p, _ := strconv.Atoi(port)
	return protocol.Endpoint{Host: host, Port: p}
}

// Received returns every command line received so far.
func (a *Agent) Received() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.received...)
}

// Close stops listening and waits for in-flight connections.
func (a *Agent) Close() error {
	err := a.listener.Close()
	a.wg.Wait()
	return err
}

func (a *Agent) serve() {
	defer a.wg.Done()
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			return
		}
		a.wg.Add(1)
		go func() {
			defer a.wg.Done()
			defer conn.Close()
			a.handle(conn)
		}()
	}
}

func (a *Agent) handle(conn net.Conn) {
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return
	}
	line = strings.TrimRight(line, "\r\n")
	name, _, _ := strings.Cut(line, protocol.Delimiter)

	a.mu.Lock()
	a.received = append(a.received, line)
	h, ok := a.handlers[name]
	if !ok {
		h = a.fallback
	}
	a.mu.Unlock()

	_, _ = conn.Write([]byte(h(line)))
}

// SpyDialer counts dial attempts before delegating to a real dialer.
type SpyDialer struct {
	attempts atomic.Int64
	dialer   net.Dialer
}

func (d *SpyDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	d.attempts.Add(1)
	return d.dialer.DialContext(ctx, network, address)
}

// Attempts returns how many connections were attempted.
func (d *SpyDialer) Attempts() int {
	return int(d.attempts.Load())
}

// ClosedEndpoint returns a loopback endpoint nothing listens on, so dialing
// it is refused.
func ClosedEndpoint() (protocol.Endpoint, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return protocol.Endpoint{}, err
	}
	addr := ln.Addr().(*net.TCPAddr)
	if err := ln.Close(); err != nil {
		return protocol.Endpoint{}, err
	}
	return protocol.Endpoint{Host: "127.0.0.1", Port: addr.Port}, nil
}
