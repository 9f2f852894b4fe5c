package protocol

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"autctl/internal/metrics"
	"autctl/pkg/logging"
)

const subsystem = "Protocol"

// Endpoint identifies the agent socket.
type Endpoint struct {
	Host string
	Port int
}

// Address returns the endpoint in host:port form.
func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// Dialer opens connections to the agent. *net.Dialer satisfies it.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Client talks to the agent, one TCP connection per command.
type Client struct {
	endpoint    Endpoint
	dialer      Dialer
	readTimeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithDialer replaces the default dialer.
func WithDialer(d Dialer) Option {
	return func(c *Client) { c.dialer = d }
}

// WithReadTimeout bounds a whole exchange. Zero disables the bound, which
// lets a hung agent block the caller until ctx is done.
func WithReadTimeout(d time.Duration) Option {
	return func(c *Client) { c.readTimeout = d }
}

// NewClient creates a client for the agent at endpoint.
func NewClient(endpoint Endpoint, opts ...Option) *Client {
	c := &Client{
		endpoint: endpoint,
		dialer:   &net.Dialer{Timeout: 5 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the agent endpoint the client talks to.
func (c *Client) Endpoint() Endpoint {
	return c.endpoint
}

// Exchange sends msg on a fresh connection and reads the response until the
// agent closes the stream. The connection is always drained and closed.
func (c *Client) Exchange(ctx context.Context, msg Message) (Result, error) {
	addr := c.endpoint.Address()

	conn, err := c.dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return Result{}, &TransportError{Message: msg, Addr: addr, Op: "dial", Err: err}
	}
	defer conn.Close()

	if c.readTimeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.readTimeout))
	}
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetDeadline(time.Now())
	})
	defer stop()

	if _, err := io.WriteString(conn, string(msg)+"\n"); err != nil {
		_, _ = io.Copy(io.Discard, conn)
		return Result{}, &TransportError{Message: msg, Addr: addr, Op: "write", Err: err}
	}

	var response strings.Builder
	if _, err := io.Copy(&response, conn); err != nil {
		return Result{Raw: response.String()}, &TransportError{Message: msg, Addr: addr, Op: "read", Err: err}
	}

	return Classify(msg, response.String())
}

// Send performs a boolean command. Transport failures are logged and
// reported as false so that callers can express negative assertions
// without special-casing connectivity. A *ProtocolError is returned as is.
func (c *Client) Send(ctx context.Context, msg Message) (bool, error) {
	res, err := c.do(ctx, msg)
	if err != nil {
		return false, err
	}
	return res.Bool(), nil
}

// SendText performs a command whose response is free text. Transport
// failures degrade to an empty string like Send.
func (c *Client) SendText(ctx context.Context, msg Message) (string, error) {
	res, err := c.do(ctx, msg)
	if err != nil {
		return "", err
	}
	return res.Text(), nil
}

func (c *Client) do(ctx context.Context, msg Message) (Result, error) {
	start := time.Now()
	logging.Info(subsystem, "Send message to AUT: %s", msg)

	res, err := c.Exchange(ctx, msg)
	elapsed := time.Since(start)

	var pe *ProtocolError
	switch {
	case errors.As(err, &pe):
		logging.Error(subsystem, err, "Fails: %s (target %s, after %s)", msg, c.endpoint.Address(), elapsed)
		metrics.RecordCommand(msg.Name(), metrics.OutcomeProtocolError, elapsed)
		return res, err
	case err != nil:
		logging.Error(subsystem, err, "Send message %s to %s failed after %s", msg, c.endpoint.Address(), elapsed)
		metrics.RecordCommand(msg.Name(), metrics.OutcomeTransportError, elapsed)
		return Result{}, nil
	}

	outcome := metrics.OutcomeFalse
	if res.Bool() {
		outcome = metrics.OutcomeTrue
	}
	metrics.RecordCommand(msg.Name(), outcome, elapsed)
	logging.Debug(subsystem, "Response to %s after %s: %q", msg.Name(), elapsed, res.Raw)
	return res, nil
}

// Probe asks the agent whether the AUT finished launching. A refused
// connection is the normal answer while the AUT is still starting and is
// reported as a silent false. Unlike Send, the answer is the trimmed first
// line compared to "true" ignoring case.
func (c *Client) Probe(ctx context.Context) (bool, error) {
	res, err := c.Exchange(ctx, Message(CmdIsLaunched))
	switch {
	case IsConnectionRefused(err):
		logging.Debug(subsystem, "Server not available at %s", c.endpoint.Address())
		return false, nil
	case IsProtocolError(err):
		return false, err
	case err != nil:
		logging.Error(subsystem, err, "isLaunched probe against %s failed", c.endpoint.Address())
		return false, nil
	}

	line, _, _ := strings.Cut(res.Raw, "\n")
	return strings.EqualFold(strings.TrimSpace(line), "true"), nil
}
