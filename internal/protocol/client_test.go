package protocol_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autctl/internal/agenttest"
	"autctl/internal/protocol"
)

func startAgent(t *testing.T) *agenttest.Agent {
	t.Helper()
	agent, err := agenttest.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = agent.Close() })
	return agent
}

func TestClient_SendBoolean(t *testing.T) {
	agent := startAgent(t)
	agent.Handle("yes", agenttest.Reply("true"))
	agent.Handle("prefix", agenttest.Reply("truefoo"))
	agent.Handle("no", agenttest.Reply("false"))
	agent.Handle("empty", agenttest.Reply(""))

	client := protocol.NewClient(agent.Endpoint(), protocol.WithReadTimeout(2*time.Second))
	ctx := context.Background()

	for name, want := range map[string]bool{"yes": true, "prefix": true, "no": false, "empty": false} {
		got, err := client.Send(ctx, protocol.MustMessage(name))
		require.NoError(t, err, name)
		assert.Equal(t, want, got, name)
	}
}

func TestClient_SendsLineWithArguments(t *testing.T) {
	agent := startAgent(t)
	client := protocol.NewClient(agent.Endpoint())

	_, err := client.Send(context.Background(), protocol.MustMessage("setTextById", "user", "admin"))
	require.NoError(t, err)
	assert.Equal(t, []string{"setTextById;user;admin"}, agent.Received())
}

func TestClient_ProtocolErrorIsNeverFalse(t *testing.T) {
	agent := startAgent(t)
	agent.Handle("clickButton", agenttest.Reply("ERROR invalid locator"))
	client := protocol.NewClient(agent.Endpoint())

	ok, err := client.Send(context.Background(), protocol.MustMessage("clickButton", "ID::nope"))
	require.Error(t, err)
	assert.False(t, ok)

	var pe *protocol.ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, protocol.Message("clickButton;ID::nope"), pe.Message)
	assert.Contains(t, pe.Detail, "invalid locator")

	_, err = client.SendText(context.Background(), protocol.MustMessage("clickButton", "ID::nope"))
	assert.True(t, protocol.IsProtocolError(err))
}

func TestClient_SendText(t *testing.T) {
	agent := startAgent(t)
	agent.Handle("getTextById", agenttest.Reply("Hello World"))
	client := protocol.NewClient(agent.Endpoint())

	text, err := client.SendText(context.Background(), protocol.MustMessage("getTextById", "label"))
	require.NoError(t, err)
	assert.Equal(t, "Hello World", text)
}

func TestClient_RefusedConnectionDegradesToFalse(t *testing.T) {
	endpoint, err := agenttest.ClosedEndpoint()
	require.NoError(t, err)
	spy := &agenttest.SpyDialer{}
	client := protocol.NewClient(endpoint, protocol.WithDialer(spy))

	ok, err := client.Send(context.Background(), protocol.MustMessage("clickButton", "ok"))
	assert.NoError(t, err)
	assert.False(t, ok)

	text, err := client.SendText(context.Background(), protocol.MustMessage("getTextById", "label"))
	assert.NoError(t, err)
	assert.Empty(t, text)

	launched, err := client.Probe(context.Background())
	assert.NoError(t, err)
	assert.False(t, launched)
	assert.Equal(t, 3, spy.Attempts())
}

func TestClient_ExchangeReportsRefusedTransport(t *testing.T) {
	endpoint, err := agenttest.ClosedEndpoint()
	require.NoError(t, err)
	client := protocol.NewClient(endpoint)

	_, err = client.Exchange(context.Background(), protocol.MustMessage(protocol.CmdIsLaunched))
	require.Error(t, err)
	assert.True(t, protocol.IsConnectionRefused(err))

	var te *protocol.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "dial", te.Op)
	assert.Equal(t, endpoint.Address(), te.Addr)
}

func TestClient_Probe(t *testing.T) {
	agent := startAgent(t)
	client := protocol.NewClient(agent.Endpoint())

	agent.Handle(protocol.CmdIsLaunched, agenttest.Reply("true\n"))
	ok, err := client.Probe(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)

	agent.Handle(protocol.CmdIsLaunched, agenttest.Reply("false"))
	ok, err = client.Probe(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)

	agent.Handle(protocol.CmdIsLaunched, agenttest.Reply("ERROR not yet"))
	ok, err = client.Probe(context.Background())
	assert.True(t, protocol.IsProtocolError(err))
	assert.False(t, ok)
}

func TestClient_ProbeMatchesWholeFirstLine(t *testing.T) {
	agent := startAgent(t)
	client := protocol.NewClient(agent.Endpoint())

	for raw, want := range map[string]bool{
		"TRUE":       true,
		" true \n":   true,
		"true\nmore": true,
		"truefoo":    false,
		"":           false,
	} {
		agent.Handle(protocol.CmdIsLaunched, agenttest.Reply(raw))
		ok, err := client.Probe(context.Background())
		require.NoError(t, err, "raw %q", raw)
		assert.Equal(t, want, ok, "raw %q", raw)
	}
}

// hungPeer accepts connections and never answers.
func hungPeer(t *testing.T) protocol.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		var conns []net.Conn
		defer func() {
			for _, c := range conns {
				_ = c.Close()
			}
		}()
		for {
			c, err := ln.Accept()
			if err != nil {
				<-done
				return
			}
			conns = append(conns, c)
		}
	}()
	t.Cleanup(func() {
		_ = ln.Close()
		close(done)
	})

	addr := ln.Addr().(*net.TCPAddr)
	return protocol.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

func TestClient_ReadTimeout(t *testing.T) {
	client := protocol.NewClient(hungPeer(t), protocol.WithReadTimeout(100*time.Millisecond))

	start := time.Now()
	_, err := client.Exchange(context.Background(), protocol.MustMessage("clickButton", "ok"))
	require.Error(t, err)

	var te *protocol.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, "read", te.Op)
	assert.Less(t, time.Since(start), 2*time.Second)

	// Send degrades the same failure to false.
	ok, err := client.Send(context.Background(), protocol.MustMessage("clickButton", "ok"))
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestClient_ContextCancelUnblocksRead(t *testing.T) {
	client := protocol.NewClient(hungPeer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := client.Exchange(ctx, protocol.MustMessage("clickButton", "ok"))
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second)
}
