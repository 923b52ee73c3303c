package client

import (
	"bytes"
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"stocktrader/events"
	"stocktrader/models"
	"stocktrader/protocol"
	"stocktrader/repository"
	"stocktrader/server"
	"stocktrader/service"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startLedger(t *testing.T) (string, int) {
	t.Helper()
	ctx := context.Background()

	factory := repository.NewMemoryUnitOfWorkFactory(repository.NewMemoryStore(), events.NewBus())
	uow := factory.Create()
	require.NoError(t, uow.Begin(ctx))
	require.NoError(t, uow.UserRepository().Create(ctx, &models.User{
		FirstName:   "Robby",
		LastName:    "Bobby",
		UserName:    "Rob_bob",
		CashBalance: decimal.NewFromInt(100),
	}))
	require.NoError(t, uow.Commit())

	interpreter := protocol.NewInterpreter(service.NewTradingService(factory), service.NewQueryService(factory, false), 1)
	srv := server.New(server.Config{ShutdownTimeout: time.Second}, interpreter)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()
	t.Cleanup(func() {
		srv.Shutdown()
		<-done
	})

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port
}

func TestClient_Send(t *testing.T) {
	host, port := startLedger(t)

	c, err := Dial(context.Background(), host, port)
	require.NoError(t, err)
	defer c.Close()

	resp, err := c.Send("BUY MSFT 3.4 1.35 1\n")
	require.NoError(t, err)
	assert.Equal(t, "200 OK", resp.Status())
	assert.Equal(t, []string{"BOUGHT: New balance: 3.40 MSFT. USD balance $95.41"}, resp.Lines)

	_, err = c.Send("LIST\nQUIT")
	assert.Error(t, err, "embedded newlines are refused")
}

func TestClient_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	_, err = Dial(context.Background(), "127.0.0.1", port)
	assert.Error(t, err)
}

func TestRunInteractive(t *testing.T) {
	host, port := startLedger(t)

	c, err := Dial(context.Background(), host, port)
	require.NoError(t, err)
	defer c.Close()

	in := strings.NewReader("BALANCE\n\nHELLO\nQUIT\nLIST\n")
	var out bytes.Buffer

	require.NoError(t, RunInteractive(c, in, &out))

	output := out.String()
	assert.Contains(t, output, "Balance for user Robby Bobby: $100.00")
	assert.Contains(t, output, "400 invalid command")
	assert.Contains(t, output, "Closing connection...")
	assert.NotContains(t, output, "The list of records", "nothing is sent after QUIT")
	assert.Equal(t, 4, strings.Count(output, "Enter command: "), "blank input shows the menu again")
}

func TestEndsSession(t *testing.T) {
	assert.True(t, EndsSession("QUIT"))
	assert.True(t, EndsSession("  SHUTDOWN "))
	assert.False(t, EndsSession("QUITTING"))
	assert.False(t, EndsSession("quit"))
	assert.False(t, EndsSession(""))
}

func TestResolve(t *testing.T) {
	addrs, err := Resolve(context.Background(), "127.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, []string{"127.0.0.1"}, addrs)

	_, err = Resolve(context.Background(), "no-such-host.invalid")
	assert.Error(t, err)
}
