package client

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"stocktrader/protocol"
)

// Client is a connection to a ledger server
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	writer *bufio.Writer
}

// Dial connects to host:port
func Dial(ctx context.Context, host string, port int) (*Client, error) {
	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s:%d: %w", host, port, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		writer: bufio.NewWriter(conn),
	}, nil
}

// Send writes one command line and reads its response
func (c *Client) Send(line string) (protocol.Response, error) {
	line = strings.TrimRight(line, "\r\n")
	if strings.ContainsAny(line, "\r\n") {
		return protocol.Response{}, fmt.Errorf("command must be a single line")
	}

	if _, err := c.writer.WriteString(line + "\n"); err != nil {
		return protocol.Response{}, fmt.Errorf("failed to send command: %w", err)
	}
	if err := c.writer.Flush(); err != nil {
		return protocol.Response{}, fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := protocol.ReadResponse(c.reader)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// Close closes the connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// EndsSession reports whether the server closes the connection after line
func EndsSession(line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	return fields[0] == protocol.CommandQuit || fields[0] == protocol.CommandShutdown
}

// Resolve looks up host and returns its addresses
func Resolve(ctx context.Context, host string) ([]string, error) {
	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil {
		return nil, fmt.Errorf("no such host %s: %w", host, err)
	}
	return addrs, nil
}
