package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

const menu = `
========== Stock Trading System ==========
Available Commands:
1. BUY <stock_symbol> <amount> <price_per_stock> <user_id>
   Example: BUY MSFT 3.4 1.35 1

2. SELL <stock_symbol> <amount> <price_per_stock> <user_id>
   Example: SELL APPL 2 1.45 1

3. LIST [user_id]
   Example: LIST 1 (or just LIST for default user)

4. BALANCE [user_id]
   Example: BALANCE 1 (or just BALANCE for default user)

5. QUIT - Close client connection
6. SHUTDOWN - Shutdown the server
==========================================
Enter command: `

// RunInteractive shows the menu, sends each non-empty input line and prints
// the response. It returns after QUIT or SHUTDOWN, at end of input, or when
// the server goes away.
func RunInteractive(c *Client, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	for {
		fmt.Fprint(out, menu)

		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		resp, err := c.Send(line)
		if err != nil {
			fmt.Fprintln(out, "Server closed connection")
			return err
		}

		fmt.Fprintf(out, "\n%s\n", resp.Status())
		for _, detail := range resp.Lines {
			fmt.Fprintln(out, detail)
		}
		fmt.Fprintln(out)

		if EndsSession(line) {
			fmt.Fprintln(out, "Closing connection...")
			return nil
		}
	}
}
