package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"stocktrader/client"
	"stocktrader/config"
)

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <server_hostname>\n", os.Args[0])
		return 1
	}
	host := os.Args[1]

	cfg, err := config.LoadClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := client.Resolve(ctx, host); err != nil {
		fmt.Fprintf(os.Stderr, "Error: No such host %s\n", host)
		return 1
	}

	fmt.Printf("Connecting to server at %s:%d...\n", host, cfg.Port)
	c, err := client.Dial(ctx, host, cfg.Port)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	defer c.Close()
	fmt.Println("Connected to server successfully!")

	if err := client.RunInteractive(c, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}

	fmt.Println("Client terminated.")
	return 0
}
