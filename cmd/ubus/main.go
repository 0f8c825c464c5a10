// Command ubus is a thin command-line harness over public/ubus, useful for
// poking at a running broker by hand: invoking a method, publishing an
// event, or listening for one.
//
// Called by: operators, shell scripts
// Calls: public/ubus
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenzoki/ubus/public/ubus"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "call":
		err = runCall(args)
	case "send":
		err = runSend(args)
	case "listen":
		err = runListen(args)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, "ubus:", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  ubus call <object> <func> [json-data]")
	fmt.Fprintln(os.Stderr, "  ubus send <event> [json-data]")
	fmt.Fprintln(os.Stderr, "  ubus listen <event>")
}

func parseData(raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid json data: %w", err)
	}
	return v, nil
}

func connect() (*ubus.Client, error) {
	c := ubus.NewClient()
	if !c.ConnectDefault() {
		return nil, fmt.Errorf("could not connect to broker")
	}
	return c, nil
}

func runCall(args []string) error {
	fs := flag.NewFlagSet("call", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 2 {
		return fmt.Errorf("call requires <object> <func> [json-data]")
	}
	object, fn := rest[0], rest[1]
	var raw string
	if len(rest) > 2 {
		raw = rest[2]
	}

	data, err := parseData(raw)
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Disconnect()

	result, ok := c.Call(object, fn, data)
	if !ok {
		return fmt.Errorf("%s.%s: no reply (no such object/method, or timeout)", object, fn)
	}
	fmt.Println(string(result))
	return nil
}

func runSend(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("send requires <event> [json-data]")
	}
	event := rest[0]
	var raw string
	if len(rest) > 1 {
		raw = rest[1]
	}

	data, err := parseData(raw)
	if err != nil {
		return err
	}

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Disconnect()

	return c.Send(event, data)
}

func runListen(args []string) error {
	fs := flag.NewFlagSet("listen", flag.ExitOnError)
	fs.Parse(args)
	rest := fs.Args()
	if len(rest) < 1 {
		return fmt.Errorf("listen requires <event>")
	}
	event := rest[0]

	c, err := connect()
	if err != nil {
		return err
	}
	defer c.Disconnect()

	if !c.Listen(event, func(data json.RawMessage) {
		fmt.Println(string(data))
	}) {
		return fmt.Errorf("subscribe to %s failed", event)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	return nil
}
