// Command ubusd is the ubus broker daemon: it listens on a UNIX domain
// socket, accepts client connections, and routes object registrations,
// method invocations, and event publications between them.
//
// Called by: operators/process supervisors
// Calls: internal/broker, internal/config
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/tenzoki/ubus/internal/broker"
	"github.com/tenzoki/ubus/internal/config"
)

func main() {
	var cfg *config.Config
	var configSource string

	switch {
	case len(os.Args) >= 2:
		loaded, err := config.Load(os.Args[1])
		if err != nil {
			log.Fatalf("failed to load config from %s: %v", os.Args[1], err)
		}
		cfg = loaded
		configSource = fmt.Sprintf("config file: %s", os.Args[1])

	default:
		if _, err := os.Stat("config/ubusd.yaml"); err == nil {
			loaded, err := config.Load("config/ubusd.yaml")
			if err != nil {
				log.Printf("warning: config/ubusd.yaml exists but failed to load: %v", err)
				log.Printf("using hardcoded defaults instead")
				cfg = config.Default()
				configSource = "hardcoded defaults (config/ubusd.yaml failed to parse)"
			} else {
				cfg = loaded
				configSource = "config/ubusd.yaml (default)"
			}
		} else {
			cfg = config.Default()
			configSource = "hardcoded defaults"
		}
	}

	log.Printf("starting ubusd using %s", configSource)

	svc := broker.NewService(cfg.ToBrokerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Printf("signal received, shutting down")
		cancel()
	}()

	if err := svc.ListenAndServe(ctx); err != nil {
		log.Fatalf("broker exited: %v", err)
	}
}
