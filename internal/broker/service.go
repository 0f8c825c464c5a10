// Package broker implements the ubus broker: the daemon that accepts client
// connections over a UNIX domain socket, owns the global object-ownership
// and subscription tables, routes method invocations between connections,
// and fans out published events to subscribers.
//
// Called by: cmd/ubusd
// Calls: internal/wire
package broker

import (
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"sync"

	"github.com/tenzoki/ubus/internal/wire"
)

// Service is the broker's connection-oriented multiplexer. It tracks every
// accepted connection, which objects each one owns, and which events each
// one subscribes to. The connection table and object ownership are guarded
// by a single broker-wide mutex; each connection's subscription set is
// guarded by that connection's own mutex.
type Service struct {
	cfg Config
	log *log.Logger

	listener *net.UnixListener
	sem      chan struct{} // bounds concurrent frame handling

	mu    sync.Mutex
	conns map[int64]*conn

	wg sync.WaitGroup
}

// NewService creates a broker Service from cfg, filling any zero fields
// with DefaultConfig's values.
func NewService(cfg Config) *Service {
	cfg = cfg.withDefaults()
	return &Service{
		cfg:   cfg,
		log:   log.New(os.Stderr, "[broker] ", log.LstdFlags),
		sem:   make(chan struct{}, cfg.Workers),
		conns: make(map[int64]*conn),
	}
}

// SetOutput redirects the broker's log output.
func (s *Service) SetOutput(w io.Writer) {
	s.log = log.New(w, "[broker] ", log.LstdFlags)
}

// ListenAndServe binds the broker's UNIX socket and accepts connections
// until ctx is cancelled. It removes any stale socket file at cfg.SocketPath
// before binding.
func (s *Service) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.cfg.SocketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("broker: removing stale socket: %w", err)
	}

	addr, err := net.ResolveUnixAddr("unix", s.cfg.SocketPath)
	if err != nil {
		return fmt.Errorf("broker: resolving socket path: %w", err)
	}

	ln, err := net.ListenUnix("unix", addr)
	if err != nil {
		return fmt.Errorf("broker: listening on %s: %w", s.cfg.SocketPath, err)
	}
	ln.SetUnlinkOnClose(true)
	s.listener = ln

	s.log.Printf("listening on %s", s.cfg.SocketPath)

	go func() {
		<-ctx.Done()
		s.log.Printf("shutting down")
		ln.Close()
	}()

	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				s.wg.Wait()
				return nil
			}
			s.log.Printf("accept error: %v", err)
			continue
		}

		s.wg.Add(1)
		go s.serve(nc)
	}
}

// serve owns one connection's lifetime: registration, the read loop, and
// eviction on close.
func (s *Service) serve(nc net.Conn) {
	defer s.wg.Done()
	defer nc.Close()

	c := newConn(connHandle(nc), nc)

	s.mu.Lock()
	s.conns[c.handle] = c
	s.mu.Unlock()

	s.log.Printf("connection %d accepted", c.handle)

	defer s.evict(c)

	for {
		tag, body, err := wire.ReadFrame(nc)
		if err != nil {
			if err != io.EOF {
				s.log.Printf("connection %d: %v", c.handle, err)
			}
			return
		}

		s.sem <- struct{}{}
		go func(tag wire.Tag, body []byte) {
			defer func() { <-s.sem }()
			if err := s.handleFrame(c, tag, body); err != nil {
				s.log.Printf("connection %d: %v", c.handle, err)
			}
		}(tag, body)
	}
}

// evict removes a closed connection's ownership and subscription state so
// neither lingers for future lookups.
func (s *Service) evict(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.handle)
	s.mu.Unlock()
	s.log.Printf("connection %d evicted", c.handle)
}
