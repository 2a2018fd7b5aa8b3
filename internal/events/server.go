// Lucyn - Engineering Team Health Analytics
// Copyright 2026 The Lucyn Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/lucyn-dev/lucyn

package events

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

// EmbeddedServer is an in-process NATS server with JetStream, for
// single-instance deployments without external infrastructure.
//
// The server accepts client connections on a real TCP listener, so the bus
// and the nats rate-limit backend connect to ClientURL exactly as they would
// to an external cluster. Call Shutdown after every client has closed.
type EmbeddedServer struct {
	server    *server.Server
	clientURL string
}

// NewEmbeddedServer starts a server listening on the host and port of
// listenURL (nats://127.0.0.1:4222), storing JetStream data in storeDir.
// Port 0 picks a random port.
func NewEmbeddedServer(listenURL, storeDir string) (*EmbeddedServer, error) {
	host, port, err := hostPort(listenURL)
	if err != nil {
		return nil, err
	}

	if port == 0 {
		port = server.RANDOM_PORT
	}

	opts := &server.Options{
		ServerName: "lucyn-events",
		Host:       host,
		Port:       port,
		JetStream:  true,
		StoreDir:   storeDir,
		NoSigs:     true,
		NoLog:      true,
		MaxPayload: 1024 * 1024,
	}

	ns, err := server.NewServer(opts)
	if err != nil {
		return nil, fmt.Errorf("create NATS server: %w", err)
	}

	go ns.Start()

	if !ns.ReadyForConnections(30 * time.Second) {
		ns.Shutdown()
		return nil, fmt.Errorf("NATS server not ready within timeout")
	}

	return &EmbeddedServer{server: ns, clientURL: ns.ClientURL()}, nil
}

func hostPort(listenURL string) (string, int, error) {
	u, err := url.Parse(listenURL)
	if err != nil {
		return "", 0, fmt.Errorf("parse NATS url: %w", err)
	}
	host, portStr, err := net.SplitHostPort(u.Host)
	if err != nil {
		return "", 0, fmt.Errorf("NATS url %q needs host:port: %w", listenURL, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", 0, fmt.Errorf("NATS url port: %w", err)
	}
	return host, port, nil
}

// ClientURL returns the connection URL for clients.
func (s *EmbeddedServer) ClientURL() string {
	return s.clientURL
}

// IsRunning returns server health status.
func (s *EmbeddedServer) IsRunning() bool {
	return s.server.Running()
}

// Shutdown stops the server and waits for it to exit.
func (s *EmbeddedServer) Shutdown() {
	s.server.Shutdown()
	s.server.WaitForShutdown()
}
