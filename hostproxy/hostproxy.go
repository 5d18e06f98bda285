// Package hostproxy serves a local SOCKS5 proxy that pins selected host names
// to fixed addresses, so a browser can reach a staging deployment under its
// production name.
package hostproxy

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"

	socks5 "github.com/armon/go-socks5"
	"github.com/golang/glog"
	"github.com/tebeka/selenium"
)

// Resolver resolves overridden hosts from a fixed table and everything else
// through DNS.
type Resolver struct {
	overrides map[string]net.IP
	fallback  socks5.NameResolver
}

// NewResolver validates overrides, which map host names to IP addresses.
func NewResolver(overrides map[string]string) (*Resolver, error) {
	r := &Resolver{overrides: make(map[string]net.IP, len(overrides)), fallback: socks5.DNSResolver{}}
	for host, addr := range overrides {
		ip := net.ParseIP(addr)
		if ip == nil {
			return nil, fmt.Errorf("override for %q: %q is not an IP address", host, addr)
		}
		r.overrides[strings.ToLower(strings.TrimSuffix(host, "."))] = ip
	}
	return r, nil
}

// Resolve implements socks5.NameResolver.
func (r *Resolver) Resolve(ctx context.Context, name string) (context.Context, net.IP, error) {
	if ip, ok := r.overrides[strings.ToLower(strings.TrimSuffix(name, "."))]; ok {
		glog.V(1).Infof("hostproxy: %s -> %s", name, ip)
		return ctx, ip, nil
	}
	return r.fallback.Resolve(ctx, name)
}

// Server is a running proxy.
type Server struct {
	l    net.Listener
	done chan struct{}

	once sync.Once
	err  error
}

// Start serves the proxy on a free loopback port.
func Start(overrides map[string]string) (*Server, error) {
	r, err := NewResolver(overrides)
	if err != nil {
		return nil, err
	}
	socks, err := socks5.New(&socks5.Config{Resolver: r})
	if err != nil {
		return nil, fmt.Errorf("socks5.New(_) returned error: %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	s := &Server{l: l, done: make(chan struct{})}
	go func() {
		err := socks.Serve(l)
		select {
		case <-s.done:
			return
		default:
		}
		if err != nil {
			glog.Errorf("hostproxy: serve: %v", err)
		}
	}()
	glog.Infof("hostproxy: serving %d overrides on %s", len(overrides), l.Addr())
	return s, nil
}

// Addr is the proxy's host:port.
func (s *Server) Addr() string { return s.l.Addr().String() }

// Proxy returns the WebDriver proxy capability that routes the browser
// through s.
func (s *Server) Proxy() selenium.Proxy {
	return selenium.Proxy{
		Type:         selenium.Manual,
		SOCKS:        s.Addr(),
		SOCKSVersion: 5,
		// Loopback stays direct.
		NoProxy: []string{"localhost", "127.0.0.1"},
	}
}

// Close stops the proxy. It is safe to call more than once.
func (s *Server) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.err = s.l.Close()
	})
	return s.err
}
