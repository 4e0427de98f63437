package servers

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/juju/errors"
)

// Defaults for Pool counters.
const (
	DefaultBasePort = 3310
	DefaultStartID  = 100
)

// Pool is the ordered set of configured servers, along with the counters used
// to pick a port and server id for each new server a scenario asks for. A
// Pool is not safe for concurrent use.
type Pool struct {
	servers  []*Server
	nextPort int
	nextID   int
	listen   func(addr string) (net.Listener, error)
}

// NewPool returns a Pool of the supplied servers. Ports are allocated starting
// at basePort and server ids starting at startID; values below 1 select the
// defaults.
func NewPool(servers []*Server, basePort, startID int) *Pool {
	if basePort < 1 {
		basePort = DefaultBasePort
	}
	if startID < 1 {
		startID = DefaultStartID
	}
	return &Pool{
		servers:  servers,
		nextPort: basePort,
		nextID:   startID,
		listen: func(addr string) (net.Listener, error) {
			return net.Listen("tcp", addr)
		},
	}
}

// ParsePool parses each DSN into a Server and returns a Pool of them.
func ParsePool(dsns []string, basePort, startID int) (*Pool, error) {
	servers := make([]*Server, 0, len(dsns))
	for _, dsn := range dsns {
		s, err := ParseServer(dsn)
		if err != nil {
			return nil, err
		}
		servers = append(servers, s)
	}
	return NewPool(servers, basePort, startID), nil
}

// Servers returns all configured servers in order.
func (p *Pool) Servers() []*Server {
	return append([]*Server(nil), p.servers...)
}

// CheckNumServers returns an error if fewer than n servers are configured.
func (p *Pool) CheckNumServers(n int) error {
	if len(p.servers) < n {
		return fmt.Errorf("%d server(s) required, but only %d configured", n, len(p.servers))
	}
	return nil
}

// NextPort returns the lowest port, at or above the previously returned port
// plus one, that is not used by a configured server and can currently be
// bound on localhost.
func (p *Pool) NextPort() (int, error) {
	for port := p.nextPort; port <= 65535; port++ {
		if p.usedByServer(port) {
			continue
		}
		l, err := p.listen(net.JoinHostPort("localhost", strconv.Itoa(port)))
		if err != nil {
			continue
		}
		l.Close()
		p.nextPort = port + 1
		return port, nil
	}
	return 0, errors.Errorf("no free port found at or above %d", p.nextPort)
}

// NextID returns a new server id, one greater than the previous.
func (p *Pool) NextID() int {
	id := p.nextID
	p.nextID++
	return id
}

// Ping checks connectivity to each of the first n servers, or all servers if
// n is less than 1.
func (p *Pool) Ping(ctx context.Context, n int) error {
	if n < 1 || n > len(p.servers) {
		n = len(p.servers)
	}
	for _, s := range p.servers[:n] {
		if err := s.Ping(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (p *Pool) usedByServer(port int) bool {
	for _, s := range p.servers {
		if s.SocketPath == "" && s.Port == port && isLocal(s.Host) {
			return true
		}
	}
	return false
}

func isLocal(host string) bool {
	switch host {
	case "localhost", "127.0.0.1", "::1":
		return true
	}
	return false
}
