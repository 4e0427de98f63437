// Package servers tracks the MySQL servers available to a scenario, and
// hands out the ports and server ids that cloned servers should use.
package servers

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/VividCortex/mysqlerr"
	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultPort is used when a server DSN omits the port.
const DefaultPort = 3306

// Server is one configured MySQL server.
type Server struct {
	DSN        string
	User       string
	Password   string
	Host       string
	Port       int
	SocketPath string
}

// ParseServer decodes a go-sql-driver DSN, such as
// "root:root@tcp(127.0.0.1:3306)/", into a Server.
func ParseServer(dsn string) (*Server, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, errors.Annotatef(err, "invalid server DSN %q", dsn)
	}
	s := &Server{
		DSN:      dsn,
		User:     cfg.User,
		Password: cfg.Passwd,
	}
	switch cfg.Net {
	case "unix":
		s.Host = "localhost"
		s.SocketPath = cfg.Addr
	default:
		s.Host, s.Port, err = splitHostOptionalPort(cfg.Addr)
		if err != nil {
			return nil, errors.Annotatef(err, "invalid address in server DSN %q", dsn)
		}
		if s.Port == 0 {
			s.Port = DefaultPort
		}
	}
	return s, nil
}

// String returns a "host:port" string, or "localhost:/path/to/socket" for a
// UNIX domain socket.
func (s *Server) String() string {
	if s.SocketPath != "" {
		return s.Host + ":" + s.SocketPath
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ConnectionString renders the server in the form accepted by the
// --server option of the MySQL utilities: user[:passwd]@host[:port][:socket].
func (s *Server) ConnectionString() string {
	var b strings.Builder
	b.WriteString(s.User)
	if s.Password != "" {
		b.WriteByte(':')
		b.WriteString(s.Password)
	}
	b.WriteByte('@')
	if strings.Contains(s.Host, ":") {
		b.WriteString("[" + s.Host + "]")
	} else {
		b.WriteString(s.Host)
	}
	if s.SocketPath != "" {
		fmt.Fprintf(&b, ":%d:%s", DefaultPort, s.SocketPath)
	} else {
		fmt.Fprintf(&b, ":%d", s.Port)
	}
	return b.String()
}

// Ping connects to the server and runs a trivial query.
func (s *Server) Ping(ctx context.Context) error {
	cfg, err := mysql.ParseDSN(s.DSN)
	if err != nil {
		return errors.Trace(err)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	db, err := sqlx.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return errors.Trace(err)
	}
	defer db.Close()
	var version string
	if err := db.GetContext(ctx, &version, "SELECT @@version"); err != nil {
		if IsAccessError(err) {
			return errors.Annotatef(err, "access denied to %s for user %s", s, s.User)
		}
		return errors.Annotatef(err, "unable to connect to %s", s)
	}
	log.Debugf("Server %s is running version %s", s, version)
	return nil
}

// IsAccessError returns true if err is a server response indicating bad
// credentials or a host not permitted to connect.
func IsAccessError(err error) bool {
	merr, ok := errors.Cause(err).(*mysql.MySQLError)
	if !ok {
		return false
	}
	switch merr.Number {
	case mysqlerr.ER_ACCESS_DENIED_ERROR, mysqlerr.ER_DBACCESS_DENIED_ERROR,
		mysqlerr.ER_HOST_NOT_PRIVILEGED, mysqlerr.ER_HOST_IS_BLOCKED,
		mysqlerr.ER_SPECIFIC_ACCESS_DENIED_ERROR:
		return true
	}
	return false
}

func splitHostOptionalPort(hostaddr string) (string, int, error) {
	if hostaddr == "" {
		return "", 0, errors.New("blank host address")
	}
	// ipv6 without port, or ipv4 or hostname without port
	if hostaddr[0] == '[' && hostaddr[len(hostaddr)-1] == ']' {
		return hostaddr[1 : len(hostaddr)-1], 0, nil
	} else if !strings.Contains(hostaddr, ":") {
		return hostaddr, 0, nil
	}
	host, portString, err := net.SplitHostPort(hostaddr)
	if err != nil {
		return "", 0, err
	}
	port, err := strconv.Atoi(portString)
	if err != nil {
		return "", 0, err
	} else if port < 1 || port > 65535 {
		return "", 0, errors.Errorf("invalid port %d", port)
	}
	return host, port, nil
}
