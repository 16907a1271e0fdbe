// Package transport owns the socket-level connection to the prediction
// daemon.
//
// Two usage patterns exist. The fcitx front-end issues one-shot requests:
// connect, write one frame, read one line, close. The TSF front-end runs a
// background Worker that keeps a connection open, drains an outbox, and
// streams responses back through a callback.
package transport

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"aetherime/internal/logging"
	"aetherime/internal/wire"
)

// ErrUnavailable is returned for any connect, send, or receive failure.
// Callers treat it as "no result": the daemon being away is never an error
// the user sees.
var ErrUnavailable = errors.New("transport: daemon unavailable")

// Endpoint identifies the daemon: either a Unix socket path or a TCP
// host:port pair.
type Endpoint struct {
	SocketPath string
	Host       string
	Port       int
}

// UnixEndpoint returns an endpoint for a filesystem socket path.
func UnixEndpoint(path string) Endpoint {
	return Endpoint{SocketPath: path}
}

// TCPEndpoint returns an endpoint for a TCP host and port.
func TCPEndpoint(host string, port int) Endpoint {
	return Endpoint{Host: host, Port: port}
}

// Network returns the net.Dial network name for the endpoint.
func (e Endpoint) Network() string {
	if e.SocketPath != "" {
		return "unix"
	}
	return "tcp"
}

// Address returns the net.Dial address for the endpoint.
func (e Endpoint) Address() string {
	if e.SocketPath != "" {
		return e.SocketPath
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

func (e Endpoint) String() string {
	if e.SocketPath != "" {
		return "unix:" + e.SocketPath
	}
	return "tcp:" + e.Address()
}

// Valid reports whether the endpoint names a destination at all.
func (e Endpoint) Valid() bool {
	return e.SocketPath != "" || (e.Host != "" && e.Port > 0)
}

// dial connects to the endpoint and applies low-latency socket options.
func dial(ep Endpoint, timeout time.Duration) (net.Conn, error) {
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.Dial(ep.Network(), ep.Address())
	if err != nil {
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetNoDelay(true)
	}
	return conn, nil
}

// Client performs one-shot request/response exchanges with the daemon.
type Client struct {
	endpoint    Endpoint
	dialTimeout time.Duration
	log         *logging.Logger
}

// NewClient creates a one-shot client for the given endpoint.
func NewClient(ep Endpoint) *Client {
	return &Client{
		endpoint:    ep,
		dialTimeout: 2 * time.Second,
		log:         logging.Default().WithComponent("transport"),
	}
}

// Endpoint returns the configured daemon endpoint.
func (c *Client) Endpoint() Endpoint { return c.endpoint }

// Request sends one frame and reads one response line. Any transport
// failure yields (nil, ErrUnavailable); the caller treats that as "no
// result" and carries on.
func (c *Client) Request(frame []byte) ([]byte, error) {
	if !c.endpoint.Valid() {
		return nil, ErrUnavailable
	}

	conn, err := dial(c.endpoint, c.dialTimeout)
	if err != nil {
		c.log.Debug("connect failed", "endpoint", c.endpoint.String(), "error", err)
		return nil, ErrUnavailable
	}
	defer conn.Close()

	if _, err := conn.Write(frame); err != nil {
		c.log.Debug("write failed", "error", err)
		return nil, ErrUnavailable
	}

	line, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		c.log.Debug("read failed", "error", err)
		return nil, ErrUnavailable
	}
	return line, nil
}

// Ping checks daemon liveness with a ping frame.
func (c *Client) Ping() bool {
	line, err := c.Request(wire.EncodePing())
	if err != nil {
		return false
	}
	rsp, err := wire.DecodeResponse(line)
	return err == nil && rsp.Pong
}

// Predict performs a one-shot predict exchange. A transport failure, an
// error frame, or a non-predict response all return (nil, nil): prediction
// is best-effort and the absence of a result is not an error surface.
func (c *Client) Predict(req wire.PredictRequest) (*wire.PredictResponse, error) {
	frame, err := wire.EncodePredict(req)
	if err != nil {
		return nil, fmt.Errorf("transport: %w", err)
	}

	line, err := c.Request(frame)
	if err != nil {
		return nil, nil
	}

	rsp, err := wire.DecodeResponse(line)
	if err != nil {
		c.log.Debug("undecodable response", "error", err)
		return nil, nil
	}
	return rsp.Predict, nil
}

// EndpointFromEnv resolves the daemon endpoint from the environment,
// preferring the Unix socket variable over the TCP pair.
//
//	AETHERIME_SOCKET                      unix socket path (default /tmp/aetherime.sock)
//	SHURUFA_ENGINE_HOST / _PORT           TCP endpoint (default 127.0.0.1:48080)
func EndpointFromEnv(getenv func(string) string) Endpoint {
	if path := getenv("AETHERIME_SOCKET"); path != "" {
		return UnixEndpoint(path)
	}
	host := getenv("SHURUFA_ENGINE_HOST")
	portVar := getenv("SHURUFA_ENGINE_PORT")
	if host != "" || portVar != "" {
		if host == "" {
			host = "127.0.0.1"
		}
		port := 48080
		if p, err := strconv.Atoi(strings.TrimSpace(portVar)); err == nil && p > 0 && p <= 65535 {
			port = p
		}
		return TCPEndpoint(host, port)
	}
	return UnixEndpoint("/tmp/aetherime.sock")
}
