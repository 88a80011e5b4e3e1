// Package socks implements the SOCKS4 and SOCKS5 client handshakes the
// upstream SOCKS layer performs against an upstream proxy before treating
// the resulting stream as a direct origin connection, promoted from a
// client's "dial out through a proxy" helpers into server-side "relay this
// connection through a proxy" negotiation.
package socks

import (
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"

	netproxy "golang.org/x/net/proxy"

	pcerrors "github.com/wirespy/proxycore/pkg/errors"
)

var (
	errNotIPv4        = errors.New("socks4: no IPv4 address found for target host")
	errSocks4Rejected = errors.New("socks4: request rejected or failed")
	errSocks4NoIdentd = errors.New("socks4: identd unreachable")
	errSocks4BadUserID = errors.New("socks4: identd could not confirm user id")
	errSocks4Unknown  = errors.New("socks4: unknown response status")
)

// Auth carries optional upstream-proxy credentials.
type Auth struct {
	Username string
	Password string
}

// DialSocks4 performs the SOCKS4 CONNECT handshake against proxyAddr for
// targetHost:targetPort and returns the now-tunneled connection. SOCKS4
// requires an IPv4 target address, resolved here the same way a SOCKS4
// connectViaSOCKS4Proxy does (hand-rolled binary protocol, no SOCKS4a
// hostname-forwarding extension).
func DialSocks4(ctx context.Context, proxyAddr, targetHost string, targetPort int, auth Auth, timeout time.Duration) (net.Conn, error) {
	ips, err := net.DefaultResolver.LookupIP(ctx, "ip4", targetHost)
	if err != nil || len(ips) == 0 {
		return nil, pcerrors.NewDNSError(targetHost, err)
	}
	targetIP := ips[0].To4()
	if targetIP == nil {
		return nil, pcerrors.NewConnectionError(targetHost, targetPort, errNotIPv4)
	}

	dialer := &net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", proxyAddr)
	if err != nil {
		return nil, pcerrors.NewConnectionError(proxyAddr, 0, err)
	}

	req := []byte{0x04, 0x01, byte(targetPort >> 8), byte(targetPort & 0xFF)}
	req = append(req, targetIP...)
	if auth.Username != "" {
		req = append(req, []byte(auth.Username)...)
	}
	req = append(req, 0x00)

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, pcerrors.NewIOError("writing SOCKS4 request", err)
	}

	resp := make([]byte, 8)
	if _, err := io.ReadFull(conn, resp); err != nil {
		conn.Close()
		return nil, pcerrors.NewIOError("reading SOCKS4 response", err)
	}
	if resp[0] != 0x00 || resp[1] != 0x5A {
		conn.Close()
		return nil, pcerrors.NewConnectionError(proxyAddr, 0, socks4StatusError(resp[1]))
	}

	return conn, nil
}

// DialSocks5 performs the SOCKS5 handshake via golang.org/x/net/proxy,
// the same way a SOCKS5 client resolving through the proxy does — DNS for the target
// resolves through the proxy by default, matching SOCKS5's remote-DNS
// behavior (scheme socks5h in ServerSpec).
func DialSocks5(ctx context.Context, proxyAddr, targetHost string, targetPort int, auth Auth, timeout time.Duration) (net.Conn, error) {
	var a *netproxy.Auth
	if auth.Username != "" {
		a = &netproxy.Auth{User: auth.Username, Password: auth.Password}
	}

	dialer, err := netproxy.SOCKS5("tcp", proxyAddr, a, &net.Dialer{Timeout: timeout})
	if err != nil {
		return nil, pcerrors.NewConnectionError(proxyAddr, 0, err)
	}

	targetAddr := net.JoinHostPort(targetHost, strconv.Itoa(targetPort))
	if ctxDialer, ok := dialer.(netproxy.ContextDialer); ok {
		conn, err := ctxDialer.DialContext(ctx, "tcp", targetAddr)
		if err != nil {
			return nil, pcerrors.NewConnectionError(targetAddr, 0, err)
		}
		return conn, nil
	}
	conn, err := dialer.Dial("tcp", targetAddr)
	if err != nil {
		return nil, pcerrors.NewConnectionError(targetAddr, 0, err)
	}
	return conn, nil
}

func socks4StatusError(code byte) error {
	switch code {
	case 0x5B:
		return errSocks4Rejected
	case 0x5C:
		return errSocks4NoIdentd
	case 0x5D:
		return errSocks4BadUserID
	default:
		return errSocks4Unknown
	}
}
