package httpserver

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/s00inx/webserv/internal/config"
)

// bindListen creates a non-blocking, listening IPv4 TCP socket for
// endpoint. Grounded on server/engine/epoll.go's listenSocket, but
// generalized from a fixed [4]byte address to an arbitrary configured
// host and driven through golang.org/x/sys/unix instead of syscall.
func bindListen(endpoint config.ListenerEndpoint, backlog int) (int, error) {
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return -1, fmt.Errorf("httpserver: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("httpserver: setsockopt SO_REUSEADDR: %w", err)
	}

	addr, err := resolveIPv4(endpoint.Host)
	if err != nil {
		unix.Close(fd)
		return -1, err
	}

	sa := &unix.SockaddrInet4{Port: endpoint.Port, Addr: addr}
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("httpserver: bind %s: %w", endpoint.String(), err)
	}
	if err := unix.Listen(fd, backlog); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("httpserver: listen %s: %w", endpoint.String(), err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, fmt.Errorf("httpserver: set nonblock: %w", err)
	}
	return fd, nil
}

func resolveIPv4(host string) ([4]byte, error) {
	var out [4]byte
	if host == "" || host == "0.0.0.0" {
		return out, nil
	}
	ip := net.ParseIP(host)
	if ip == nil {
		return out, fmt.Errorf("httpserver: invalid listen host %q", host)
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return out, fmt.Errorf("httpserver: only IPv4 listen addresses are supported, got %q", host)
	}
	copy(out[:], ip4)
	return out, nil
}

func acceptLoop(listenFd int) (fds []int, remoteAddrs []string, err error) {
	for {
		nfd, sa, aerr := unix.Accept(listenFd)
		if aerr != nil {
			if aerr == unix.EAGAIN {
				return fds, remoteAddrs, nil
			}
			if aerr == unix.EMFILE || aerr == unix.ENFILE {
				// spec.md §5: fd exhaustion is tolerated, not fatal.
				return fds, remoteAddrs, nil
			}
			return fds, remoteAddrs, fmt.Errorf("httpserver: accept: %w", aerr)
		}
		unix.SetNonblock(nfd, true)
		fds = append(fds, nfd)
		remoteAddrs = append(remoteAddrs, formatSockaddr(sa))
	}
}

func formatSockaddr(sa unix.Sockaddr) string {
	if in4, ok := sa.(*unix.SockaddrInet4); ok {
		ip := net.IPv4(in4.Addr[0], in4.Addr[1], in4.Addr[2], in4.Addr[3])
		return fmt.Sprintf("%s:%d", ip.String(), in4.Port)
	}
	return "unknown"
}
