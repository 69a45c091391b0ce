package clocksync

import (
	"fmt"
	"net"
)

// AddrResolver returns the local IPv4 address the reference peer should send
// timestamps to, given the peer's host:port.
type AddrResolver func(server string) (net.IP, error)

// OutboundIPv4 picks the source address the kernel would route to server
// with. Dialing UDP sends nothing; it only selects a route. When that yields
// nothing usable it falls back to the first non-loopback interface address.
func OutboundIPv4(server string) (net.IP, error) {
	if conn, err := net.Dial("udp4", server); err == nil {
		local, ok := conn.LocalAddr().(*net.UDPAddr)
		conn.Close()
		if ok && local.IP.To4() != nil && !local.IP.IsUnspecified() {
			return local.IP.To4(), nil
		}
	}
	return InterfaceIPv4()
}

// InterfaceIPv4 returns the first non-loopback IPv4 address on the host.
func InterfaceIPv4() (net.IP, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return nil, fmt.Errorf("failed to list interface addresses: %w", err)
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		if ip4 := ipNet.IP.To4(); ip4 != nil {
			return ip4, nil
		}
	}
	return nil, ErrNetworkUnavailable
}
