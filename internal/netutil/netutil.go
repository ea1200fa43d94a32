// Package netutil finds the addresses the server is reachable on.
package netutil

import (
	"net"
	"strconv"
)

// LANIPv4 returns the first IPv4 address of an interface that is up and not a
// loopback. It returns nil when there is none.
func LANIPv4() net.IP {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}
	return firstIPv4(ifaces, func(iface net.Interface) ([]net.Addr, error) {
		return iface.Addrs()
	})
}

func firstIPv4(ifaces []net.Interface, addrs func(net.Interface) ([]net.Addr, error)) net.IP {
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		list, err := addrs(iface)
		if err != nil {
			continue
		}
		for _, a := range list {
			var ip net.IP
			switch v := a.(type) {
			case *net.IPNet:
				ip = v.IP
			case *net.IPAddr:
				ip = v.IP
			}
			if ip4 := ip.To4(); ip4 != nil && !ip4.IsLoopback() && !ip4.IsLinkLocalUnicast() {
				return ip4
			}
		}
	}
	return nil
}

// DisplayHost returns the host used in the printed server address. The
// wildcard address is shown as 127.0.0.1.
func DisplayHost(host string) string {
	if host == "0.0.0.0" {
		return "127.0.0.1"
	}
	return host
}

// URL returns http://host:port, bracketing IPv6 literals.
func URL(host string, port int) string {
	return "http://" + net.JoinHostPort(host, strconv.Itoa(port))
}

// LANURL returns the LAN URL for port. An unknown LAN address prints as
// "undefined".
func LANURL(ip net.IP, port int) string {
	host := "undefined"
	if ip != nil {
		host = ip.String()
	}
	return URL(host, port)
}
