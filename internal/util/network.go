package util

import (
	"errors"
	"log"
	"net"
	"strings"
)

// DefaultPort is used when the listen address carries no port.
const DefaultPort = "9080"

// InterfaceIPv4 returns the first IPv4 address bound to an interface.
func InterfaceIPv4(name string) (string, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return "", err
	}
	addrs, err := iface.Addrs()
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		ip, _, err := net.ParseCIDR(addr.String())
		if err != nil {
			continue
		}
		if v4 := ip.To4(); v4 != nil {
			return v4.String(), nil
		}
	}
	return "", errors.New("no IPv4 address found")
}

// ResolveListenAddress combines the configured listen address with an
// optional interface name. When the interface has an IPv4 address the server
// binds to it on the configured port; otherwise the address is used as given.
func ResolveListenAddress(listen, listenInterface string) string {
	return resolveListenAddress(listen, listenInterface, InterfaceIPv4)
}

func resolveListenAddress(listen, listenInterface string, lookup func(string) (string, error)) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		trimmed := strings.TrimPrefix(strings.TrimSpace(listen), ":")
		if trimmed == "" {
			port = DefaultPort
		} else {
			port = trimmed
		}
		host = ""
	}
	listenInterface = strings.TrimSpace(listenInterface)
	if listenInterface == "" {
		if host == "" {
			return ":" + port
		}
		return net.JoinHostPort(host, port)
	}
	ip, err := lookup(listenInterface)
	if err != nil || ip == "" {
		log.Printf("warning: unable to resolve IP for interface %s: %v", listenInterface, err)
		if host == "" {
			return ":" + port
		}
		return net.JoinHostPort(host, port)
	}
	return net.JoinHostPort(ip, port)
}
