package utils

import (
	"cmp"
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
)

// SetupSignalHandler returns a context which is cancelled on SIGINT or SIGTERM.
// a second signal terminates the process.
func SetupSignalHandler() context.Context {
	ctx, cancel := context.WithCancel(context.Background())

	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-c
		cancel()
		<-c
		os.Exit(1)
	}()
	return ctx
}

// IsIPv4 returns true if IP is of type IPV4
func IsIPv4(ip net.IP) bool {
	// Note: when Creating net.IP using net package e.g via net.ParseIP() it creates
	// IP with a fixed size of net.IPv6Len, so we cannot rely on length.
	return ip.To4() != nil
}

// PathExists returns true if path exists in the system or false if it doesnt
// in case of error, and error is returned
func PathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	} else if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// IPToIPNet coverts IP or CIDR formatted string to *net.IPNet.
// if no CIDR notation, then /32 or /128 mask is assumed for ipv4 and ipv6 respectively.
// unlike net.ParseCIDR the returned IPNet keeps host bits masked off.
func IPToIPNet(ip string) (*net.IPNet, error) {
	if !strings.Contains(ip, "/") {
		ipp := net.ParseIP(ip)
		if ipp == nil {
			return nil, fmt.Errorf("failed to parse ip: %s", ip)
		}
		if ipp.To4() != nil {
			ip += "/32"
		} else {
			ip += "/128"
		}
	}
	_, ipn, err := net.ParseCIDR(ip)
	return ipn, err
}

// SortedKeys returns the keys of m in ascending order
func SortedKeys[K cmp.Ordered, V any](m map[K]V) []K {
	keys := make([]K, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
