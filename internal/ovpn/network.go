package ovpn

import (
	"fmt"
	"net"
	"net/netip"
	"strings"

	"go4.org/netipx"
)

// VPNPrefix combines the vpn_network and vpn_mask settings into a prefix.
// The mask must be contiguous and the network must carry no host bits.
func VPNPrefix(network, mask string) (netip.Prefix, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(network))
	if err != nil || !addr.Is4() {
		return netip.Prefix{}, fmt.Errorf("vpn network %q is not an IPv4 address", network)
	}
	maskAddr, err := netip.ParseAddr(strings.TrimSpace(mask))
	if err != nil || !maskAddr.Is4() {
		return netip.Prefix{}, fmt.Errorf("vpn mask %q is not an IPv4 mask", mask)
	}
	raw := maskAddr.As4()
	ipNet := &net.IPNet{IP: net.IP(addr.AsSlice()), Mask: net.IPMask(raw[:])}
	prefix, ok := netipx.FromStdIPNet(ipNet)
	if !ok {
		return netip.Prefix{}, fmt.Errorf("vpn mask %q is not contiguous", mask)
	}
	if prefix.Masked().Addr() != addr {
		return netip.Prefix{}, fmt.Errorf("vpn network %q has host bits set for mask %q", network, mask)
	}
	return prefix, nil
}
