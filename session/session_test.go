package session

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerConfigValidateRejectsNonMulticast(t *testing.T) {
	cfg := ServerConfig{
		DiscoveryGroup: &net.UDPAddr{IP: net.ParseIP("192.168.1.1"), Port: 7890},
		TransferGroup:  &net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 7891},
	}
	_, _, err := cfg.validate()
	assert.Error(t, err)
}

func TestServerConfigValidateRejectsMismatchedFamily(t *testing.T) {
	cfg := ServerConfig{
		DiscoveryGroup: &net.UDPAddr{IP: net.ParseIP("239.1.2.3"), Port: 7890},
		TransferGroup:  &net.UDPAddr{IP: net.ParseIP("ff18::2"), Port: 7891},
	}
	_, _, err := cfg.validate()
	assert.Error(t, err)
}

func TestResolveUnicastRejectsMismatchedExplicitFamily(t *testing.T) {
	iface, err := net.InterfaceByIndex(1)
	if err != nil {
		t.Skip("no loopback interface available in this sandbox")
	}

	_, err = resolveUnicast(iface, net.ParseIP("ff18::2"), false)
	assert.Error(t, err)
}

func TestResolveUnicastAcceptsMatchingExplicit(t *testing.T) {
	iface, err := net.InterfaceByIndex(1)
	if err != nil {
		t.Skip("no loopback interface available in this sandbox")
	}

	ip, err := resolveUnicast(iface, net.ParseIP("127.0.0.1"), false)
	require.NoError(t, err)
	assert.True(t, ip.Equal(net.ParseIP("127.0.0.1")))
}

func TestUnicastBindSetsZoneForLinkLocal(t *testing.T) {
	addr := unicastBind(net.ParseIP("fe80::1"), "eth0")
	assert.Equal(t, "eth0", addr.Zone)

	addr = unicastBind(net.ParseIP("192.168.1.1"), "eth0")
	assert.Empty(t, addr.Zone)
}
