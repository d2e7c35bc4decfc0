package prober

import (
	"context"
	"errors"
	"net"
	"syscall"
	"testing"
	"time"

	config "github.com/NordCoder/netwatch/internal/config/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/icmp"
)

// unprivilegedICMP skips the test when the kernel refuses datagram ICMP
// sockets (net.ipv4.ping_group_range excludes our gid).
func unprivilegedICMP(t *testing.T) *ICMPClient {
	t.Helper()
	conn, err := icmp.ListenPacket("udp4", "0.0.0.0")
	if err != nil {
		if errors.Is(err, syscall.EPERM) || errors.Is(err, syscall.EACCES) {
			t.Skipf("unprivileged icmp not permitted: %v", err)
		}
		t.Skipf("icmp datagram socket unavailable: %v", err)
	}
	_ = conn.Close()
	return NewICMPClient(config.ICMP{Timeout: time.Second})
}

func TestResolve(t *testing.T) {
	ip, err := resolve(context.Background(), "192.0.2.10")
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", ip.String())

	ip, err = resolve(context.Background(), "2001:db8::1")
	require.NoError(t, err)
	assert.Nil(t, ip.To4())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = resolve(ctx, "nonexistent.invalid")
	assert.Error(t, err)
}

func TestICMPClient_ResolveFailureIsTransportError(t *testing.T) {
	cl := NewICMPClient(config.ICMP{Timeout: time.Second})
	_, err := cl.Ping(context.Background(), "nonexistent.invalid", time.Second)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoReply)
	assert.Contains(t, err.Error(), "resolve nonexistent.invalid")
}

func TestSamePeer(t *testing.T) {
	target := net.ParseIP("192.0.2.5")
	cases := []struct {
		name string
		peer net.Addr
		want bool
	}{
		{"raw socket peer", &net.IPAddr{IP: net.ParseIP("192.0.2.5")}, true},
		{"datagram socket peer", &net.UDPAddr{IP: net.ParseIP("192.0.2.5")}, true},
		{"v4-in-v6 form", &net.IPAddr{IP: net.ParseIP("::ffff:192.0.2.5")}, true},
		{"other host raw", &net.IPAddr{IP: net.ParseIP("192.0.2.6")}, false},
		{"other host datagram", &net.UDPAddr{IP: net.ParseIP("198.51.100.5")}, false},
		{"unknown addr type", &net.TCPAddr{IP: net.ParseIP("203.0.113.1")}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, samePeer(tc.peer, target))
		})
	}
}

func TestICMPClient_Socket(t *testing.T) {
	cases := []struct {
		v4, privileged  bool
		network, listen string
	}{
		{true, true, "ip4:icmp", "0.0.0.0"},
		{true, false, "udp4", "0.0.0.0"},
		{false, true, "ip6:ipv6-icmp", "::"},
		{false, false, "udp6", "::"},
	}
	for _, tc := range cases {
		cl := NewICMPClient(config.ICMP{Privileged: tc.privileged})
		network, listen := cl.socket(tc.v4)
		assert.Equal(t, tc.network, network, "v4=%v privileged=%v", tc.v4, tc.privileged)
		assert.Equal(t, tc.listen, listen, "v4=%v privileged=%v", tc.v4, tc.privileged)
	}
}

func TestICMPClient_LoopbackEcho(t *testing.T) {
	cl := unprivilegedICMP(t)

	rtt, err := cl.Ping(context.Background(), "127.0.0.1", time.Second)
	require.NoError(t, err)
	assert.Positive(t, rtt)
	assert.Less(t, rtt, time.Second)
}

func TestICMPClient_NoReplyBeforeDeadline(t *testing.T) {
	cl := unprivilegedICMP(t)

	start := time.Now()
	_, err := cl.Ping(context.Background(), "192.0.2.1", 200*time.Millisecond)
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		t.Skipf("no route for TEST-NET-1: %v", err)
	}
	require.ErrorIs(t, err, ErrNoReply)
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestICMPClient_ContextDeadlineWins(t *testing.T) {
	cl := unprivilegedICMP(t)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err := cl.Ping(ctx, "192.0.2.1", 10*time.Second)
	if errors.Is(err, syscall.ENETUNREACH) || errors.Is(err, syscall.EHOSTUNREACH) {
		t.Skipf("no route for TEST-NET-1: %v", err)
	}
	require.ErrorIs(t, err, ErrNoReply)
	assert.Less(t, time.Since(start), 2*time.Second)
}
