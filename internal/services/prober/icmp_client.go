package prober

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	config "github.com/NordCoder/netwatch/internal/config/monitor"
	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

// ErrNoReply means the echo request went out but nothing came back in time.
var ErrNoReply = errors.New("no echo reply")

const (
	protocolICMP     = 1
	protocolIPv6ICMP = 58
	maxPacket        = 1500
)

type ICMPClient struct {
	cfg config.ICMP
	id  int
	seq atomic.Uint32
}

func NewICMPClient(cfg config.ICMP) *ICMPClient {
	if cfg.PayloadSize <= 0 {
		cfg.PayloadSize = 32
	}
	return &ICMPClient{cfg: cfg, id: os.Getpid() & 0xffff}
}

// Ping sends a single ICMP echo request and waits for the matching reply.
// It returns ErrNoReply when the deadline passes without one.
func (cl *ICMPClient) Ping(ctx context.Context, address string, timeout time.Duration) (time.Duration, error) {
	if timeout <= 0 {
		timeout = cl.cfg.Timeout
	}
	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	ip, err := resolve(ctx, address)
	if err != nil {
		return 0, fmt.Errorf("resolve %s: %w", address, err)
	}
	v4 := ip.To4() != nil

	network, listen := cl.socket(v4)
	conn, err := icmp.ListenPacket(network, listen)
	if err != nil {
		return 0, fmt.Errorf("listen %s: %w", network, err)
	}
	defer conn.Close()

	seq := int(cl.seq.Add(1) & 0xffff)
	payload := bytes.Repeat([]byte{'n'}, cl.cfg.PayloadSize)

	var typ icmp.Type = ipv4.ICMPTypeEcho
	if !v4 {
		typ = ipv6.ICMPTypeEchoRequest
	}
	msg := icmp.Message{
		Type: typ,
		Code: 0,
		Body: &icmp.Echo{ID: cl.id, Seq: seq, Data: payload},
	}
	wb, err := msg.Marshal(nil)
	if err != nil {
		return 0, fmt.Errorf("marshal echo: %w", err)
	}

	if err := conn.SetDeadline(deadline); err != nil {
		return 0, fmt.Errorf("set deadline: %w", err)
	}

	var dst net.Addr = &net.IPAddr{IP: ip}
	if !cl.cfg.Privileged {
		dst = &net.UDPAddr{IP: ip}
	}

	start := time.Now()
	if _, err := conn.WriteTo(wb, dst); err != nil {
		return 0, fmt.Errorf("write echo: %w", err)
	}

	proto := protocolICMP
	if !v4 {
		proto = protocolIPv6ICMP
	}
	rb := make([]byte, maxPacket)
	for {
		n, peer, err := conn.ReadFrom(rb)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				return 0, ErrNoReply
			}
			return 0, fmt.Errorf("read reply: %w", err)
		}
		rtt := time.Since(start)

		rm, err := icmp.ParseMessage(proto, rb[:n])
		if err != nil {
			continue
		}
		if rm.Type != ipv4.ICMPTypeEchoReply && rm.Type != ipv6.ICMPTypeEchoReply {
			continue
		}
		echo, ok := rm.Body.(*icmp.Echo)
		if !ok || echo.Seq != seq {
			continue
		}
		// unprivileged datagram sockets get their ID rewritten by the kernel
		if cl.cfg.Privileged && echo.ID != cl.id {
			continue
		}
		if !samePeer(peer, ip) {
			continue
		}
		return rtt, nil
	}
}

func (cl *ICMPClient) socket(v4 bool) (network, listen string) {
	switch {
	case v4 && cl.cfg.Privileged:
		return "ip4:icmp", "0.0.0.0"
	case v4:
		return "udp4", "0.0.0.0"
	case cl.cfg.Privileged:
		return "ip6:ipv6-icmp", "::"
	default:
		return "udp6", "::"
	}
}

func resolve(ctx context.Context, address string) (net.IP, error) {
	if ip := net.ParseIP(address); ip != nil {
		return ip, nil
	}
	addrs, err := net.DefaultResolver.LookupIPAddr(ctx, address)
	if err != nil {
		return nil, err
	}
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no addresses for %s", address)
	}
	for _, a := range addrs {
		if a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return addrs[0].IP, nil
}

func samePeer(peer net.Addr, ip net.IP) bool {
	switch p := peer.(type) {
	case *net.IPAddr:
		return p.IP.Equal(ip)
	case *net.UDPAddr:
		return p.IP.Equal(ip)
	default:
		return true
	}
}
