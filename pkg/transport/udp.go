package transport

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/hdds-io/hdds/pkg/guid"
	"github.com/hdds-io/hdds/pkg/herrors"
	"github.com/hdds-io/hdds/pkg/logging"
	"github.com/higebu/netfd"
	"golang.org/x/sys/unix"
)

var udpLog = logging.For("transport.udp")

// TrafficProfile selects which pooled TX socket a send uses — priority
// and clock/txtime policy differ per profile (spec.md §4.3).
type TrafficProfile struct {
	Name string
	DSCP int  // DSCP code point, written to IP_TOS shifted left by 2; 0 to leave unset
	TXTime bool // enable Linux SO_TXTIME pacing on this socket
}

// UDP is the UDP transport plug-in: one pooled TX socket per traffic
// profile, a multicast RX socket with SO_REUSEADDR joining the
// per-domain group (spec.md §4.3).
type UDP struct {
	domainID    uint32
	mcastGroup  net.IP
	mcastPort   int
	iface       *net.Interface
	profiles    []TrafficProfile

	rx      *net.UDPConn
	tx      map[string]*net.UDPConn
	local   guid.Locator
	mtu     int
}

func NewUDP(domainID uint32, mcastGroup net.IP, mcastPort int, iface *net.Interface, profiles []TrafficProfile) *UDP {
	if len(profiles) == 0 {
		profiles = []TrafficProfile{{Name: "default"}}
	}
	return &UDP{
		domainID:   domainID,
		mcastGroup: mcastGroup,
		mcastPort:  mcastPort,
		iface:      iface,
		profiles:   profiles,
		tx:         make(map[string]*net.UDPConn),
		mtu:        1472, // 1500 MTU - 20 IPv4 - 8 UDP, conservative default
	}
}

func (u *UDP) Init() error {
	rx, err := net.ListenMulticastUDP("udp4", u.iface, &net.UDPAddr{IP: u.mcastGroup, Port: u.mcastPort})
	if err != nil {
		return herrors.Wrap(herrors.KindTransportError, "transport.udp", "join multicast group", err)
	}
	if err := setReuseAddr(rx); err != nil {
		udpLog.WithError(err).Warn("SO_REUSEADDR unavailable")
	}
	u.rx = rx

	for _, p := range u.profiles {
		conn, err := net.ListenUDP("udp4", &net.UDPAddr{})
		if err != nil {
			return herrors.Wrap(herrors.KindTransportError, "transport.udp", "open TX socket for profile "+p.Name, err)
		}
		if p.DSCP != 0 {
			if err := setDSCP(conn, p.DSCP); err != nil {
				udpLog.WithError(err).Warn("IP_TOS unavailable for profile " + p.Name)
			}
		}
		if p.TXTime {
			if err := setTXTime(conn); err != nil {
				udpLog.WithError(err).Warn("SO_TXTIME unavailable for profile " + p.Name)
			}
		}
		u.tx[p.Name] = conn
	}

	addr := u.rx.LocalAddr().(*net.UDPAddr)
	u.local = guid.NewUDPv4Locator(0, 0, 0, 0, uint32(addr.Port))
	return nil
}

// Send transmits buf to dst using the default profile's TX socket.
func (u *UDP) Send(buf []byte, dst guid.Locator) error {
	return u.SendProfile("default", buf, dst)
}

func (u *UDP) SendProfile(profile string, buf []byte, dst guid.Locator) error {
	conn, ok := u.tx[profile]
	if !ok {
		return herrors.New(herrors.KindInvalidParameter, "transport.udp", "unknown traffic profile "+profile)
	}
	addr := &net.UDPAddr{IP: net.IPv4(dst.Address[0], dst.Address[1], dst.Address[2], dst.Address[3]), Port: int(dst.Port)}
	_, err := conn.WriteToUDP(buf, addr)
	if err != nil {
		return herrors.Wrap(herrors.KindTransportError, "transport.udp", "sendto", err)
	}
	return nil
}

func (u *UDP) Recv(ctx context.Context, buf []byte) (int, guid.Locator, error) {
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		u.rx.SetReadDeadline(deadline)
	} else {
		u.rx.SetReadDeadline(time.Time{})
	}
	n, addr, err := u.rx.ReadFromUDP(buf)
	if err != nil {
		return 0, guid.Locator{}, herrors.Wrap(herrors.KindTransportError, "transport.udp", "recvfrom", err)
	}
	return n, locatorFromUDPAddr(addr), nil
}

func (u *UDP) TryRecv(buf []byte) (int, guid.Locator, error) {
	u.rx.SetReadDeadline(time.Now())
	n, addr, err := u.rx.ReadFromUDP(buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, guid.Locator{}, ErrWouldBlock
		}
		return 0, guid.Locator{}, herrors.Wrap(herrors.KindTransportError, "transport.udp", "recvfrom", err)
	}
	return n, locatorFromUDPAddr(addr), nil
}

func (u *UDP) LocalLocator() guid.Locator { return u.local }
func (u *UDP) MTU() int                    { return u.mtu }

func (u *UDP) Shutdown() error {
	var firstErr error
	if u.rx != nil {
		if err := u.rx.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	for _, conn := range u.tx {
		if err := conn.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func locatorFromUDPAddr(addr *net.UDPAddr) guid.Locator {
	ip4 := addr.IP.To4()
	if ip4 == nil {
		return guid.Locator{Kind: guid.LocatorKindUDPv4, Port: uint32(addr.Port)}
	}
	return guid.NewUDPv4Locator(ip4[0], ip4[1], ip4[2], ip4[3], uint32(addr.Port))
}

func setReuseAddr(conn *net.UDPConn) error {
	fd := netfd.GetFdFromConn(conn)
	return unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
}

// setDSCP sets IP_TOS for the given traffic profile's DSCP marking
// (spec.md §4.3: "Optional IP_TOS (DSCP)").
func setDSCP(conn *net.UDPConn, dscp int) error {
	fd := netfd.GetFdFromConn(conn)
	return unix.SetsockoptInt(fd, unix.IPPROTO_IP, unix.IP_TOS, dscp<<2)
}

// setTXTime enables Linux SO_TXTIME pacing for TSN-aware traffic
// profiles (spec.md §4.3). The kernel's struct sock_txtime is
// {clockid int32; flags uint32}; we encode it by hand since x/sys/unix
// does not wrap this option with a typed helper.
func setTXTime(conn *net.UDPConn) error {
	fd := netfd.GetFdFromConn(conn)
	var buf [8]byte
	binary.LittleEndian.PutUint32(buf[0:4], uint32(unix.CLOCK_MONOTONIC))
	binary.LittleEndian.PutUint32(buf[4:8], 0)
	return unix.SetsockoptString(fd, unix.SOL_SOCKET, unix.SO_TXTIME, string(buf[:]))
}
