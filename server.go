package dane

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Server contains a information about a single TLS server: hostname,
// IP address (net.IP) and port number.
type Server struct {
	Name   string
	Ipaddr net.IP
	Port   int
}

const defaultTCPTimeout = 10 // seconds

// NewServer returns an initialized Server structure from given
// name, IP address, and port.
func NewServer(name string, ip interface{}, port int) *Server {
	s := new(Server)
	s.Name = name
	switch ip.(type) {
	case net.IP:
		s.Ipaddr = ip.(net.IP)
	case string:
		s.Ipaddr = net.ParseIP(ip.(string))
	}
	s.Port = port
	return s
}

// Address returns an address string for the Server, bracketing IPv6
// addresses the way net.Dial expects ("[::1]:443").
func (s *Server) Address() string {
	return addressString(s.Ipaddr, s.Port)
}

func addressString(ipaddress net.IP, port int) string {
	addr := ipaddress.String()
	if !strings.Contains(addr, ":") {
		return addr + ":" + strconv.Itoa(port)
	}
	return "[" + addr + "]" + ":" + strconv.Itoa(port)
}

// String returns a string representation of Server.
func (s *Server) String() string {
	return fmt.Sprintf("%s %s", s.Name, s.Address())
}

// DialOptions configures DialTLS/DialStartTLS: the target Server, the
// STARTTLS application name (if any) and its service name, and the TCP
// connect timeout in seconds.
type DialOptions struct {
	Server      *Server
	Appname     string // "", "smtp", "imap", "pop3", "xmpp-client", "xmpp-server"
	Servicename string
	TimeoutTCP  int
	Transcript  string // populated with the STARTTLS negotiation log after dialing
}

// NewDialOptions returns DialOptions targeting server with no STARTTLS
// negotiation and a default TCP connect timeout.
func NewDialOptions(server *Server) *DialOptions {
	return &DialOptions{Server: server, TimeoutTCP: defaultTCPTimeout}
}
