package dane

import (
	"bufio"
	"crypto/tls"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

const bufsize = 2048

// logLine appends line to transcript and emits it at debug level tagged
// with direction ("send"/"recv"), the way verify.go's verification driver
// logs per-usage outcomes through the same *logrus.Entry.
func logLine(log *logrus.Entry, transcript *string, direction, line string) {
	*transcript += fmt.Sprintf("%s: %s\n", direction, line)
	log.WithField("direction", direction).Debug(line)
}

// getTCPconn establishes the plaintext TCP connection a STARTTLS
// negotiation runs over before TLS is activated.
func getTCPconn(address net.IP, port int, timeout int) (net.Conn, error) {
	dialer := getDialer(timeout)
	return dialer.Dial("tcp", addressString(address, port))
}

// DoXMPP connects to an XNPP server, issue a STARTTLS command, negotiates
// TLS and returns a TLS connection. See RFC 6120, Section 5.4.2 for details.
func DoXMPP(tlsconfig *tls.Config, opts *DialOptions, log *logrus.Entry) (*tls.Conn, error) {

	var servicename, rolename string
	var line, transcript string

	log = log.WithField("app", "xmpp")
	buf := make([]byte, bufsize)

	server := opts.Server
	conn, err := getTCPconn(server.Ipaddr, server.Port, opts.TimeoutTCP)
	if err != nil {
		return nil, err
	}
	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	if opts.Servicename != "" {
		servicename = opts.Servicename
	} else {
		servicename = server.Name
	}

	switch opts.Appname {
	case "xmpp-client":
		rolename = "client"
	case "xmpp-server":
		rolename = "server"
	}

	// send initial stream header
	outstring := fmt.Sprintf(
		"<?xml version='1.0'?><stream:stream to='%s' "+
			"version='1.0' xml:lang='en' xmlns='jabber:%s' "+
			"xmlns:stream='http://etherx.jabber.org/streams'>",
		servicename, rolename)
	logLine(log, &transcript, "send", outstring)
	writer.WriteString(outstring)
	writer.Flush()

	// read response stream header; look for STARTTLS feature support
	_, err = reader.Read(buf)
	if err != nil {
		return nil, err
	}
	line = string(buf)
	logLine(log, &transcript, "recv", line)
	gotSTARTTLS := false
	if strings.Contains(line, "<starttls") && strings.Contains(line,
		"urn:ietf:params:xml:ns:xmpp-tls") {
		gotSTARTTLS = true
	}
	if !gotSTARTTLS {
		log.Warn("XMPP STARTTLS feature not advertised")
		return nil, fmt.Errorf("XMPP STARTTLS unavailable")
	}

	// issue STARTTLS command
	outstring = "<starttls xmlns='urn:ietf:params:xml:ns:xmpp-tls'/>"
	logLine(log, &transcript, "send", outstring)
	writer.WriteString(outstring + "\r\n")
	writer.Flush()

	// read response and look for proceed element
	_, err = reader.Read(buf)
	if err != nil {
		return nil, err
	}
	line = string(buf)
	logLine(log, &transcript, "recv", line)
	if !strings.Contains(line, "<proceed") {
		log.Warn("XMPP peer refused STARTTLS")
		return nil, fmt.Errorf("XMPP STARTTLS command failed")
	}

	opts.Transcript = transcript
	return TLShandshake(conn, tlsconfig)
}

// DoPOP3 connects to a POP3 server, sends the STLS command, negotiates TLS,
// and returns a TLS connection.
func DoPOP3(tlsconfig *tls.Config, opts *DialOptions, log *logrus.Entry) (*tls.Conn, error) {

	var line, transcript string

	log = log.WithField("app", "pop3")
	server := opts.Server
	conn, err := getTCPconn(server.Ipaddr, server.Port, opts.TimeoutTCP)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Read POP3 greeting
	line, err = reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	logLine(log, &transcript, "recv", line)

	// Send STLS command
	logLine(log, &transcript, "send", "STLS")
	writer.WriteString("STLS\r\n")
	writer.Flush()

	// Read STLS response, look for +OK
	line, err = reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	logLine(log, &transcript, "recv", line)
	if !strings.HasPrefix(line, "+OK") {
		log.Warn("POP3 STLS unavailable")
		return nil, fmt.Errorf("POP3 STARTTLS unavailable")
	}

	opts.Transcript = transcript
	return TLShandshake(conn, tlsconfig)
}

// DoIMAP connects to an IMAP server, issues a STARTTLS command, negotiates
// TLS, and returns a TLS connection.
func DoIMAP(tlsconfig *tls.Config, opts *DialOptions, log *logrus.Entry) (*tls.Conn, error) {

	var gotSTARTTLS bool
	var line, transcript string

	log = log.WithField("app", "imap")
	server := opts.Server
	conn, err := getTCPconn(server.Ipaddr, server.Port, opts.TimeoutTCP)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Read IMAP greeting
	line, err = reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	logLine(log, &transcript, "recv", line)

	// Send Capability command, read response, looking for STARTTLS
	logLine(log, &transcript, "send", ". CAPABILITY")
	writer.WriteString(". CAPABILITY\r\n")
	writer.Flush()

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		logLine(log, &transcript, "recv", line)
		if strings.HasPrefix(line, "* CAPABILITY") && strings.Contains(line, "STARTTLS") {
			gotSTARTTLS = true
		}
		if strings.HasPrefix(line, ". OK") {
			break
		}
	}

	if !gotSTARTTLS {
		log.Warn("IMAP STARTTLS capability not advertised")
		return nil, fmt.Errorf("IMAP STARTTLS capability unavailable")
	}

	// Send STARTTLS
	logLine(log, &transcript, "send", ". STARTTLS")
	writer.WriteString(". STARTTLS\r\n")
	writer.Flush()

	// Look for OK response
	line, err = reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	logLine(log, &transcript, "recv", line)
	if !strings.HasPrefix(line, ". OK") {
		log.Warn("IMAP peer refused STARTTLS")
		return nil, fmt.Errorf("STARTTLS failed to negotiate")
	}

	opts.Transcript = transcript
	return TLShandshake(conn, tlsconfig)
}

// parseSMTPline parses an SMTP protocol line, and returns the replycode,
// command string, whether the response is done (for a multi-line response),
// and an error (on failure).
func parseSMTPline(line string) (int, string, bool, error) {

	var responseDone = false

	replycode, err := strconv.Atoi(line[:3])
	if err != nil {
		return 0, "", responseDone, fmt.Errorf("invalid reply code: %s", line)
	}
	if line[3] != '-' {
		responseDone = true
	}
	rest := line[4:]
	return replycode, rest, responseDone, err
}

// DoSMTP connects to an SMTP server, checks for STARTTLS support, negotiates
// TLS, and returns a TLS connection.
func DoSMTP(tlsconfig *tls.Config, opts *DialOptions, log *logrus.Entry) (*tls.Conn, error) {

	var replycode int
	var line, rest, transcript string
	var responseDone, gotSTARTTLS bool

	log = log.WithField("app", "smtp")
	server := opts.Server
	conn, err := getTCPconn(server.Ipaddr, server.Port, opts.TimeoutTCP)
	if err != nil {
		return nil, err
	}

	reader := bufio.NewReader(conn)
	writer := bufio.NewWriter(conn)

	// Read possibly multi-line SMTP greeting
	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		logLine(log, &transcript, "recv", line)
		replycode, _, responseDone, err = parseSMTPline(line)
		if err != nil {
			return nil, err
		}
		if responseDone {
			break
		}
	}
	if replycode != 220 {
		return nil, fmt.Errorf("invalid reply code (%d) in SMTP greeting", replycode)
	}

	// Send EHLO, read possibly multi-line response, look for STARTTLS
	logLine(log, &transcript, "send", "EHLO localhost")
	writer.WriteString("EHLO localhost\r\n")
	writer.Flush()

	for {
		line, err = reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimRight(line, "\r\n")
		logLine(log, &transcript, "recv", line)
		replycode, rest, responseDone, err = parseSMTPline(line)
		if err != nil {
			return nil, err
		}
		if replycode != 250 {
			return nil, fmt.Errorf("invalid reply code in EHLO response")
		}
		if strings.Contains(rest, "STARTTLS") {
			gotSTARTTLS = true
		}
		if responseDone {
			break
		}
	}

	if !gotSTARTTLS {
		log.Warn("SMTP STARTTLS support not detected in EHLO response")
		return nil, fmt.Errorf("SMTP STARTTLS support not detected")
	}

	// Send STARTTLS command and read success reply code
	logLine(log, &transcript, "send", "STARTTLS")
	writer.WriteString("STARTTLS\r\n")
	writer.Flush()

	line, err = reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimRight(line, "\r\n")
	logLine(log, &transcript, "recv", line)
	replycode, _, _, err = parseSMTPline(line)
	if err != nil {
		return nil, err
	}
	if replycode != 220 {
		log.Warn("SMTP peer refused STARTTLS command")
		return nil, fmt.Errorf("invalid reply code to STARTTLS command")
	}

	opts.Transcript = transcript
	return TLShandshake(conn, tlsconfig)
}

// StartTLS dispatches to the negotiation routine for opts.Appname and
// returns the resulting TLS connection, logging the transcript through log
// at debug level as it goes.
func StartTLS(tlsconfig *tls.Config, opts *DialOptions, log *logrus.Entry) (*tls.Conn, error) {

	switch opts.Appname {
	case "smtp":
		return DoSMTP(tlsconfig, opts, log)
	case "imap":
		return DoIMAP(tlsconfig, opts, log)
	case "pop3":
		return DoPOP3(tlsconfig, opts, log)
	case "xmpp-client", "xmpp-server":
		return DoXMPP(tlsconfig, opts, log)
	default:
		return nil, fmt.Errorf("unknown STARTTLS application: %s", opts.Appname)
	}
}
