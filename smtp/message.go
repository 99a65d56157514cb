package smtp

import "strings"

// dotCRLF is the literal end-of-data terminator: a line containing only
// a dot. It is a package-level value that is never modified, not
// assembled through s.buf, since it never varies.
var dotCRLF = []byte(".\r\n")

// Send runs one mail transaction from a structured Message: MAIL FROM,
// RCPT TO for every distinct address across To/Cc/Bcc, DATA, RFC 5322
// headers, the dot-stuffed body, and the end-of-data dot.
func (s *Session) Send(msg *Message) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	if msg == nil {
		return newErr(KindInvalidArgument, "message must not be nil")
	}
	if err := msg.validate(); err != nil {
		return err
	}
	return s.runTransaction(msg.From.Address, msg.recipients(), func() error {
		return s.writeHeadersAndBody(msg)
	})
}

// SendRaw runs one mail transaction from a raw envelope and an opaque,
// already-formed message (headers and data). Dot-stuffing is still
// applied to every outgoing content line — see SPEC_FULL.md's Open
// Questions for why the raw path does not bypass it.
func (s *Session) SendRaw(env *Envelope, data []byte) error {
	if err := s.requireReady(); err != nil {
		return err
	}
	if env == nil {
		return newErr(KindInvalidArgument, "envelope must not be nil")
	}
	if err := env.validate(); err != nil {
		return err
	}
	return s.runTransaction(env.SenderAddr, env.ReceiverAddrs, func() error {
		return s.writeDotStuffedBody(data)
	})
}

// runTransaction drives MAIL FROM / RCPT TO* / DATA / body / end-of-data
// common to both the structured and raw send paths, applying spec.md
// §7's fault-recovery policy: a rejected MAIL or RCPT triggers RSET and
// returns to Ready, and a rejected end-of-data reply leaves the session
// Ready; a rejected DATA, a body write failure, or any transport error
// closes the session. Invalid recipients or addresses are reported
// before any command is sent and leave the session unchanged.
func (s *Session) runTransaction(sender string, recipients []string, writeBody func() error) error {
	if len(recipients) == 0 {
		return newErr(KindInvalidArgument, "at least one recipient is required")
	}
	if err := validateAddress(sender); err != nil {
		return err
	}
	for _, addr := range recipients {
		if err := validateAddress(addr); err != nil {
			return err
		}
	}

	reply, err := s.sendCommand("MAIL FROM:<", sender, ">")
	if err != nil {
		s.closeOnFault()
		return err
	}
	if reply.Code != 250 {
		return s.abortTransaction(reply)
	}

	for _, addr := range recipients {
		reply, err = s.sendCommand("RCPT TO:<", addr, ">")
		if err != nil {
			s.closeOnFault()
			return err
		}
		if reply.Code != 250 && reply.Code != 251 {
			return s.abortTransaction(reply)
		}
	}

	reply, err = s.sendCommand("DATA")
	if err != nil {
		s.closeOnFault()
		return err
	}
	if reply.Code != 354 {
		s.closeOnFault()
		return newErr(KindProtocol, "DATA rejected with reply %d", reply.Code)
	}

	if err := writeBody(); err != nil {
		s.closeOnFault()
		return err
	}

	reply, err = s.readReply()
	if err != nil {
		s.closeOnFault()
		return err
	}
	if reply.Code != 250 {
		// The server aborted only this transaction; the session stays Ready.
		return newErr(KindProtocol, "end-of-data rejected with reply %d", reply.Code)
	}
	return nil
}

// abortTransaction issues RSET after a rejected MAIL or RCPT step. A
// successful RSET returns the session to Ready with a KindProtocol
// error describing the rejection; a failed RSET closes the session.
func (s *Session) abortTransaction(cause Reply) error {
	rsetReply, err := s.sendCommand("RSET")
	if err != nil {
		s.closeOnFault()
		return err
	}
	if rsetReply.Code != 250 {
		s.closeOnFault()
		return newErr(KindProtocol, "RSET after rejected mail step replied %d", rsetReply.Code)
	}
	return newErr(KindProtocol, "mail step rejected with reply %d", cause.Code)
}

// closeOnFault transitions the session to Closed and releases the
// transport, per spec.md §7's default fault-recovery policy.
func (s *Session) closeOnFault() {
	s.state = StateClosed
	if s.transport != nil {
		_ = s.transport.Close()
	}
}

// writeHeadersAndBody emits RFC 5322 headers in spec.md §4.6's order —
// Date, From, To, Cc, Subject, MIME-Version, Content-Type — followed by
// a blank line and the dot-stuffed body.
func (s *Session) writeHeadersAndBody(msg *Message) error {
	date := msg.Date
	if date == "" && s.clock != nil {
		date = s.clock()
	}
	if date != "" {
		if err := s.writeContentLine([]byte("Date: " + date)); err != nil {
			return err
		}
	}
	if err := s.writeContentLine([]byte("From: " + msg.From.header())); err != nil {
		return err
	}
	if err := s.writeContentLine([]byte("To: " + joinHeaderList(msg.To))); err != nil {
		return err
	}
	if len(msg.Cc) > 0 {
		if err := s.writeContentLine([]byte("Cc: " + joinHeaderList(msg.Cc))); err != nil {
			return err
		}
	}
	if msg.Subject != "" {
		if err := s.writeContentLine([]byte("Subject: " + msg.Subject)); err != nil {
			return err
		}
	}
	if err := s.writeContentLine([]byte("MIME-Version: 1.0")); err != nil {
		return err
	}
	if err := s.writeContentLine([]byte("Content-Type: text/plain; charset=utf-8")); err != nil {
		return err
	}
	if err := s.writeContentLine(nil); err != nil {
		return err
	}
	return s.writeDotStuffedBody([]byte(msg.Body))
}

func joinHeaderList(mailboxes []Mailbox) string {
	parts := make([]string, len(mailboxes))
	for i, mb := range mailboxes {
		parts[i] = mb.header()
	}
	return strings.Join(parts, ", ")
}

// writeContentLine dot-stuffs a single line (one that must not itself
// contain CR or LF) and writes it, CRLF-terminated, through s.buf.
func (s *Session) writeContentLine(line []byte) error {
	extra := 0
	if len(line) > 0 && line[0] == '.' {
		extra = 1
	}
	if len(line)+extra+2 > len(s.buf) {
		return newErr(KindBufferTooSmall, "content line exceeds %d-byte buffer", len(s.buf))
	}
	n := 0
	if extra == 1 {
		s.buf[0] = '.'
		n = 1
	}
	n += copy(s.buf[n:], line)
	s.buf[n] = '\r'
	s.buf[n+1] = '\n'
	return s.writeFull(s.buf[:n+2])
}

// writeDotStuffedBody splits data on line boundaries (CRLF or bare LF;
// a bare CR not followed by LF is rejected), dot-stuffs and writes each
// line, and always terminates with a lone "." line.
func (s *Session) writeDotStuffedBody(data []byte) error {
	i := 0
	for i < len(data) {
		start := i
		for i < len(data) && data[i] != '\r' && data[i] != '\n' {
			i++
		}
		line := data[start:i]
		if i < len(data) {
			if data[i] == '\r' {
				if i+1 >= len(data) || data[i+1] != '\n' {
					return newErr(KindInvalidArgument, "body contains a bare CR not followed by LF")
				}
				i += 2
			} else {
				i++ // bare LF, normalized to CRLF by writeContentLine's terminator
			}
		}
		if err := s.writeContentLine(line); err != nil {
			return err
		}
	}
	return s.writeFull(dotCRLF)
}
