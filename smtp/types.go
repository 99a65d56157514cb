package smtp

import "strings"

// Capabilities is a bitmask over the SMTP extensions recognized from the
// server's EHLO response. Only CapAuthPlain and CapAuthLogin are acted
// upon by the Authenticator; the remaining bits are recorded for the
// caller's inspection but otherwise unused, per spec.
type Capabilities uint8

const (
	CapAuthPlain Capabilities = 1 << iota
	CapAuthLogin
	CapSize
	CapPipelining
	Cap8BitMIME
	CapStartTLS
)

// Has reports whether the capability bit is set.
func (c Capabilities) Has(bit Capabilities) bool { return c&bit != 0 }

// Credentials authenticate the client to the server via AUTH PLAIN or
// AUTH LOGIN, whichever mechanism the server advertises and this client
// prefers.
type Credentials struct {
	Username string
	Password string
}

// Mailbox is an RFC 5322 address plus an optional display name.
type Mailbox struct {
	// Address is required: ASCII, exactly one '@', no CR/LF.
	Address string
	// Name is an optional display name: no CR/LF, no unescaped '"'.
	Name string
}

func (m Mailbox) validate() error {
	if m.Address == "" {
		return newErr(KindInvalidArgument, "mailbox address must not be empty")
	}
	if strings.ContainsAny(m.Address, "\r\n") {
		return newErr(KindInvalidArgument, "mailbox address %q contains CR or LF", m.Address)
	}
	if strings.Count(m.Address, "@") != 1 {
		return newErr(KindInvalidArgument, "mailbox address %q must contain exactly one '@'", m.Address)
	}
	if strings.ContainsAny(m.Name, "\r\n") {
		return newErr(KindInvalidArgument, "mailbox name %q contains CR or LF", m.Name)
	}
	if strings.Contains(m.Name, "\"") {
		// A bare unescaped double quote inside the display name is rejected;
		// a caller wanting a literal quote must escape it as \".
		for i := 0; i < len(m.Name); i++ {
			if m.Name[i] == '"' && (i == 0 || m.Name[i-1] != '\\') {
				return newErr(KindInvalidArgument, "mailbox name %q contains an unescaped quote", m.Name)
			}
		}
	}
	return nil
}

// header renders the mailbox as it appears in an RFC 5322 header field:
// a bare address, or a quoted display name followed by the bracketed
// address when the name needs quoting.
func (m Mailbox) header() string {
	if m.Name == "" {
		return m.Address
	}
	if needsQuoting(m.Name) {
		return "\"" + m.Name + "\" <" + m.Address + ">"
	}
	return m.Name + " <" + m.Address + ">"
}

func needsQuoting(name string) bool {
	for _, r := range name {
		switch {
		case r == ' ':
			return true
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			continue
		case r == '.' || r == '_' || r == '-':
			continue
		default:
			return true
		}
	}
	return false
}

// Message is a structured mail description from which the Session
// composes RFC 5322 headers and a dot-stuffed body.
type Message struct {
	From    Mailbox
	To      []Mailbox
	Cc      []Mailbox
	Bcc     []Mailbox
	Subject string
	Body    string
	// Date is an RFC 5322 date string, e.g. produced by a caller-provided
	// clock. Left empty, the Date header is omitted and the server is
	// expected to stamp one.
	Date string
}

func (m *Message) validate() error {
	if err := m.From.validate(); err != nil {
		return err
	}
	if strings.ContainsAny(m.Subject, "\r\n") {
		return newErr(KindInvalidArgument, "subject contains CR or LF")
	}
	total := len(m.To) + len(m.Cc) + len(m.Bcc)
	if total == 0 {
		return newErr(KindInvalidArgument, "message must have at least one recipient across To/Cc/Bcc")
	}
	for _, list := range [][]Mailbox{m.To, m.Cc, m.Bcc} {
		for _, mb := range list {
			if err := mb.validate(); err != nil {
				return err
			}
		}
	}
	return nil
}

// recipients returns every distinct address across To, Cc, and Bcc, in
// that order, used for RCPT TO. The To and Cc headers are rendered from
// the Mailbox lists themselves.
func (m *Message) recipients() []string {
	seen := make(map[string]bool, len(m.To)+len(m.Cc)+len(m.Bcc))
	var out []string
	for _, list := range [][]Mailbox{m.To, m.Cc, m.Bcc} {
		for _, mb := range list {
			if seen[mb.Address] {
				continue
			}
			seen[mb.Address] = true
			out = append(out, mb.Address)
		}
	}
	return out
}

// Envelope is the raw-send-path envelope: a sender address (possibly
// empty, mapping to "MAIL FROM:<>") and one or more receiver addresses.
// The message content passed alongside an Envelope is opaque to the
// library except for dot-stuffing.
type Envelope struct {
	SenderAddr    string
	ReceiverAddrs []string
}

func (e *Envelope) validate() error {
	if strings.ContainsAny(e.SenderAddr, "\r\n<>") {
		return newErr(KindInvalidArgument, "envelope sender %q contains an illegal character", e.SenderAddr)
	}
	if len(e.ReceiverAddrs) == 0 {
		return newErr(KindInvalidArgument, "envelope must have at least one receiver address")
	}
	for _, addr := range e.ReceiverAddrs {
		if addr == "" || strings.ContainsAny(addr, "\r\n<>") {
			return newErr(KindInvalidArgument, "envelope receiver %q is empty or contains an illegal character", addr)
		}
	}
	return nil
}

// ReplyClass classifies an SMTP reply code by its leading digit.
type ReplyClass int

const (
	ReplyPositiveCompletion ReplyClass = iota // 2xx
	ReplyPositiveIntermediate
	ReplyTransientNegative // 4xx
	ReplyPermanentNegative // 5xx
)

// Reply is one decoded SMTP reply: a numeric code, the text of its final
// line, and a classification. Text points into the Session's buffer and
// is valid only until the next line is read into that buffer.
type Reply struct {
	Code  int
	Text  []byte
	Class ReplyClass
}

func classify(code int) ReplyClass {
	switch code / 100 {
	case 2:
		return ReplyPositiveCompletion
	case 3:
		return ReplyPositiveIntermediate
	case 4:
		return ReplyTransientNegative
	default:
		return ReplyPermanentNegative
	}
}

func (r Reply) ok() bool {
	return r.Class == ReplyPositiveCompletion
}
