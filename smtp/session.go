package smtp

import (
	"context"
)

// State is the Session's place in its lifecycle: Unconnected -> Ready ->
// Closed. A Session's zero value is Unconnected, so a caller may
// value-initialize one (var s smtp.Session) and pass it straight to
// Connect, mirroring the teacher's zero-value-safe config structs.
type State uint8

const (
	StateUnconnected State = iota
	StateReady
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnconnected:
		return "unconnected"
	case StateReady:
		return "ready"
	case StateClosed:
		return "closed"
	default:
		return "invalid"
	}
}

// Logger is the narrow logging surface a Session optionally narrates
// through. A caller's own logger satisfies it with a single method; nil
// is a valid, silent logger and the Session never allocates one itself.
type Logger interface {
	Warning(actorName interface{}, err error, template string, values ...interface{})
}

// DefaultClientID is used for the EHLO/HELO argument when ConnectConfig
// supplies none.
const DefaultClientID = "localhost"

// ConnectConfig configures Connect. Transport and Buffer are borrowed for
// the Session's lifetime; the Session never allocates replacement
// storage for either.
type ConnectConfig struct {
	// Transport is the caller-supplied, not-yet-connected collaborator.
	Transport Transport
	// Buffer is the sole working memory for encoding outbound lines and
	// receiving inbound ones. 512 bytes is the recommended minimum.
	Buffer []byte
	// RemoteEndpoint is passed to Transport.Connect verbatim.
	RemoteEndpoint string
	// Auth, if non-nil, triggers AUTH PLAIN/LOGIN after a successful EHLO.
	Auth *Credentials
	// ClientID is the EHLO/HELO argument; defaults to DefaultClientID.
	ClientID string
	// Clock, if set, supplies the RFC 5322 Date header text for messages
	// that don't set Message.Date themselves. Left nil, the header is
	// omitted and the server is expected to stamp one.
	Clock func() string
	// Logger, if set, receives diagnostic narration of protocol faults.
	// It is never required and is never allocated by the Session.
	Logger Logger
}

// Session represents one SMTP dialogue. It borrows a transport handle
// and a byte buffer for its entire lifetime and cannot be reused past
// Closed without a fresh zero-valued Session.
type Session struct {
	transport Transport
	buf       []byte
	state     State
	caps      Capabilities
	clock     func() string
	logger    Logger
}

// State returns the Session's current lifecycle state.
func (s *Session) State() State { return s.state }

// Capabilities returns the capability bitmask discovered during the most
// recent successful Connect's EHLO exchange.
func (s *Session) Capabilities() Capabilities { return s.caps }

// Connect dials cfg.Transport to cfg.RemoteEndpoint, reads the greeting,
// negotiates EHLO (falling back to HELO), and, if cfg.Auth is set,
// authenticates. On any failure the transport is closed and the Session
// is left Unconnected; on success the Session becomes Ready.
func (s *Session) Connect(ctx context.Context, cfg ConnectConfig) error {
	if s.state != StateUnconnected {
		return newErr(KindAlreadyConnected, "session is %s", s.state)
	}
	if cfg.Transport == nil {
		return newErr(KindInvalidArgument, "transport must not be nil")
	}
	if len(cfg.Buffer) == 0 {
		return newErr(KindInvalidArgument, "buffer must not be empty")
	}
	s.transport = cfg.Transport
	s.buf = cfg.Buffer
	s.clock = cfg.Clock
	s.logger = cfg.Logger

	if err := s.transport.Connect(ctx, cfg.RemoteEndpoint); err != nil {
		terr := wrapTransportErr(err, "connect")
		s.abortConnect(terr)
		return terr
	}

	if err := s.handshake(cfg); err != nil {
		s.abortConnect(err)
		return err
	}

	s.state = StateReady
	return nil
}

// abortConnect closes the transport and returns the session to
// Unconnected, per spec: "any failure closes the transport and returns
// the session to the UNCONNECTED state with the taxonomy error."
func (s *Session) abortConnect(cause error) {
	s.warn("Connect", cause, "aborting connect")
	_ = s.transport.Close()
	s.transport = nil
	s.buf = nil
	s.state = StateUnconnected
}

func (s *Session) handshake(cfg ConnectConfig) error {
	greeting, err := s.readReply()
	if err != nil {
		return err
	}
	if greeting.Code != 220 {
		return newErr(KindProtocol, "greeting: expected 220, got %d", greeting.Code)
	}

	clientID := cfg.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}
	if err := s.ehlo(clientID); err != nil {
		return err
	}

	if cfg.Auth != nil {
		if err := s.authenticate(*cfg.Auth); err != nil {
			return err
		}
	}
	return nil
}

// Close sends QUIT, accepts any reply to it (a non-2xx reply is only
// narrated through the Logger), closes the transport, and transitions to
// Closed. Calling Close outside Ready is NotConnected.
func (s *Session) Close() error {
	if s.state != StateReady {
		return newErr(KindNotConnected, "session is %s", s.state)
	}
	reply, err := s.sendCommand("QUIT")
	if err != nil {
		s.warn("Close", err, "QUIT failed, closing transport anyway")
	} else if reply.Class != ReplyPositiveCompletion {
		s.warn("Close", nil, "QUIT replied %d, closing transport anyway", reply.Code)
	}
	closeErr := s.transport.Close()
	s.state = StateClosed
	s.transport = nil
	s.buf = nil
	if err != nil {
		return err
	}
	if closeErr != nil {
		return wrapTransportErr(closeErr, "close")
	}
	return nil
}

func (s *Session) warn(actor string, err error, template string, args ...interface{}) {
	if s.logger == nil {
		return
	}
	s.logger.Warning(actor, err, template, args...)
}

// requireReady fails fast with NotConnected, per spec: "Calling send*
// outside Ready => NotConnected."
func (s *Session) requireReady() error {
	if s.state != StateReady {
		return newErr(KindNotConnected, "session is %s", s.state)
	}
	return nil
}
