package smtp

import "encoding/base64"

// maxCredentialLen bounds username/password length so that the PLAIN
// mechanism's "\0user\0pass" blob is assembled in a fixed-size stack
// buffer rather than a heap allocation that grows with input; its base64
// encoding goes into the tail of the session buffer.
const maxCredentialLen = 256

// authenticate drives AUTH PLAIN or AUTH LOGIN, preferring PLAIN when
// both are advertised, per spec.md §4.5.
func (s *Session) authenticate(creds Credentials) error {
	switch {
	case s.caps.Has(CapAuthPlain):
		return s.authPlain(creds)
	case s.caps.Has(CapAuthLogin):
		return s.authLogin(creds)
	default:
		return newErr(KindAuthMechanismUnsupported, "server advertised no mutually supported AUTH mechanism")
	}
}

// encodeCredentialTail base64-encodes raw into the tail of s.buf (a
// region distinct from where the command line itself gets assembled)
// and returns it as a string, which by Go's string-from-[]byte
// conversion rules is copied out before writeLine overwrites the buffer.
func (s *Session) encodeCredentialTail(raw []byte) (string, error) {
	encLen := base64.StdEncoding.EncodedLen(len(raw))
	if encLen > len(s.buf) {
		return "", newErr(KindBufferTooSmall, "base64-encoded credential exceeds %d-byte buffer", len(s.buf))
	}
	dst := s.buf[len(s.buf)-encLen:]
	base64.StdEncoding.Encode(dst, raw)
	return string(dst), nil
}

func (s *Session) authPlain(creds Credentials) error {
	if len(creds.Username) > maxCredentialLen || len(creds.Password) > maxCredentialLen {
		return newErr(KindInvalidArgument, "credential exceeds %d-byte limit", maxCredentialLen)
	}
	var raw [2*maxCredentialLen + 2]byte
	n := 1 // raw[0] is the leading NUL; authorization identity is always empty
	n += copy(raw[n:], creds.Username)
	raw[n] = 0
	n++
	n += copy(raw[n:], creds.Password)

	b64, err := s.encodeCredentialTail(raw[:n])
	if err != nil {
		return err
	}
	reply, err := s.sendCommand("AUTH PLAIN ", b64)
	if err != nil {
		return err
	}
	return authReplyToErr(reply)
}

func (s *Session) authLogin(creds Credentials) error {
	reply, err := s.sendCommand("AUTH LOGIN")
	if err != nil {
		return err
	}
	if reply.Code != 334 {
		return midAuthErr(reply)
	}

	if len(creds.Username) > maxCredentialLen {
		return newErr(KindInvalidArgument, "credential exceeds %d-byte limit", maxCredentialLen)
	}
	userB64, err := s.encodeCredentialTail([]byte(creds.Username))
	if err != nil {
		return err
	}
	reply, err = s.sendCommand(userB64)
	if err != nil {
		return err
	}
	if reply.Code != 334 {
		return midAuthErr(reply)
	}

	if len(creds.Password) > maxCredentialLen {
		return newErr(KindInvalidArgument, "credential exceeds %d-byte limit", maxCredentialLen)
	}
	passB64, err := s.encodeCredentialTail([]byte(creds.Password))
	if err != nil {
		return err
	}
	reply, err = s.sendCommand(passB64)
	if err != nil {
		return err
	}
	return authReplyToErr(reply)
}

// authReplyToErr classifies the terminal AUTH reply: 235 succeeds, 535
// or any other 5xx is KindAuthFailed, and 4xx is KindProtocol.
func authReplyToErr(reply Reply) error {
	switch {
	case reply.Code == 235:
		return nil
	case reply.Class == ReplyPermanentNegative:
		return newErr(KindAuthFailed, "server rejected credentials (%d)", reply.Code)
	case reply.Class == ReplyTransientNegative:
		return newErr(KindProtocol, "transient failure during authentication (%d)", reply.Code)
	default:
		return newErr(KindAuthFailed, "unexpected reply during authentication (%d)", reply.Code)
	}
}

// midAuthErr classifies a non-334 reply to an intermediate AUTH LOGIN
// step: any reply that isn't the expected 3xx intermediate terminates
// the dialogue with KindAuthFailed, per spec.md §4.5.
func midAuthErr(reply Reply) error {
	return newErr(KindAuthFailed, "AUTH LOGIN rejected at intermediate step (%d)", reply.Code)
}
