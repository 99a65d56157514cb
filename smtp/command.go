package smtp

import "strings"

// validateAddress rejects any address containing CR, LF, '<', or '>',
// per spec.md §4.3's envelope argument validation.
func validateAddress(addr string) error {
	if strings.ContainsAny(addr, "\r\n<>") {
		return newErr(KindInvalidArgument, "address %q contains an illegal character", addr)
	}
	return nil
}

// sendCommand encodes parts as one outbound line (verbs are always
// passed upper-case by the caller) and reads back the resulting reply,
// including any continuation lines.
func (s *Session) sendCommand(parts ...string) (Reply, error) {
	if err := s.writeLine(parts...); err != nil {
		return Reply{}, err
	}
	return s.readReply()
}
