package smtp

import "strings"

// splitKeyword splits an EHLO continuation line's text on the first
// space into a keyword and its parameters, per spec.md §4.4.
func splitKeyword(text []byte) (keyword, params string) {
	for i, b := range text {
		if b == ' ' {
			return string(text[:i]), string(text[i+1:])
		}
	}
	return string(text), ""
}

// applyCapability toggles the bits in caps recognized from one EHLO
// continuation line. Unknown keywords are ignored.
func applyCapability(caps *Capabilities, keyword, params string) {
	switch strings.ToUpper(keyword) {
	case "AUTH":
		for _, mech := range strings.Fields(params) {
			switch strings.ToUpper(mech) {
			case "PLAIN":
				*caps |= CapAuthPlain
			case "LOGIN":
				*caps |= CapAuthLogin
			}
		}
	case "SIZE":
		*caps |= CapSize
	case "PIPELINING":
		*caps |= CapPipelining
	case "8BITMIME":
		*caps |= Cap8BitMIME
	case "STARTTLS":
		*caps |= CapStartTLS
	}
}

// ehlo sends "EHLO <clientID>", parses every continuation line of the
// response into the capability bitmask, and falls back to HELO on a
// non-2xx response (leaving the capability mask empty on success).
// Failure of both EHLO and HELO is a KindProtocol error.
func (s *Session) ehlo(clientID string) error {
	if err := s.writeLine("EHLO ", clientID); err != nil {
		return err
	}

	var caps Capabilities
	var code int
	first := true
	for {
		n, err := s.readLine()
		if err != nil {
			return err
		}
		lineCode, sep, text, perr := parseReplyLine(s.buf[:n])
		if perr != nil {
			return perr
		}
		if first {
			code = lineCode
			first = false
		} else if lineCode != code {
			return newErr(KindProtocol, "EHLO continuation line code %d does not match %d", lineCode, code)
		}
		if len(text) > 0 {
			keyword, params := splitKeyword(text)
			applyCapability(&caps, keyword, params)
		}
		if sep == ' ' {
			break
		}
	}

	if classify(code) != ReplyPositiveCompletion {
		return s.helo(clientID)
	}
	s.caps = caps
	return nil
}

// helo sends the HELO fallback; success leaves the capability mask empty.
func (s *Session) helo(clientID string) error {
	reply, err := s.sendCommand("HELO ", clientID)
	if err != nil {
		return err
	}
	if !reply.ok() {
		return newErr(KindProtocol, "EHLO and HELO both rejected (HELO replied %d)", reply.Code)
	}
	s.caps = 0
	return nil
}
