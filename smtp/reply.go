package smtp

// parseReplyLine decodes a single physical reply line per RFC 5321
// §4.2: the first three characters are a numeric code in [200, 599],
// the fourth character is '-' for a continuation line or ' ' for the
// last line of the reply, and the remainder is the line's text.
func parseReplyLine(line []byte) (code int, sep byte, text []byte, err error) {
	if len(line) < 3 {
		return 0, 0, nil, newErr(KindProtocol, "reply line shorter than a reply code")
	}
	for i := 0; i < 3; i++ {
		if line[i] < '0' || line[i] > '9' {
			return 0, 0, nil, newErr(KindProtocol, "reply line does not start with a 3-digit code")
		}
	}
	code = int(line[0]-'0')*100 + int(line[1]-'0')*10 + int(line[2]-'0')
	if code < 200 || code > 599 {
		return 0, 0, nil, newErr(KindProtocol, "reply code %d out of range", code)
	}
	if len(line) == 3 {
		return code, ' ', nil, nil
	}
	sep = line[3]
	if sep != '-' && sep != ' ' {
		return 0, 0, nil, newErr(KindProtocol, "reply code not followed by '-' or ' '")
	}
	if len(line) > 4 {
		text = line[4:]
	}
	return code, sep, text, nil
}

// readReply reads one logical SMTP reply, following continuation lines
// (sep == '-') until the final line (sep == ' '). Every continuation
// line must carry the same code; a mismatch is a KindProtocol error.
// The returned Text points into s.buf and is valid only until the next
// line is read into the session's buffer.
func (s *Session) readReply() (Reply, error) {
	var code int
	var text []byte
	first := true
	for {
		n, err := s.readLine()
		if err != nil {
			return Reply{}, err
		}
		lineCode, sep, lineText, err := parseReplyLine(s.buf[:n])
		if err != nil {
			return Reply{}, err
		}
		if first {
			code = lineCode
			first = false
		} else if lineCode != code {
			return Reply{}, newErr(KindProtocol, "continuation line code %d does not match %d", lineCode, code)
		}
		text = lineText
		if sep == ' ' {
			break
		}
	}
	return Reply{Code: code, Text: text, Class: classify(code)}, nil
}
