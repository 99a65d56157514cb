package smtp

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func readySession(t *testing.T, ehloLine string, auth *Credentials) (*Session, *scriptedTransport) {
	t.Helper()
	tr := newScriptedTransport("220 mail.example.com ESMTP ready\r\n" + ehloLine)
	s := &Session{}
	err := s.Connect(context.Background(), ConnectConfig{
		Transport:      tr,
		Buffer:         make([]byte, 256),
		RemoteEndpoint: "mail.example.com:25",
		Auth:           auth,
	})
	require.NoError(t, err)
	return s, tr
}

func TestSend_MultipleRecipientsAndDotStuffing(t *testing.T) {
	s, tr := readySession(t, "250 mail.example.com Hello\r\n", nil)
	// Queue the transaction's replies after the already-consumed greeting/EHLO.
	tr.script = append(tr.script,
		"250 OK\r\n"...)
	tr.script = append(tr.script, "250 OK\r\n"...)
	tr.script = append(tr.script, "251 User not local; will forward\r\n"...)
	tr.script = append(tr.script, "354 Start mail input\r\n"...)
	tr.script = append(tr.script, "250 OK: queued as 12345\r\n"...)

	msg := &Message{
		From: Mailbox{Address: "sender@example.com"},
		To: []Mailbox{
			{Address: "alice@example.com"},
			{Address: "bob@example.com"},
		},
		Subject: "Status update",
		Body:    ".leading dot\r\n..already\r\nok",
	}
	require.NoError(t, s.Send(msg))
	require.Equal(t, StateReady, s.State())

	// writtenCommands splits every CRLF-terminated write, including header
	// and body content lines; only the leading envelope/command subsequence
	// is asserted here, the body separately via substring checks below.
	cmds := tr.writtenCommands()
	require.Equal(t, []string{
		"EHLO localhost",
		"MAIL FROM:<sender@example.com>",
		"RCPT TO:<alice@example.com>",
		"RCPT TO:<bob@example.com>",
		"DATA",
	}, cmds[:5])

	wire := string(tr.written())
	require.Contains(t, wire, "From: sender@example.com\r\n")
	require.Contains(t, wire, "To: alice@example.com, bob@example.com\r\n")
	require.Contains(t, wire, "Subject: Status update\r\n")
	require.Contains(t, wire, "MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	require.Contains(t, wire, "..leading dot\r\n...already\r\nok\r\n.\r\n")
}

func TestSend_RCPTRejectedThenRecoversOnSameSession(t *testing.T) {
	s, tr := readySession(t, "250 Hello\r\n", nil)
	tr.script = append(tr.script, ("250 OK\r\n" +
		"550 No such user\r\n" +
		"250 Flushed\r\n" +
		"250 OK\r\n" +
		"250 OK\r\n" +
		"354 Start mail input\r\n" +
		"250 OK: queued\r\n")...)

	msg := &Message{
		From: Mailbox{Address: "sender@example.com"},
		To:   []Mailbox{{Address: "nobody@example.com"}},
		Body: "hello",
	}
	err := s.Send(msg)
	require.Error(t, err)
	require.True(t, IsKind(err, KindProtocol))
	require.Equal(t, StateReady, s.State(), "a rejected RCPT recovers to Ready via RSET")

	require.NoError(t, s.Send(msg))
	require.Equal(t, StateReady, s.State())

	cmds := tr.writtenCommands()
	require.Equal(t, []string{
		"EHLO localhost",
		"MAIL FROM:<sender@example.com>",
		"RCPT TO:<nobody@example.com>",
		"RSET",
		"MAIL FROM:<sender@example.com>",
		"RCPT TO:<nobody@example.com>",
		"DATA",
	}, cmds[:7])
}

func TestSend_DataRejectedClosesSession(t *testing.T) {
	s, tr := readySession(t, "250 Hello\r\n", nil)
	tr.script = append(tr.script, ("250 OK\r\n" +
		"250 OK\r\n" +
		"550 no DATA for you\r\n")...)

	msg := &Message{
		From: Mailbox{Address: "sender@example.com"},
		To:   []Mailbox{{Address: "x@example.com"}},
		Body: "hello",
	}
	err := s.Send(msg)
	require.Error(t, err)
	require.True(t, IsKind(err, KindProtocol))
	require.Equal(t, StateClosed, s.State())
	require.True(t, tr.closed)
}

func TestSendRaw_PassesThroughDotStuffing(t *testing.T) {
	s, tr := readySession(t, "250 Hello\r\n", nil)
	tr.script = append(tr.script, ("250 OK\r\n" +
		"250 OK\r\n" +
		"354 Start mail input\r\n" +
		"250 OK: queued\r\n")...)

	env := &Envelope{
		SenderAddr:    "raw@example.com",
		ReceiverAddrs: []string{"dest@example.com"},
	}
	data := []byte("From: raw@example.com\r\nTo: dest@example.com\r\nSubject: Raw\r\n\r\nHello world\r\n")
	require.NoError(t, s.SendRaw(env, data))

	cmds := tr.writtenCommands()
	require.Equal(t, []string{
		"EHLO localhost",
		"MAIL FROM:<raw@example.com>",
		"RCPT TO:<dest@example.com>",
		"DATA",
	}, cmds[:4])
	require.Contains(t, string(tr.written()), string(data)+".\r\n")
}

func TestSend_RejectsNilAndInvalidMessage(t *testing.T) {
	s, _ := readySession(t, "250 Hello\r\n", nil)
	err := s.Send(nil)
	require.Error(t, err)
	require.True(t, IsKind(err, KindInvalidArgument))

	err = s.Send(&Message{From: Mailbox{Address: "a@example.com"}})
	require.Error(t, err)
	require.True(t, IsKind(err, KindInvalidArgument), "message with no recipients is rejected before any command is sent")
}
