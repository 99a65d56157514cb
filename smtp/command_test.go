package smtp

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateAddress_RejectsIllegalCharacters(t *testing.T) {
	for _, addr := range []string{"a@b\r\nc", "a@b\rc", "a@b\nc", "<a@b>", "a@b>c", "a@b<c"} {
		require.Error(t, validateAddress(addr), "address %q should be rejected", addr)
	}
}

func TestValidateAddress_AcceptsOrdinaryAddress(t *testing.T) {
	require.NoError(t, validateAddress("a@example.com"))
	require.NoError(t, validateAddress(""))
}

func TestSendCommand_WritesLineAndReadsReply(t *testing.T) {
	tr := newScriptedTransport("250 OK\r\n")
	s := &Session{transport: tr, buf: make([]byte, 64)}
	reply, err := s.sendCommand("RSET")
	require.NoError(t, err)
	require.Equal(t, 250, reply.Code)
	require.Equal(t, []string{"RSET"}, tr.writtenCommands())
}

func TestBase64RoundTrip_OfASCIICredentials(t *testing.T) {
	for _, cred := range []string{"alice", "s3cret", "", "a very long credential string indeed"} {
		s := &Session{buf: make([]byte, 256)}
		encoded, err := s.encodeCredentialTail([]byte(cred))
		require.NoError(t, err)
		decoded, err := base64.StdEncoding.DecodeString(encoded)
		require.NoError(t, err)
		require.Equal(t, cred, string(decoded))
	}
}
