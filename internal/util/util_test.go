package util

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHMACSHA256Hex(t *testing.T) {
	// RFC 4231 test case 2
	got := HMACSHA256Hex("Jefe", "what do ya want for nothing?")
	assert.Equal(t, "5bdcc146bf60754e6a042426089575c75a003f089d2739839dec58b964ec3843", got)
}

func TestValidHMAC(t *testing.T) {
	token := HMACSHA256Hex("secret", "export:42")

	assert.True(t, ValidHMAC("secret", "export:42", token))
	assert.False(t, ValidHMAC("secret", "export:43", token))
	assert.False(t, ValidHMAC("other", "export:42", token))
	assert.False(t, ValidHMAC("secret", "export:42", ""))
}

func TestTail(t *testing.T) {
	assert.Equal(t, "abcd1234", Tail("pay_1700000000000_abcd1234", 8))
	assert.Equal(t, "short", Tail("short", 8))
	assert.Equal(t, "", Tail("", 8))
}

func TestNowISO(t *testing.T) {
	_, err := time.Parse(time.RFC3339, NowISO())
	require.NoError(t, err)
}
