package tokencrypt

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"encoding/hex"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func newTestCipher(t *testing.T) *Cipher {
	t.Helper()
	c, err := New(testKey)
	require.NoError(t, err)
	return c
}

func TestNew_Errors(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrMissingKey)

	_, err = New("abcd")
	assert.ErrorIs(t, err, ErrInvalidKey)

	_, err = New(strings.Repeat("zz", 32))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestEncryptDecrypt_RoundTrip(t *testing.T) {
	c := newTestCipher(t)

	for _, s := range []string{"", "a", "AT1", strings.Repeat("x", 16), strings.Repeat("long-token.", 200), "üñí©ødé"} {
		enc, err := c.Encrypt(s)
		require.NoError(t, err)
		assert.Len(t, strings.Split(enc, ":"), 2)

		dec, err := c.Decrypt(enc)
		require.NoError(t, err)
		assert.Equal(t, s, dec)
	}
}

func TestEncrypt_CBCWithPKCS7Padding(t *testing.T) {
	c := newTestCipher(t)
	key, err := hex.DecodeString(testKey)
	require.NoError(t, err)

	enc, err := c.Encrypt("AT1")
	require.NoError(t, err)
	parts := strings.Split(enc, ":")
	iv, err := hex.DecodeString(parts[0])
	require.NoError(t, err)
	ct, err := hex.DecodeString(parts[1])
	require.NoError(t, err)
	require.Len(t, ct, aes.BlockSize)

	block, err := aes.NewCipher(key)
	require.NoError(t, err)
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)

	want := append([]byte("AT1"), bytes.Repeat([]byte{13}, 13)...)
	assert.Equal(t, want, out)
}

func TestEncrypt_FreshIV(t *testing.T) {
	c := newTestCipher(t)

	a, err := c.Encrypt("same-token")
	require.NoError(t, err)
	b, err := c.Encrypt("same-token")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.NotEqual(t, strings.Split(a, ":")[0], strings.Split(b, ":")[0])
}

func TestDecrypt_Malformed(t *testing.T) {
	c := newTestCipher(t)
	valid, err := c.Encrypt("x")
	require.NoError(t, err)
	iv := strings.Split(valid, ":")[0]

	for _, in := range []string{
		"nothexnocollon",
		"",
		":",
		"abc:def:012",
		"zz:zz",
		"00:" + strings.Repeat("00", 16),
		iv + ":abcd",
	} {
		_, err := c.Decrypt(in)
		assert.ErrorIs(t, err, ErrMalformedData, "input %q", in)
	}
}

func TestDecrypt_WrongKey(t *testing.T) {
	c := newTestCipher(t)
	enc, err := c.Encrypt("secret")
	require.NoError(t, err)

	other, err := New(strings.Repeat("ab", 32))
	require.NoError(t, err)

	dec, err := other.Decrypt(enc)
	if err == nil {
		assert.NotEqual(t, "secret", dec)
	}
}

func TestCipher_Concurrent(t *testing.T) {
	c := newTestCipher(t)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			enc, err := c.Encrypt("token")
			assert.NoError(t, err)
			dec, err := c.Decrypt(enc)
			assert.NoError(t, err)
			assert.Equal(t, "token", dec)
		}()
	}
	wg.Wait()
}

func TestDerivePassword(t *testing.T) {
	c := newTestCipher(t)

	a1, err := c.DerivePassword("loc-1")
	require.NoError(t, err)
	a2, err := c.DerivePassword("loc-1")
	require.NoError(t, err)
	b, err := c.DerivePassword("loc-2")
	require.NoError(t, err)

	assert.Equal(t, a1, a2)
	assert.NotEqual(t, a1, b)
	assert.Len(t, a1, 32)
}
