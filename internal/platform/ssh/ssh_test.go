package ssh

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbforge/dbforge/internal/util/keygen"
)

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil)
	assert.ErrorContains(t, err, "config cannot be nil")

	_, err = NewClient(&Config{User: "dbadmin", PrivateKey: []byte("k")})
	assert.ErrorContains(t, err, "host cannot be empty")

	_, err = NewClient(&Config{Host: "10.0.0.1", PrivateKey: []byte("k")})
	assert.ErrorContains(t, err, "user cannot be empty")

	_, err = NewClient(&Config{Host: "10.0.0.1", User: "dbadmin"})
	assert.ErrorContains(t, err, "private key cannot be empty")

	_, err = NewClient(&Config{Host: "10.0.0.1", User: "dbadmin", PrivateKey: []byte("not a key")})
	assert.ErrorContains(t, err, "failed to parse private key")
}

func TestNewClient_DefaultsAndAddr(t *testing.T) {
	kp, err := keygen.GenerateKeyPair("test")
	require.NoError(t, err)

	c, err := NewClient(&Config{Host: "10.0.1.10", User: "dbadmin", PrivateKey: kp.PrivateKey})
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.10:22", c.Addr())

	recovery, err := NewClient(&Config{Host: "10.0.1.10", Port: 2222, User: "dbrecovery", PrivateKey: kp.PrivateKey})
	require.NoError(t, err)
	assert.Equal(t, "10.0.1.10:2222", recovery.Addr())
}

func TestNewClient_DoesNotMutateCaller(t *testing.T) {
	kp, err := keygen.GenerateKeyPair("test")
	require.NoError(t, err)

	cfg := &Config{Host: "10.0.1.10", User: "dbadmin", PrivateKey: kp.PrivateKey}
	_, err = NewClient(cfg)
	require.NoError(t, err)
	assert.Zero(t, cfg.Port, "caller's config must stay untouched")
	assert.Zero(t, cfg.DialTimeout)
}
