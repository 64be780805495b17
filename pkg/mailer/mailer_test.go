package mailer

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSend_NoRecipients(t *testing.T) {
	s := NewSMTP(Config{Host: "localhost", Port: 25, From: "bridge@example.com"})
	err := s.Send(context.Background(), "subject", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recipients")
}

func TestSend_InvalidFromAddress(t *testing.T) {
	s := NewSMTP(Config{
		Host: "localhost",
		Port: 25,
		From: "not an address",
		To:   []string{"ops@example.com"},
	})
	err := s.Send(context.Background(), "subject", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "from address")
}

func TestSend_InvalidRecipient(t *testing.T) {
	s := NewSMTP(Config{
		Host: "localhost",
		Port: 25,
		From: "bridge@example.com",
		To:   []string{"also not an address"},
	})
	err := s.Send(context.Background(), "subject", "body")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "to addresses")
}
