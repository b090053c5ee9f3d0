package payments

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stars-shop/internal/config"
)

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(config.Config{PaymentProvider: "stub", BasePublicURL: "http://localhost:8080"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", p.Name())

	_, err = NewProvider(config.Config{PaymentProvider: "telegram"}, nil)
	assert.Error(t, err)

	_, err = NewProvider(config.Config{PaymentProvider: "paypal"}, nil)
	assert.Error(t, err)
}
