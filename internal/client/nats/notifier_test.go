package nats

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatMoney(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		places   int32
		expected string
	}{
		{name: "plain value", value: "100", places: 2, expected: "100,00"},
		{name: "thousands grouping", value: "1234567.89", places: 2, expected: "1.234.567,89"},
		{name: "crypto precision", value: "0.5", places: 8, expected: "0,50000000"},
		{name: "negative value", value: "-1500.5", places: 2, expected: "-1.500,50"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatMoney(decimal.RequireFromString(tt.value), tt.places)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestDecodeReply(t *testing.T) {
	t.Run("payload decodes", func(t *testing.T) {
		var out struct {
			CurrentBalance string `json:"current_balance"`
		}
		err := decodeReply([]byte(`{"current_balance":"10.5"}`), &out)
		assert.NoError(t, err)
		assert.Equal(t, "10.5", out.CurrentBalance)
	})

	t.Run("rejection surfaces message", func(t *testing.T) {
		var out struct{}
		err := decodeReply([]byte(`{"success":false,"message":"no funds"}`), &out)
		assert.ErrorContains(t, err, "no funds")
	})

	t.Run("success envelope with payload decodes", func(t *testing.T) {
		var out struct {
			Allowed bool `json:"allowed"`
		}
		err := decodeReply([]byte(`{"success":true,"allowed":true}`), &out)
		assert.NoError(t, err)
		assert.True(t, out.Allowed)
	})
}
