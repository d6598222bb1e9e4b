package money

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromMajor(t *testing.T) {
	assert.Equal(t, Money(30000), FromMajor(300))
	assert.Equal(t, Money(1999), FromMajor(19.99))
	assert.Equal(t, 300.0, Money(30000).Major())
}

func TestPercentAndSplit(t *testing.T) {
	assert.Equal(t, Money(1500), Money(30000).Percent(5))
	assert.Equal(t, Money(3333), Money(10000).Split(3))
	assert.Equal(t, Money(0), Money(10000).Split(0))
	assert.Equal(t, Money(45000), Money(30000).Scale(1.5))
	assert.Equal(t, Money(0), Money(-10).NonNegative())
}

func TestString(t *testing.T) {
	assert.Equal(t, "300.00", Money(30000).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-12.50", Money(-1250).String())
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: 31550})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount": 315.50}`, string(b))

	var got struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a": 19.99, "b": "300"}`), &got))
	assert.Equal(t, Money(1999), got.A)
	assert.Equal(t, Money(30000), got.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a": "abc"}`), &got))
}
