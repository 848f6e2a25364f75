package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundCurrency_HalfUp(t *testing.T) {
	cases := map[string]string{
		"1.005":   "1.01",
		"1.004":   "1",
		"83.3333": "83.33",
		"60":      "60",
		"0.125":   "0.13",
	}
	for in, want := range cases {
		got := RoundCurrency(MustDecimal(in))
		assert.True(t, got.Equal(MustDecimal(want)), "round(%s) = %s, want %s", in, got, want)
	}
}

func TestMustDecimal_Panics(t *testing.T) {
	assert.Panics(t, func() { MustDecimal("six") })
}

func TestRoundStored(t *testing.T) {
	cases := map[string]string{
		"2.12345":  "2.1235",
		"2.12344":  "2.1234",
		"10.00005": "10.0001",
		"2.5":      "2.5",
	}
	for in, want := range cases {
		got := RoundStored(MustDecimal(in))
		assert.True(t, got.Equal(MustDecimal(want)), "round(%s) = %s, want %s", in, got, want)
	}

	assert.Nil(t, RoundStoredPtr(nil))
	assert.True(t, RoundStoredPtr(Ptr(MustDecimal("3.33335"))).Equal(MustDecimal("3.3334")))
}
