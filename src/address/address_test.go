package address

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromLedger(t *testing.T) {
	addr, err := FromLedger("DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(addr.String(), Prefix))
	require.Len(t, addr.String(), len(Prefix)+64)

	again, err := FromLedger("DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK")
	require.NoError(t, err)
	require.Equal(t, addr, again)

	other, err := FromLedger("DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKL")
	require.NoError(t, err)
	require.NotEqual(t, addr, other)

	_, err = Parse(addr.String())
	require.NoError(t, err)
}

func TestFromLedgerInvalid(t *testing.T) {
	cases := []string{
		"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNS"[:20],
		"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKK!@",
		"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CN0KK",
	}
	for _, c := range cases {
		_, err := FromLedger(c)
		require.True(t, errors.Is(err, ErrInvalidLedgerAddress), "%q: %v", c, err)
	}
}

func TestParse(t *testing.T) {
	valid := Prefix + "1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef"
	_, err := Parse(valid)
	require.NoError(t, err)

	invalid := []string{
		"xx1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdef",
		Prefix + "1234567890abcdef1234567890abcdef",
		Prefix + "1234567890abcdef1234567890abcdef1234567890abcdef1234567890abcdeg",
	}
	for _, s := range invalid {
		_, err := Parse(s)
		require.True(t, errors.Is(err, ErrInvalidAddress), "%q: %v", s, err)
	}
}

func TestDJB2(t *testing.T) {
	// h = 5381*33 + 'a'
	require.Equal(t, uint64(5381*33+'a'), djb2("a"))
}

func TestFromLedgerLength(t *testing.T) {
	// shorter base58 forms of 32 byte values are accepted
	for _, s := range []string{
		"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSK",
		strings.Repeat("1", 32),
	} {
		_, err := FromLedger(s)
		require.NoError(t, err, "%q", s)
	}

	for _, s := range []string{
		strings.Repeat("1", 31),
		"DYw8jCTfwHNRJhhmFcbXvVDTqWMEVFBX6ZKUmG5CNSKKz",
	} {
		_, err := FromLedger(s)
		require.True(t, errors.Is(err, ErrInvalidLedgerAddress), "%q: %v", s, err)
	}
}
