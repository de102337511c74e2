package ratelimit_test

import (
	"testing"

	"github.com/serroba/admission-gate/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeState(t *testing.T) {
	t.Parallel()

	raw := ratelimit.EncodeState(ratelimit.TokenBucketState{Version: 7, Tokens: 3, UpdatedAt: 1000})

	assert.JSONEq(t, `{"v":1,"tokens":3,"updatedAt":1000}`, raw)
}

func TestDecodeState(t *testing.T) {
	t.Parallel()

	t.Run("accepts the current version", func(t *testing.T) {
		t.Parallel()

		state, err := ratelimit.DecodeState(`{"v":1,"tokens":4,"updatedAt":1700000000000}`)

		require.NoError(t, err)
		assert.Equal(t, ratelimit.TokenBucketState{
			Version:   ratelimit.StateVersion,
			Tokens:    4,
			UpdatedAt: 1_700_000_000_000,
		}, state)
	})

	t.Run("reads unversioned records", func(t *testing.T) {
		t.Parallel()

		state, err := ratelimit.DecodeState(`{"tokens":0,"updatedAt":5}`)

		require.NoError(t, err)
		assert.Equal(t, int64(0), state.Tokens)
		assert.Equal(t, ratelimit.StateVersion, state.Version)
	})

	corrupt := map[string]string{
		"empty":               "",
		"not json":            "{not json",
		"array":               "[1,2]",
		"unsupported version": `{"v":2,"tokens":1,"updatedAt":5}`,
		"missing tokens":      `{"v":1,"updatedAt":5}`,
		"missing updatedAt":   `{"v":1,"tokens":1}`,
		"negative tokens":     `{"v":1,"tokens":-1,"updatedAt":5}`,
		"zero updatedAt":      `{"v":1,"tokens":1,"updatedAt":0}`,
		"unknown field":       `{"v":1,"tokens":1,"updatedAt":5,"extra":true}`,
		"trailing data":       `{"v":1,"tokens":1,"updatedAt":5}{}`,
		"wrong type":          `{"v":1,"tokens":"many","updatedAt":5}`,
	}

	for name, raw := range corrupt {
		t.Run("rejects "+name, func(t *testing.T) {
			t.Parallel()

			_, err := ratelimit.DecodeState(raw)

			require.Error(t, err)
			assert.ErrorIs(t, err, ratelimit.ErrCorruptState)
		})
	}
}
