package ratelimit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// StateVersion is the schema version written by EncodeState.
const StateVersion = 1

// ErrCorruptState is wrapped by DecodeState for every record it cannot use.
var ErrCorruptState = errors.New("corrupt token bucket state")

// TokenBucketState is the record persisted per identity by the token bucket.
type TokenBucketState struct {
	Version int   `json:"v"`
	Tokens  int64 `json:"tokens"`
	// UpdatedAt is epoch milliseconds.
	UpdatedAt int64 `json:"updatedAt"`
}

// stateRecord mirrors TokenBucketState with pointers so missing fields can
// be told apart from zero values.
type stateRecord struct {
	Version   *int   `json:"v"`
	Tokens    *int64 `json:"tokens"`
	UpdatedAt *int64 `json:"updatedAt"`
}

// EncodeState serializes s at the current StateVersion.
func EncodeState(s TokenBucketState) string {
	s.Version = StateVersion

	// Marshalling a struct of ints cannot fail.
	data, _ := json.Marshal(s)

	return string(data)
}

// DecodeState parses a stored record. Records without a version field are
// read as the unversioned layout {tokens, updatedAt}.
func DecodeState(raw string) (TokenBucketState, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var rec stateRecord
	if err := dec.Decode(&rec); err != nil {
		return TokenBucketState{}, fmt.Errorf("%w: %w", ErrCorruptState, err)
	}

	if dec.More() {
		return TokenBucketState{}, fmt.Errorf("%w: trailing data", ErrCorruptState)
	}

	if rec.Version != nil && *rec.Version != StateVersion {
		return TokenBucketState{}, fmt.Errorf("%w: unsupported version %d", ErrCorruptState, *rec.Version)
	}

	if rec.Tokens == nil || rec.UpdatedAt == nil {
		return TokenBucketState{}, fmt.Errorf("%w: missing fields", ErrCorruptState)
	}

	if *rec.Tokens < 0 || *rec.UpdatedAt <= 0 {
		return TokenBucketState{}, fmt.Errorf("%w: out of range", ErrCorruptState)
	}

	return TokenBucketState{
		Version:   StateVersion,
		Tokens:    *rec.Tokens,
		UpdatedAt: *rec.UpdatedAt,
	}, nil
}
