package normalizer

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFinalized marks entries whose status is present and not "finalized".
	ErrNotFinalized = errors.New("transaction is not finalized")
	// ErrUnknownToken marks entries referencing a token id the directory does not know,
	// which includes every NFT.
	ErrUnknownToken = errors.New("unknown token id")
)

// DeserializationError reports a malformed or incomplete entry.
type DeserializationError struct {
	Reason string
}

func (e *DeserializationError) Error() string {
	return "deserialize zksync lite transaction: " + e.Reason
}

func missingKey(path string) error {
	return &DeserializationError{Reason: fmt.Sprintf("missing key %s", path)}
}

func malformed(path string, format string, args ...any) error {
	return &DeserializationError{Reason: path + ": " + fmt.Sprintf(format, args...)}
}

// IsSkippable reports whether err only disqualifies the entry it came from.
// Callers log and continue on skippable errors and abort on anything else.
func IsSkippable(err error) bool {
	if err == nil {
		return false
	}
	var de *DeserializationError
	return errors.Is(err, ErrNotFinalized) || errors.Is(err, ErrUnknownToken) || errors.As(err, &de)
}

func skipReason(err error) string {
	var de *DeserializationError
	switch {
	case errors.Is(err, ErrNotFinalized):
		return "not_finalized"
	case errors.Is(err, ErrUnknownToken):
		return "unknown_token"
	case errors.As(err, &de):
		return "deserialization"
	default:
		return "other"
	}
}
