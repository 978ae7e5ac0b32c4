package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// EncodeCursor serialises a repository cursor into an opaque page token. The
// token is base64url so it survives query strings untouched.
func EncodeCursor[T any](cursor T) (string, error) {
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode cursor: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeCursor parses a page token produced by EncodeCursor.
func DecodeCursor[T any](token string) (T, error) {
	var cursor T
	token = strings.TrimSpace(token)
	if token == "" {
		return cursor, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return cursor, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return cursor, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}

// wellFormedToken rejects tokens that cannot possibly decode, so bad input
// fails at the edge instead of deep in a repository query.
func wellFormedToken(token string) bool {
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return false
	}
	return json.Valid(decoded)
}
