package handler

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/reportpilot/reportpilot/internal/storage"
)

// DecodeCursor parses an opaque list cursor. An empty string means the
// first page.
func DecodeCursor(cursorStr string) (*storage.Cursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.StdEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, err
	}

	decodedParts := strings.Split(string(decoded), "|")
	if len(decodedParts) != 2 {
		return nil, fmt.Errorf("invalid cursor format")
	}

	var createdAt int64
	_, err = fmt.Sscanf(decodedParts[0], "%d", &createdAt)
	if err != nil {
		return nil, fmt.Errorf("invalid createdAt in cursor: %w", err)
	}

	return &storage.Cursor{
		CreatedAt: time.Unix(0, createdAt),
		ID:        decodedParts[1],
	}, nil
}

// EncodeCursor renders a cursor for the next page after the given row.
func EncodeCursor(cursor *storage.Cursor) (string, error) {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ID)
	return base64.StdEncoding.EncodeToString([]byte(cs)), nil
}
