package handler

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reportpilot/reportpilot/internal/storage"
)

func TestCursorRoundTrip(t *testing.T) {
	in := &storage.Cursor{
		CreatedAt: time.Date(2026, 3, 2, 10, 30, 0, 123456789, time.UTC),
		ID:        "3f1a9d80-0a41-4c47-9f8e-8e1df9a2b6c1",
	}

	encoded, err := EncodeCursor(in)
	require.NoError(t, err)

	out, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.True(t, out.CreatedAt.Equal(in.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestDecodeCursor_Empty(t *testing.T) {
	out, err := DecodeCursor("")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestDecodeCursor_Invalid(t *testing.T) {
	_, err := DecodeCursor("not base64!!!")
	assert.Error(t, err)

	_, err = DecodeCursor(base64.StdEncoding.EncodeToString([]byte("no-separator")))
	assert.Error(t, err)

	_, err = DecodeCursor(base64.StdEncoding.EncodeToString([]byte("abc|id")))
	assert.Error(t, err)
}
