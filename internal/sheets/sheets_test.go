package sheets

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func TestExtractSpreadsheetID(t *testing.T) {
	tests := []struct {
		name     string
		ref      string
		expected string
		wantErr  bool
	}{
		{
			name:     "full edit url",
			ref:      "https://docs.google.com/spreadsheets/d/1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms/edit#gid=0",
			expected: "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
		},
		{
			name:     "url with id query parameter",
			ref:      "https://docs.google.com/spreadsheet/ccc?id=1abc-DEF_234",
			expected: "1abc-DEF_234",
		},
		{
			name:     "bare spreadsheet id",
			ref:      "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
			expected: "1BxiMVs0XRA5nFMdKvBdBZjgmUUqptlbs74OgvE2upms",
		},
		{
			name:     "surrounding whitespace is trimmed",
			ref:      "  1abc-DEF_234  ",
			expected: "1abc-DEF_234",
		},
		{
			name:    "empty reference",
			ref:     "",
			wantErr: true,
		},
		{
			name:    "unrelated url",
			ref:     "https://example.com/some/path",
			wantErr: true,
		},
		{
			name:    "bare id with invalid characters",
			ref:     "not a sheet id",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := ExtractSpreadsheetID(tt.ref)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidSheetRef)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, id)
		})
	}
}

func TestWrapAPIError(t *testing.T) {
	c := &Client{email: "reporter@project.iam.gserviceaccount.com"}

	err := c.wrapAPIError(&googleapi.Error{Code: 403, Message: "The caller does not have permission"}, "")
	require.ErrorIs(t, err, ErrPermissionDenied)
	assert.Contains(t, err.Error(), "reporter@project.iam.gserviceaccount.com")

	err = c.wrapAPIError(&googleapi.Error{Code: 400, Message: "Unable to parse range: 'Missing'"}, "Missing")
	require.ErrorIs(t, err, ErrWorksheetNotFound)
	assert.Contains(t, err.Error(), "Missing")

	// A 400 without an explicit worksheet is not a missing-worksheet case.
	plain := &googleapi.Error{Code: 400, Message: "Bad request"}
	assert.Equal(t, error(plain), c.wrapAPIError(plain, ""))

	other := errors.New("dial tcp: connection refused")
	assert.Equal(t, other, c.wrapAPIError(other, ""))
}

func TestRetryable(t *testing.T) {
	assert.True(t, retryable(&googleapi.Error{Code: 429}))
	assert.True(t, retryable(&googleapi.Error{Code: 503}))
	assert.False(t, retryable(&googleapi.Error{Code: 403}))
	assert.False(t, retryable(&googleapi.Error{Code: 400}))
	assert.False(t, retryable(errors.New("boom")))
}

func TestQuoteTitle(t *testing.T) {
	assert.Equal(t, "'Sheet1'", quoteTitle("Sheet1"))
	assert.Equal(t, "'Q3 Sales'", quoteTitle("Q3 Sales"))
	assert.Equal(t, "'It''s data'", quoteTitle("It's data"))
}

func TestToGrid(t *testing.T) {
	grid := toGrid([][]interface{}{
		{"Region", "Revenue"},
		{"North", 1200.5},
		{"South", nil},
	})

	assert.Equal(t, [][]string{
		{"Region", "Revenue"},
		{"North", "1200.5"},
		{"South", ""},
	}, grid)
}
