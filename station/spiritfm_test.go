package station

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSpiritFM(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		delimiter string
		want      []RawEntry
		wantErr   bool
	}{
		{
			name: "artist and title",
			body: "Switchfoot|Dare You to Move\nTobyMac|Feel It (feat. Mortanda)\n",
			want: []RawEntry{
				{Artist: "Switchfoot", Title: "Dare You to Move", Station: SpiritFM, Position: 0},
				{Artist: "TobyMac", Title: "Feel It (feat. Mortanda)", Station: SpiritFM, Position: 1},
			},
		},
		{
			name: "with play time, comments and blank lines",
			body: "# recently played\n\n3:45 PM | Casting Crowns | Nobody \n",
			want: []RawEntry{
				{Artist: "Casting Crowns", Title: "Nobody", Station: SpiritFM, PlayedAt: "3:45 PM"},
			},
		},
		{
			name:      "custom delimiter",
			body:      "Lauren Daigle;You Say",
			delimiter: ";",
			want: []RawEntry{
				{Artist: "Lauren Daigle", Title: "You Say", Station: SpiritFM},
			},
		},
		{
			name:    "wrong field count",
			body:    "Switchfoot|Dare You to Move\njust one field\n",
			wantErr: true,
		},
		{
			name:    "html instead of text",
			body:    "<!DOCTYPE html><html><body>Error</body></html>",
			wantErr: true,
		},
		{
			name:    "empty feed",
			body:    "\n# nothing\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSpiritFM([]byte(tt.body), tt.delimiter)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSpiritFMSourceMalformedIsUnavailable(t *testing.T) {
	src := NewSpiritFM("", "", &fakeFetcher{body: []byte("a|b|c|d")})
	assert.Equal(t, DefaultSpiritFMURL, src.URL)
	assert.Equal(t, DefaultSpiritFMDelimiter, src.Delimiter)

	_, err := src.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}
