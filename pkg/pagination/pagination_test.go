package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{CreatedAt: time.Date(2026, 3, 1, 8, 30, 0, 1500, time.UTC), ID: uuid.New()}
	out, err := Parse(Encode(in))
	require.NoError(t, err)
	require.NotNil(t, out)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)
}

func TestParseBlankIsFirstPage(t *testing.T) {
	out, err := Parse("  ")
	require.NoError(t, err)
	assert.Nil(t, out)
}

func TestParseRejectsGarbage(t *testing.T) {
	_, err := Parse("not-a-cursor!")
	assert.Error(t, err)
	_, err = Parse(Encode(Cursor{})[:4])
	assert.Error(t, err)
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, NormalizeLimit(0))
	assert.Equal(t, MaxLimit, NormalizeLimit(MaxLimit+1))
	assert.Equal(t, 7, NormalizeLimit(7))
	assert.Equal(t, 8, Fetch(7))
}

func TestTrim(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := []Cursor{
		{CreatedAt: base.Add(3 * time.Minute), ID: uuid.New()},
		{CreatedAt: base.Add(2 * time.Minute), ID: uuid.New()},
		{CreatedAt: base.Add(time.Minute), ID: uuid.New()},
	}
	key := func(c Cursor) Cursor { return c }

	kept, next := Trim(rows, 2, key)
	require.Len(t, kept, 2)
	assert.Equal(t, Encode(rows[1]), next)

	kept, next = Trim(rows, 3, key)
	assert.Len(t, kept, 3)
	assert.Empty(t, next)
}
