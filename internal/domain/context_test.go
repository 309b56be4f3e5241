package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeContext(t *testing.T) {
	started := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	original := DownloadingContext{DownloadID: "abc", URL: "https://open.spotify.com/track/1", StartedAt: started}

	raw, err := EncodeContext(original)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"state":"downloading"`)

	decoded, err := DecodeContext[DownloadingContext](raw)
	require.NoError(t, err)
	assert.Equal(t, original.DownloadID, decoded.DownloadID)
	assert.Equal(t, original.URL, decoded.URL)
	assert.True(t, original.StartedAt.Equal(decoded.StartedAt))
}

func TestEncodeContext_Nil(t *testing.T) {
	raw, err := EncodeContext(nil)
	assert.NoError(t, err)
	assert.Nil(t, raw)

	raw, err = EncodeContext(ClearedContext{State: StateInitial})
	assert.NoError(t, err)
	assert.Nil(t, raw)
	assert.Equal(t, StateInitial, ClearedContext{State: StateInitial}.ContextState())
}

func TestDecodeContext_Errors(t *testing.T) {
	post, err := EncodeContext(PostProcessContext{DownloadID: "d", FileName: "f.mp3"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		raw      []byte
		mismatch bool
	}{
		{name: "empty", raw: nil},
		{name: "not json", raw: []byte("{")},
		{name: "other state", raw: post, mismatch: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeContext[DownloadingContext](tt.raw)
			assert.Error(t, err)
			if tt.mismatch {
				assert.ErrorIs(t, err, ErrContextMismatch)
			}
		})
	}
}

func TestContextOf(t *testing.T) {
	raw, err := EncodeContext(PostProcessContext{DownloadID: "d", FileName: "f.mp3"})
	require.NoError(t, err)

	t.Run("matching state", func(t *testing.T) {
		u := &UserState{State: StateAwaitingPostProcess, Context: raw}
		got, ok, err := ContextOf[PostProcessContext](u)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "f.mp3", got.FileName)
	})

	t.Run("no stored context", func(t *testing.T) {
		u := &UserState{State: StateAwaitingPostProcess}
		_, ok, err := ContextOf[PostProcessContext](u)
		assert.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("user in another state", func(t *testing.T) {
		u := &UserState{State: StateInitial, Context: raw}
		_, ok, err := ContextOf[PostProcessContext](u)
		assert.ErrorIs(t, err, ErrContextMismatch)
		assert.False(t, ok)
	})
}
