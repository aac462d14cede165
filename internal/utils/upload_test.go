package utils

import (
	"bytes"
	"mime/multipart"
	"testing"

	"github.com/mahirjain10/poster-formatter/internal/session"
	"github.com/mahirjain10/poster-formatter/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fileHeader(t *testing.T, content []byte) *multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", "poster.png")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(&body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["image"][0]
}

func TestReadImageBuffer(t *testing.T) {
	buf, err := ReadImageBuffer(fileHeader(t, []byte("0123456789")), 10)
	require.NoError(t, err)
	assert.Equal(t, []byte("0123456789"), buf)
}

func TestReadImageBuffer_TooLarge(t *testing.T) {
	_, err := ReadImageBuffer(fileHeader(t, []byte("0123456789")), 9)
	assert.ErrorIs(t, err, types.ErrTooLarge)
}

func TestReadImageBuffer_Empty(t *testing.T) {
	buf, err := ReadImageBuffer(fileHeader(t, nil), 9)
	require.NoError(t, err)
	assert.Empty(t, buf)
}

func TestInitStatusData(t *testing.T) {
	empty := InitStatusData(session.Snapshot{State: types.EMPTY, Generation: 3})
	assert.Equal(t, types.EMPTY, empty.Status)
	assert.Empty(t, empty.PreviewURL)
	assert.Empty(t, empty.DownloadURL)

	tv := types.TV
	previewing := InitStatusData(session.Snapshot{
		State:        types.PREVIEWING,
		Generation:   4,
		Preset:       &tv,
		SourceWidth:  600,
		SourceHeight: 1800,
	})
	assert.Equal(t, "tv", previewing.Preset)
	assert.Equal(t, "/preview/4/tv", previewing.PreviewURL)
	assert.Equal(t, "/download/4/tv", previewing.DownloadURL)
	assert.Equal(t, 600, previewing.SourceWidth)
}
