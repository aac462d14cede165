package utils

import (
	"fmt"

	"github.com/mahirjain10/poster-formatter/internal/session"
	"github.com/mahirjain10/poster-formatter/internal/types"
)

func PreviewURL(generation uint64, preset string) string {
	return fmt.Sprintf("/preview/%d/%s", generation, preset)
}

func DownloadURL(generation uint64, preset string) string {
	return fmt.Sprintf("/download/%d/%s", generation, preset)
}

// InitStatusData builds the public view of a session. Preview and download
// links are only present while previewing.
func InitStatusData(snap session.Snapshot) *types.StatusData {
	data := &types.StatusData{
		Status:       snap.State,
		Generation:   snap.Generation,
		SourceWidth:  snap.SourceWidth,
		SourceHeight: snap.SourceHeight,
	}
	if snap.Preset != nil {
		data.Preset = snap.Preset.Name
		data.PreviewURL = PreviewURL(snap.Generation, snap.Preset.Name)
		data.DownloadURL = DownloadURL(snap.Generation, snap.Preset.Name)
	}
	return data
}
