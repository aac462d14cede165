package types

// StatusData is the JSON view of a session returned by /api/state.
type StatusData struct {
	Status       string `json:"status"`
	Generation   uint64 `json:"generation"`
	Preset       string `json:"preset,omitempty"`
	SourceWidth  int    `json:"sourceWidth,omitempty"`
	SourceHeight int    `json:"sourceHeight,omitempty"`
	PreviewURL   string `json:"previewUrl,omitempty"`
	DownloadURL  string `json:"downloadUrl,omitempty"`
}

const EMPTY = "EMPTY"
const IMAGE_LOADED = "IMAGE_LOADED"
const PREVIEWING = "PREVIEWING"
