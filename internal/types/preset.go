package types

import "fmt"

type Preset struct {
	Name         string `json:"name"`
	Label        string `json:"label"`
	TargetWidth  int    `json:"targetWidth"`
	TargetHeight int    `json:"targetHeight"`
	// DisplayWidth is the max width of the inline preview box in CSS pixels.
	DisplayWidth int    `json:"displayWidth"`
	DownloadName string `json:"downloadName"`
}

var Instagram = Preset{
	Name:         "instagram",
	Label:        "Instagram",
	TargetWidth:  1080,
	TargetHeight: 1350,
	DisplayWidth: 540,
	DownloadName: "instagram-image.png",
}

var TV = Preset{
	Name:         "tv",
	Label:        "TV",
	TargetWidth:  1920,
	TargetHeight: 1080,
	DisplayWidth: 960,
	DownloadName: "tv-image.png",
}

// Presets lists every output format in display order.
func Presets() []Preset {
	return []Preset{Instagram, TV}
}

func PresetByName(name string) (Preset, error) {
	for _, p := range Presets() {
		if p.Name == name {
			return p, nil
		}
	}
	return Preset{}, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
}

// AspectWidth and AspectHeight are the reduced aspect ratio terms, 4:5 for
// Instagram and 16:9 for TV.
func (p Preset) AspectWidth() int {
	return p.TargetWidth / gcd(p.TargetWidth, p.TargetHeight)
}

func (p Preset) AspectHeight() int {
	return p.TargetHeight / gcd(p.TargetWidth, p.TargetHeight)
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}
