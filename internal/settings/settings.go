// Package settings holds the display configuration shared with display surfaces.
package settings

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	apperrors "github.com/GriffinCanCode/lingualens/platform/internal/errors"
)

// Bounds.
const (
	MinFontSize = 12
	MaxFontSize = 48
	MinOpacity  = 0
	MaxOpacity  = 100
)

// DisplaySettings is persisted as JSON under relay.SettingsKey.
type DisplaySettings struct {
	FontSize        int    `json:"fontSize"`
	Opacity         int    `json:"opacity"` // percent
	BackgroundColor string `json:"backgroundColor"`
	TextColor       string `json:"textColor"`
}

// Defaults returns the settings used before anything is stored.
func Defaults() DisplaySettings {
	dark := Presets[ThemeDark]
	return DisplaySettings{
		FontSize:        24,
		Opacity:         80,
		BackgroundColor: dark.Background,
		TextColor:       dark.Text,
	}
}

// Theme names a colour preset.
type Theme string

const (
	ThemeDark  Theme = "dark"
	ThemeLight Theme = "light"
)

// Preset is a background and text colour pair.
type Preset struct {
	Background string
	Text       string
}

var Presets = map[Theme]Preset{
	ThemeDark:  {Background: "26, 0, 51", Text: "240, 240, 240"},
	ThemeLight: {Background: "240, 240, 240", Text: "10, 10, 10"},
}

// Validate checks every field against its bounds.
func (s DisplaySettings) Validate() error {
	if s.FontSize < MinFontSize || s.FontSize > MaxFontSize {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "fontSize %d out of range [%d,%d]", s.FontSize, MinFontSize, MaxFontSize)
	}
	if s.Opacity < MinOpacity || s.Opacity > MaxOpacity {
		return apperrors.Newf(apperrors.CodeInvalidArgument, "opacity %d out of range [%d,%d]", s.Opacity, MinOpacity, MaxOpacity)
	}
	if _, err := ParseRGB(s.BackgroundColor); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid backgroundColor")
	}
	if _, err := ParseRGB(s.TextColor); err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid textColor")
	}
	return nil
}

// ParseRGB parses an "r, g, b" triple. Alpha is opaque.
func ParseRGB(triple string) (color.RGBA, error) {
	parts := strings.Split(triple, ",")
	if len(parts) != 3 {
		return color.RGBA{}, fmt.Errorf("colour %q: want three channels", triple)
	}
	var ch [3]uint8
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 || n > 255 {
			return color.RGBA{}, fmt.Errorf("colour %q: channel %d not in 0..255", triple, i)
		}
		ch[i] = uint8(n)
	}
	return color.RGBA{R: ch[0], G: ch[1], B: ch[2], A: 0xff}, nil
}

// Patch is a partial update. Theme is applied before explicit colours.
type Patch struct {
	FontSize        *int    `json:"fontSize,omitempty"`
	Opacity         *int    `json:"opacity,omitempty"`
	BackgroundColor *string `json:"backgroundColor,omitempty"`
	TextColor       *string `json:"textColor,omitempty"`
	Theme           *Theme  `json:"theme,omitempty"`
}

// Apply merges p into s and validates the result.
func (p Patch) Apply(s DisplaySettings) (DisplaySettings, error) {
	if p.Theme != nil {
		preset, ok := Presets[*p.Theme]
		if !ok {
			return s, apperrors.Newf(apperrors.CodeInvalidArgument, "unknown theme %q", *p.Theme)
		}
		s.BackgroundColor, s.TextColor = preset.Background, preset.Text
	}
	if p.FontSize != nil {
		s.FontSize = *p.FontSize
	}
	if p.Opacity != nil {
		s.Opacity = *p.Opacity
	}
	if p.BackgroundColor != nil {
		s.BackgroundColor = *p.BackgroundColor
	}
	if p.TextColor != nil {
		s.TextColor = *p.TextColor
	}
	return s, s.Validate()
}
