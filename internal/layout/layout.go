// Package layout turns persisted display settings into the concrete
// rendering parameters used by the carousel and the dashboard preview.
package layout

import (
	"strings"
	"time"

	"example/merch-display/internal/models"
)

// Style is the overall display layout
type Style string

const (
	StyleGrid     Style = "grid"
	StyleCarousel Style = "carousel"
)

// Orientation is the composition of a single product slide
type Orientation string

const (
	Landscape Orientation = "landscape"
	Portrait  Orientation = "portrait"
)

// CardStyle is the visual treatment of a product card
type CardStyle string

const (
	CardElevated CardStyle = "elevated"
	CardOutlined CardStyle = "outlined"
	CardFlat     CardStyle = "flat"
)

// Fallbacks applied when a setting is missing or unrecognised.
const (
	DefaultPrimaryColor   = "#4EB2F1"
	DefaultSecondaryColor = "#6366F1"
	DefaultStyle          = StyleCarousel
	DefaultOrientation    = Landscape
	DefaultCardStyle      = CardElevated
	DefaultBorderRadius   = 8
	DefaultSpacing        = 16
	DefaultColumns        = 3
	DefaultRows           = 2
	DefaultItemsPerPage   = 10
	DefaultItemWidth      = 280
	DefaultGap            = 16
	DefaultInterval       = 5 * time.Second

	carouselPreviewItems = 5
)

// Params are the rendering parameters derived from Settings. Params is
// comparable, so equal settings always produce == results.
type Params struct {
	Style       Style       `json:"style"`
	Orientation Orientation `json:"orientation"`

	Columns      int `json:"columns"`
	Rows         int `json:"rows"`
	Spacing      int `json:"spacing"`
	ItemsPerPage int `json:"itemsPerPage"`
	ItemWidth    int `json:"itemWidth"`
	// Gap is the space between items: spacing for grids, the carousel gap otherwise
	Gap          int `json:"gap"`
	PreviewItems int `json:"previewItems"`

	CardStyle    CardStyle `json:"cardStyle"`
	BorderRadius int       `json:"borderRadius"`
	Shadow       bool      `json:"shadow"`
	Border       bool      `json:"border"`

	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
	FontFamily     string `json:"fontFamily,omitempty"`
	LogoURL        string `json:"logoUrl,omitempty"`

	AutoPlay       bool          `json:"autoPlay"`
	ShowIndicators bool          `json:"showIndicators"`
	Interval       time.Duration `json:"-"`
	IntervalMs     int64         `json:"intervalMs"`
}

// Resolve maps settings to rendering parameters, filling every missing
// value with its documented default. It has no side effects.
func Resolve(s models.Settings) Params {
	cfg := s.Layout.Config
	p := Params{
		Style:        parseStyle(s.Layout.Style),
		Orientation:  parseOrientation(cfg.ImageOrientation),
		Columns:      positive(cfg.Columns, DefaultColumns),
		Rows:         positive(cfg.Rows, DefaultRows),
		Spacing:      optional(cfg.Spacing, DefaultSpacing),
		ItemsPerPage: positive(cfg.ItemsPerPage, DefaultItemsPerPage),
		ItemWidth:    positive(s.LayoutSpecific.Carousel.ItemWidth, DefaultItemWidth),

		CardStyle:    parseCardStyle(s.Card.Style),
		BorderRadius: optional(s.Card.BorderRadius, DefaultBorderRadius),

		PrimaryColor:   nonEmpty(s.Theme.PrimaryColor, DefaultPrimaryColor),
		SecondaryColor: nonEmpty(s.Theme.SecondaryColor, DefaultSecondaryColor),
		FontFamily:     strings.TrimSpace(s.Theme.FontFamily),
		LogoURL:        strings.TrimSpace(s.Theme.LogoURL),

		AutoPlay:       cfg.AutoPlay != nil && *cfg.AutoPlay,
		ShowIndicators: cfg.ShowIndicators == nil || *cfg.ShowIndicators,
		Interval:       DefaultInterval,
	}
	if cfg.IntervalMs > 0 {
		p.Interval = time.Duration(cfg.IntervalMs) * time.Millisecond
	}
	p.IntervalMs = p.Interval.Milliseconds()

	switch p.Style {
	case StyleGrid:
		p.Gap = p.Spacing
		p.PreviewItems = p.Columns * p.Rows
	default:
		p.Gap = optional(s.LayoutSpecific.Carousel.Gap, DefaultGap)
		p.PreviewItems = carouselPreviewItems
	}

	switch p.CardStyle {
	case CardElevated:
		p.Shadow = true
	case CardOutlined:
		p.Border = true
	}
	return p
}

func parseStyle(v string) Style {
	switch Style(strings.ToLower(strings.TrimSpace(v))) {
	case StyleGrid:
		return StyleGrid
	case StyleCarousel:
		return StyleCarousel
	}
	return DefaultStyle
}

func parseOrientation(v string) Orientation {
	switch Orientation(strings.ToLower(strings.TrimSpace(v))) {
	case Portrait:
		return Portrait
	case Landscape:
		return Landscape
	}
	return DefaultOrientation
}

func parseCardStyle(v string) CardStyle {
	switch CardStyle(strings.ToLower(strings.TrimSpace(v))) {
	case CardElevated:
		return CardElevated
	case CardOutlined:
		return CardOutlined
	case CardFlat:
		return CardFlat
	}
	return DefaultCardStyle
}

func positive(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func optional(v *int, def int) int {
	if v != nil && *v >= 0 {
		return *v
	}
	return def
}

func nonEmpty(v, def string) string {
	if s := strings.TrimSpace(v); s != "" {
		return s
	}
	return def
}
