package layout

import (
	"testing"
	"time"

	"example/merch-display/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestResolveEmptySettingsUsesDefaults(t *testing.T) {
	p := Resolve(models.Settings{})

	assert.Equal(t, StyleCarousel, p.Style)
	assert.Equal(t, Landscape, p.Orientation)
	assert.Equal(t, "#4EB2F1", p.PrimaryColor)
	assert.Equal(t, "#6366F1", p.SecondaryColor)
	assert.Equal(t, 8, p.BorderRadius)
	assert.Equal(t, 16, p.Spacing)
	assert.Equal(t, 3, p.Columns)
	assert.Equal(t, 2, p.Rows)
	assert.Equal(t, 10, p.ItemsPerPage)
	assert.Equal(t, 280, p.ItemWidth)
	assert.Equal(t, 16, p.Gap)
	assert.Equal(t, CardElevated, p.CardStyle)
	assert.True(t, p.Shadow)
	assert.False(t, p.Border)
	assert.True(t, p.ShowIndicators)
	assert.False(t, p.AutoPlay)
	assert.Equal(t, 5*time.Second, p.Interval)
	assert.Equal(t, int64(5000), p.IntervalMs)
}

func TestResolveGridUsesColumnsAndSpacing(t *testing.T) {
	s := models.Settings{Layout: models.Layout{
		Style:  "grid",
		Config: models.LayoutConfig{Columns: 3, Spacing: models.Int(16)},
	}}
	p := Resolve(s)
	assert.Equal(t, StyleGrid, p.Style)
	assert.Equal(t, 3, p.Columns)
	assert.Equal(t, 16, p.Gap)
	assert.Equal(t, 6, p.PreviewItems)
}

func TestResolveCarouselPassesItemWidthAndGapThrough(t *testing.T) {
	s := models.Settings{
		Layout:         models.Layout{Style: "carousel"},
		LayoutSpecific: models.LayoutSpecific{Carousel: models.CarouselConfig{ItemWidth: 280, Gap: models.Int(16)}},
	}
	p := Resolve(s)
	assert.Equal(t, 280, p.ItemWidth)
	assert.Equal(t, 16, p.Gap)
	assert.Equal(t, 5, p.PreviewItems)
}

func TestResolveDoesNotClamp(t *testing.T) {
	s := models.Settings{
		Layout: models.Layout{Style: "grid", Config: models.LayoutConfig{Columns: 12, Spacing: models.Int(0)}},
		Card:   models.Card{BorderRadius: models.Int(0)},
	}
	p := Resolve(s)
	assert.Equal(t, 12, p.Columns)
	assert.Equal(t, 0, p.Spacing)
	assert.Equal(t, 0, p.BorderRadius)
}

func TestResolveUnknownEnumsFallBack(t *testing.T) {
	s := models.Settings{
		Layout: models.Layout{Style: "masonry", Config: models.LayoutConfig{ImageOrientation: "diagonal"}},
		Card:   models.Card{Style: "glass"},
	}
	p := Resolve(s)
	assert.Equal(t, StyleCarousel, p.Style)
	assert.Equal(t, Landscape, p.Orientation)
	assert.Equal(t, CardElevated, p.CardStyle)
}

func TestResolveCardTreatment(t *testing.T) {
	tests := []struct {
		style          string
		shadow, border bool
	}{
		{"elevated", true, false},
		{"outlined", false, true},
		{"flat", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.style, func(t *testing.T) {
			p := Resolve(models.Settings{Card: models.Card{Style: tt.style}})
			assert.Equal(t, tt.shadow, p.Shadow)
			assert.Equal(t, tt.border, p.Border)
		})
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	s := models.Settings{
		Theme:  models.Theme{PrimaryColor: "#000000", LogoURL: "https://cdn/logo.png"},
		Layout: models.Layout{Style: "grid", Config: models.LayoutConfig{ImageOrientation: "portrait", AutoPlay: models.Bool(true), ShowIndicators: models.Bool(false), IntervalMs: 3000}},
	}
	a, b := Resolve(s), Resolve(s)
	assert.True(t, a == b)
	assert.Equal(t, Portrait, a.Orientation)
	assert.True(t, a.AutoPlay)
	assert.False(t, a.ShowIndicators)
	assert.Equal(t, 3*time.Second, a.Interval)
}
