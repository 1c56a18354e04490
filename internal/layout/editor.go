package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"example/merch-display/internal/models"
)

// Slider bounds of the settings editor.
const (
	MinColumns      = 2
	MaxColumns      = 6
	MinSpacing      = 8
	MaxSpacing      = 32
	MinItemWidth    = 200
	MaxItemWidth    = 400
	MinGap          = 8
	MaxGap          = 32
	MinBorderRadius = 0
	MaxBorderRadius = 24
)

// ColorField names a theme color the editor can change
type ColorField string

const (
	PrimaryColor   ColorField = "primaryColor"
	SecondaryColor ColorField = "secondaryColor"
)

// PreviewDevice is the frame the dashboard preview is drawn in
type PreviewDevice string

const (
	DeviceDesktop PreviewDevice = "desktop"
	DeviceTablet  PreviewDevice = "tablet"
	DeviceMobile  PreviewDevice = "mobile"
)

// ErrUnknownAction is returned by DecodeAction for unrecognised types
var ErrUnknownAction = errors.New("unknown editor action")

type EditorTheme struct {
	PrimaryColor   string `json:"primaryColor"`
	SecondaryColor string `json:"secondaryColor"`
}

type EditorLayout struct {
	Style   Style `json:"style"`
	Columns int   `json:"columns"`
	Spacing int   `json:"spacing"`
}

type EditorCard struct {
	Style        CardStyle `json:"style"`
	BorderRadius int       `json:"borderRadius"`
}

type EditorUI struct {
	PreviewDevice PreviewDevice `json:"previewDevice"`
	PreviewOpen   bool          `json:"previewOpen"`
}

type EditorCarousel struct {
	ItemWidth int `json:"itemWidth"`
	Gap       int `json:"gap"`
}

// EditorState is the in-progress, unsaved state of the settings editor
type EditorState struct {
	Theme    EditorTheme    `json:"theme"`
	Layout   EditorLayout   `json:"layout"`
	Card     EditorCard     `json:"card"`
	UI       EditorUI       `json:"ui"`
	Carousel EditorCarousel `json:"carousel"`
}

// InitialEditorState is the editor state before any settings are loaded
func InitialEditorState() EditorState {
	return EditorState{
		Theme:    EditorTheme{PrimaryColor: DefaultPrimaryColor, SecondaryColor: DefaultSecondaryColor},
		Layout:   EditorLayout{Style: StyleGrid, Columns: DefaultColumns, Spacing: DefaultSpacing},
		Card:     EditorCard{Style: DefaultCardStyle, BorderRadius: DefaultBorderRadius},
		UI:       EditorUI{PreviewDevice: DeviceDesktop},
		Carousel: EditorCarousel{ItemWidth: DefaultItemWidth, Gap: DefaultGap},
	}
}

// EditorStateFrom builds the editor state for persisted settings
func EditorStateFrom(s models.Settings) EditorState {
	return Reduce(InitialEditorState(), InitializeSettings{Settings: s})
}

// Action is a single editor change. The set of actions is closed.
type Action interface {
	isAction()
}

type SetThemeColor struct {
	Field ColorField
	Value string
}

type SetLayoutStyle struct{ Style Style }

type SetLayoutColumns struct{ Columns int }

type SetLayoutSpacing struct{ Spacing int }

type SetCardStyle struct{ Style CardStyle }

type SetCardBorderRadius struct{ Radius int }

type SetPreviewDevice struct{ Device PreviewDevice }

type SetPreviewOpen struct{ Open bool }

type SetCarouselItemWidth struct{ Width int }

type SetCarouselGap struct{ Gap int }

// InitializeSettings replaces the editable fields with persisted settings.
// UI state is kept.
type InitializeSettings struct{ Settings models.Settings }

func (SetThemeColor) isAction()        {}
func (SetLayoutStyle) isAction()       {}
func (SetLayoutColumns) isAction()     {}
func (SetLayoutSpacing) isAction()     {}
func (SetCardStyle) isAction()         {}
func (SetCardBorderRadius) isAction()  {}
func (SetPreviewDevice) isAction()     {}
func (SetPreviewOpen) isAction()       {}
func (SetCarouselItemWidth) isAction() {}
func (SetCarouselGap) isAction()       {}
func (InitializeSettings) isAction()   {}

// Reduce applies one action and returns the new state
func Reduce(s EditorState, a Action) EditorState {
	switch a := a.(type) {
	case SetThemeColor:
		v := strings.TrimSpace(a.Value)
		if v == "" {
			return s
		}
		switch a.Field {
		case PrimaryColor:
			s.Theme.PrimaryColor = v
		case SecondaryColor:
			s.Theme.SecondaryColor = v
		}
	case SetLayoutStyle:
		s.Layout.Style = parseStyle(string(a.Style))
	case SetLayoutColumns:
		s.Layout.Columns = clamp(a.Columns, MinColumns, MaxColumns)
	case SetLayoutSpacing:
		s.Layout.Spacing = clamp(a.Spacing, MinSpacing, MaxSpacing)
	case SetCardStyle:
		s.Card.Style = parseCardStyle(string(a.Style))
	case SetCardBorderRadius:
		s.Card.BorderRadius = clamp(a.Radius, MinBorderRadius, MaxBorderRadius)
	case SetPreviewDevice:
		switch a.Device {
		case DeviceDesktop, DeviceTablet, DeviceMobile:
			s.UI.PreviewDevice = a.Device
		}
	case SetPreviewOpen:
		s.UI.PreviewOpen = a.Open
	case SetCarouselItemWidth:
		s.Carousel.ItemWidth = clamp(a.Width, MinItemWidth, MaxItemWidth)
	case SetCarouselGap:
		s.Carousel.Gap = clamp(a.Gap, MinGap, MaxGap)
	case InitializeSettings:
		p := Resolve(a.Settings)
		s.Theme = EditorTheme{PrimaryColor: p.PrimaryColor, SecondaryColor: p.SecondaryColor}
		s.Layout = EditorLayout{Style: p.Style, Columns: p.Columns, Spacing: p.Spacing}
		s.Card = EditorCard{Style: p.CardStyle, BorderRadius: p.BorderRadius}
		s.Carousel = EditorCarousel{ItemWidth: p.ItemWidth, Gap: optional(a.Settings.LayoutSpecific.Carousel.Gap, DefaultGap)}
	}
	return s
}

// ReduceAll folds a sequence of actions over s
func ReduceAll(s EditorState, actions ...Action) EditorState {
	for _, a := range actions {
		s = Reduce(s, a)
	}
	return s
}

// Update returns current with the edited fields overwritten. The result
// is the body sent when the editor is saved; fields the editor does not
// own (items per page, autoplay, indicators, orientation, logo, font)
// are carried over with their defaults applied.
func (e EditorState) Update(current models.Settings) models.Settings {
	out := current
	out.Theme.PrimaryColor = e.Theme.PrimaryColor
	out.Theme.SecondaryColor = e.Theme.SecondaryColor

	out.Layout.Style = string(e.Layout.Style)
	out.Layout.Config.Columns = e.Layout.Columns
	out.Layout.Config.Spacing = models.Int(e.Layout.Spacing)
	if out.Layout.Config.ItemsPerPage <= 0 {
		out.Layout.Config.ItemsPerPage = DefaultItemsPerPage
	}
	if out.Layout.Config.AutoPlay == nil {
		out.Layout.Config.AutoPlay = models.Bool(false)
	}
	if out.Layout.Config.ShowIndicators == nil {
		out.Layout.Config.ShowIndicators = models.Bool(true)
	}

	out.Card.Style = string(e.Card.Style)
	out.Card.BorderRadius = models.Int(e.Card.BorderRadius)

	out.LayoutSpecific.Carousel.ItemWidth = e.Carousel.ItemWidth
	out.LayoutSpecific.Carousel.Gap = models.Int(e.Carousel.Gap)
	return out
}

// Preview resolves the parameters the display would use once saved
func (e EditorState) Preview(current models.Settings) Params {
	return Resolve(e.Update(current))
}

// wireAction is the JSON form {"type":"SET_LAYOUT_COLUMNS","value":4}
type wireAction struct {
	Type  string          `json:"type"`
	Field string          `json:"field,omitempty"`
	Value json.RawMessage `json:"value,omitempty"`
}

// DecodeAction parses a single action from its wire form
func DecodeAction(raw []byte) (Action, error) {
	var w wireAction
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, fmt.Errorf("decode action: %w", err)
	}

	var (
		a   Action
		err error
	)
	switch w.Type {
	case "SET_THEME_COLOR":
		var v string
		err = decodeValue(w.Value, &v)
		a = SetThemeColor{Field: ColorField(w.Field), Value: v}
	case "SET_LAYOUT_STYLE":
		var v string
		err = decodeValue(w.Value, &v)
		a = SetLayoutStyle{Style: Style(v)}
	case "SET_LAYOUT_COLUMNS":
		var v int
		err = decodeValue(w.Value, &v)
		a = SetLayoutColumns{Columns: v}
	case "SET_LAYOUT_SPACING":
		var v int
		err = decodeValue(w.Value, &v)
		a = SetLayoutSpacing{Spacing: v}
	case "SET_CARD_STYLE":
		var v string
		err = decodeValue(w.Value, &v)
		a = SetCardStyle{Style: CardStyle(v)}
	case "SET_CARD_BORDER_RADIUS":
		var v int
		err = decodeValue(w.Value, &v)
		a = SetCardBorderRadius{Radius: v}
	case "SET_PREVIEW_DEVICE":
		var v string
		err = decodeValue(w.Value, &v)
		a = SetPreviewDevice{Device: PreviewDevice(v)}
	case "SET_PREVIEW_OPEN":
		var v bool
		err = decodeValue(w.Value, &v)
		a = SetPreviewOpen{Open: v}
	case "SET_CAROUSEL_ITEM_WIDTH":
		var v int
		err = decodeValue(w.Value, &v)
		a = SetCarouselItemWidth{Width: v}
	case "SET_CAROUSEL_GAP":
		var v int
		err = decodeValue(w.Value, &v)
		a = SetCarouselGap{Gap: v}
	case "INITIALIZE_SETTINGS":
		var v models.Settings
		err = decodeValue(w.Value, &v)
		a = InitializeSettings{Settings: v}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, w.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", w.Type, err)
	}
	return a, nil
}

// DecodeActions parses a list of wire actions, failing on the first bad one
func DecodeActions(raws []json.RawMessage) ([]Action, error) {
	out := make([]Action, 0, len(raws))
	for i, raw := range raws {
		a, err := DecodeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

func decodeValue(raw json.RawMessage, v any) error {
	if len(raw) == 0 {
		return errors.New("missing value")
	}
	return json.Unmarshal(raw, v)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
