package models

// ProductStatus is the catalog lifecycle state of a product
type ProductStatus string

const (
	ProductDraft     ProductStatus = "draft"
	ProductPublished ProductStatus = "published"
	ProductArchived  ProductStatus = "archived"
)

// DefaultCurrency is shown when a product carries no currency code
const DefaultCurrency = "USD"

// Product represents a catalog entry as delivered by the backend
type Product struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	Description    string        `json:"description,omitempty"`
	Price          float64       `json:"price"`
	Currency       string        `json:"currency,omitempty"`
	ImageURL       string        `json:"imageUrl,omitempty"`
	Category       string        `json:"category,omitempty"`
	Discount       *float64      `json:"discount,omitempty"`
	Tags           []string      `json:"tags"`
	OrganizationID string        `json:"organizationId,omitempty"`
	Status         ProductStatus `json:"status,omitempty"`
}

// CurrencyCode returns the product currency or the default one
func (p Product) CurrencyCode() string {
	if p.Currency == "" {
		return DefaultCurrency
	}
	return p.Currency
}

// HasDiscount reports whether a positive discount applies
func (p Product) HasDiscount() bool {
	return p.Discount != nil && *p.Discount > 0
}

// EventProducts is the only type tag a recommendation event may carry
const EventProducts = "products"

// RecommendationEvent is the push-channel payload carrying the full product list
type RecommendationEvent struct {
	Type     string    `json:"type"`
	Products []Product `json:"products"`
}

// Theme holds the visual identity of the display
type Theme struct {
	PrimaryColor   string `json:"primaryColor,omitempty"`
	SecondaryColor string `json:"secondaryColor,omitempty"`
	LogoURL        string `json:"logoUrl,omitempty"`
	FontFamily     string `json:"fontFamily,omitempty"`
}

// LayoutConfig holds the layout knobs shared by grid and carousel styles
type LayoutConfig struct {
	Columns          int    `json:"columns,omitempty"`
	Rows             int    `json:"rows,omitempty"`
	Spacing          *int   `json:"spacing,omitempty"`
	ItemsPerPage     int    `json:"itemsPerPage,omitempty"`
	AutoPlay         *bool  `json:"autoPlay,omitempty"`
	ShowIndicators   *bool  `json:"showIndicators,omitempty"`
	ImageOrientation string `json:"imageOrientation,omitempty"`
	IntervalMs       int    `json:"intervalMs,omitempty"`
}

// Layout selects the display style and its configuration
type Layout struct {
	Style  string       `json:"style,omitempty"`
	Config LayoutConfig `json:"config"`
}

// Card describes how a single product card is drawn
type Card struct {
	Style        string `json:"style,omitempty"`
	BorderRadius *int   `json:"borderRadius,omitempty"`
}

// CarouselConfig holds the carousel-only editor knobs
type CarouselConfig struct {
	ItemWidth int  `json:"itemWidth,omitempty"`
	Gap       *int `json:"gap,omitempty"`
}

// LayoutSpecific groups style-specific settings
type LayoutSpecific struct {
	Carousel CarouselConfig `json:"carousel"`
}

// Settings is the per-organization theme/layout/card singleton
type Settings struct {
	ID             string         `json:"id,omitempty"`
	OrganizationID string         `json:"organizationId,omitempty"`
	Theme          Theme          `json:"theme"`
	Layout         Layout         `json:"layout"`
	Card           Card           `json:"card"`
	LayoutSpecific LayoutSpecific `json:"layoutSpecific"`
}

// Envelope is the success shape returned by the backend and the proxy routes
type Envelope[T any] struct {
	Payload T `json:"payload"`
}

// ImageGeneration is the backend answer to an AI image request
type ImageGeneration struct {
	ID                 string   `json:"id"`
	GeneratedImageURLs []string `json:"generatedImageUrls"`
}

// UploadResult is the backend answer to a file upload
type UploadResult struct {
	FileURL string `json:"fileUrl"`
}

// WSMessage represents a WebSocket message from a display browser
type WSMessage struct {
	Action string      `json:"action"`
	Data   interface{} `json:"data"`
}

// WSResponse represents a WebSocket message sent to a display browser
type WSResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error,omitempty"`
}

// Int returns a pointer to v, for optional numeric settings
func Int(v int) *int { return &v }

// Bool returns a pointer to v, for optional flags
func Bool(v bool) *bool { return &v }

// Float returns a pointer to v, for optional discounts
func Float(v float64) *float64 { return &v }
