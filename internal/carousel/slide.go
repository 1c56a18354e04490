package carousel

import (
	"fmt"

	"example/merch-display/internal/layout"
	"example/merch-display/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// SlideProduct is the product as drawn on screen, prices preformatted
type SlideProduct struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Description     string   `json:"description,omitempty"`
	Category        string   `json:"category,omitempty"`
	ImageURL        string   `json:"imageUrl,omitempty"`
	Tags            []string `json:"tags,omitempty"`
	Currency        string   `json:"currency"`
	Price           string   `json:"price"`
	HasDiscount     bool     `json:"hasDiscount"`
	DiscountPercent string   `json:"discountPercent,omitempty"`
	DiscountedPrice string   `json:"discountedPrice,omitempty"`
}

// Slide is everything needed to draw the visible carousel frame
type Slide struct {
	Phase       Phase              `json:"phase"`
	Orientation layout.Orientation `json:"orientation"`
	Index       int                `json:"index"`
	Total       int                `json:"total"`
	Counter     string             `json:"counter,omitempty"`
	Indicators  []bool             `json:"indicators,omitempty"`
	Product     *SlideProduct      `json:"product,omitempty"`
}

// Render turns a carousel state into a drawable slide using the layout params
func Render(st State, p layout.Params) Slide {
	s := Slide{Phase: st.Phase, Orientation: p.Orientation}
	if st.Phase != PhaseDisplaying || st.Product == nil || st.Total == 0 {
		s.Phase = PhaseEmpty
		return s
	}
	s.Index = st.Index
	s.Total = st.Total
	s.Counter = fmt.Sprintf("%d / %d", st.Index+1, st.Total)
	if p.ShowIndicators {
		s.Indicators = make([]bool, st.Total)
		s.Indicators[st.Index] = true
	}
	sp := renderProduct(*st.Product)
	s.Product = &sp
	return s
}

func renderProduct(p models.Product) SlideProduct {
	out := SlideProduct{
		ID:          p.ID,
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		ImageURL:    p.ImageURL,
		Tags:        p.Tags,
		Currency:    p.CurrencyCode(),
		Price:       FormatPrice(p.Price),
	}
	if p.HasDiscount() {
		out.HasDiscount = true
		out.DiscountPercent = decimal.NewFromFloat(*p.Discount).String()
		out.DiscountedPrice = DiscountedPrice(p.Price, *p.Discount).StringFixed(2)
	}
	return out
}

// DiscountedPrice computes price × (1 − discount/100)
func DiscountedPrice(price, discount float64) decimal.Decimal {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount).Div(hundred))
	return decimal.NewFromFloat(price).Mul(factor)
}

// FormatPrice renders a price with exactly two decimals
func FormatPrice(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}
