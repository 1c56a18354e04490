package server

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"example/merch-display/internal/backend"
	"example/merch-display/internal/carousel"
	"example/merch-display/internal/logger"
	"example/merch-display/internal/models"

	"github.com/xuri/excelize/v2"
)

const (
	exportSheet = "Products"
	xlsxType    = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var exportHeader = []interface{}{
	"ID", "Name", "Description", "Category", "Status",
	"Price", "Discount %", "Final Price", "Currency", "Tags", "Image URL",
}

func (a *App) exportProducts(w http.ResponseWriter, r *http.Request) {
	products, err := a.Backend.ListProducts(r.Context())
	if err != nil {
		var se *backend.StatusError
		if errors.As(err, &se) {
			WriteJSONError(w, se.Status, "Failed to fetch products")
			return
		}
		logger.Log.Errorw("Export failed", "error", err, "request_id", RequestIDFromContext(r.Context()))
		WriteJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}

	data, err := productWorkbook(products)
	if err != nil {
		logger.Log.Errorw("Failed to build workbook", "error", err, "count", len(products))
		WriteJSONError(w, http.StatusInternalServerError, msgInternal)
		return
	}
	logger.Log.Infow("Exported products", "count", len(products), "bytes", len(data))
	w.Header().Set("Content-Type", xlsxType)
	w.Header().Set("Content-Disposition", `attachment; filename="products.xlsx"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// productWorkbook lays the catalog out one product per row under a header
func productWorkbook(products []models.Product) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	for i, p := range products {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := productRow(p)
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func productRow(p models.Product) []interface{} {
	discount := 0.0
	if p.Discount != nil {
		discount = *p.Discount
	}
	final, _ := carousel.DiscountedPrice(p.Price, discount).Float64()
	return []interface{}{
		p.ID, p.Name, p.Description, p.Category, string(p.Status),
		p.Price, discount, final, p.CurrencyCode(), strings.Join(p.Tags, ", "), p.ImageURL,
	}
}
