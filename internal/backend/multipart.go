package backend

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/textproto"
)

// Image types accepted by the image generation endpoint
const (
	ImageTypeProduct = "product"
	ImageTypeOffer   = "offer"
)

// FilePart is one uploaded file
type FilePart struct {
	Field       string
	Filename    string
	ContentType string
	Data        []byte
}

// ImageGenerationRequest asks the backend for AI generated product images
type ImageGenerationRequest struct {
	ProductID      string
	ImageType      string
	ReferenceImage *FilePart
}

// Kind maps the dashboard image type to the backend's vocabulary
func (r ImageGenerationRequest) Kind() string {
	if r.ImageType == ImageTypeProduct {
		return "single-product"
	}
	return "offer"
}

type field struct{ name, value string }

func encodeMultipart(fields []field, files ...FilePart) (*bytes.Buffer, string, error) {
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f.name, err)
		}
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, f.Field, f.Filename))
		if f.ContentType != "" {
			h.Set("Content-Type", f.ContentType)
		}
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create part %s: %w", f.Field, err)
		}
		if _, err := part.Write(f.Data); err != nil {
			return nil, "", fmt.Errorf("write part %s: %w", f.Field, err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart: %w", err)
	}
	return buf, w.FormDataContentType(), nil
}

// UploadFile forwards a single file to the backend file store
func (c *Client) UploadFile(ctx context.Context, f FilePart) (*Response, error) {
	if f.Field == "" {
		f.Field = "file"
	}
	body, ct, err := encodeMultipart(nil, f)
	if err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}
	return c.Forward(ctx, http.MethodPost, "/upload/file", body, ct)
}

// GenerateImages forwards an image generation request
func (c *Client) GenerateImages(ctx context.Context, r ImageGenerationRequest) (*Response, error) {
	fields := []field{
		{"productId", r.ProductID},
		{"imageType", r.Kind()},
	}
	var files []FilePart
	if r.ReferenceImage != nil {
		ref := *r.ReferenceImage
		ref.Field = "referenceImage"
		files = append(files, ref)
	}
	body, ct, err := encodeMultipart(fields, files...)
	if err != nil {
		return nil, fmt.Errorf("generate images: %w", err)
	}
	return c.Forward(ctx, http.MethodPost, "/product-image-generations", body, ct)
}
