package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"guidehub/internal/util"
	"guidehub/pkg/domain"
)

// GuideInput carries guide fields for create/update.
type GuideInput struct {
	Title    string   `json:"title"`
	Subtitle string   `json:"subtitle"`
	Image    string   `json:"image"`
	Overview string   `json:"overview"`
	Category string   `json:"category"`
	Tags     []string `json:"tags"`
	Price    int64    `json:"price"`
	PdfURL   string   `json:"pdfUrl"`
}

// ListGuides returns the public catalog.
func (a *App) ListGuides() ([]domain.Guide, error) {
	return a.store.ListGuides()
}

// GetGuide returns one guide with its purchasedBy projection rebuilt
// from the ledger.
func (a *App) GetGuide(id string) (domain.Guide, error) {
	guide, ok, err := a.store.GetGuide(id)
	if err != nil {
		return domain.Guide{}, fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return domain.Guide{}, ErrGuideNotFound
	}
	purchasers, err := a.store.ListPurchaserIDs(guide.ID)
	if err != nil {
		return domain.Guide{}, fmt.Errorf("list purchasers: %w", err)
	}
	guide.PurchasedBy = purchasers
	return guide, nil
}

// CreateGuide adds a new guide to the catalog.
func (a *App) CreateGuide(in GuideInput) (domain.Guide, error) {
	if strings.TrimSpace(in.Title) == "" || in.Price < 0 {
		return domain.Guide{}, ErrValidation
	}
	now := time.Now().UTC()
	guide := domain.Guide{
		ID:        util.NewID(),
		Title:     strings.TrimSpace(in.Title),
		Subtitle:  strings.TrimSpace(in.Subtitle),
		Image:     strings.TrimSpace(in.Image),
		Overview:  in.Overview,
		Category:  strings.TrimSpace(in.Category),
		Tags:      in.Tags,
		Price:     in.Price,
		Status:    domain.GuideDraft,
		PdfURL:    strings.TrimSpace(in.PdfURL),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.SaveGuide(guide); err != nil {
		return domain.Guide{}, fmt.Errorf("save guide: %w", err)
	}
	return guide, nil
}

// UpdateGuide replaces editable guide fields.
func (a *App) UpdateGuide(id string, in GuideInput) (domain.Guide, error) {
	guide, ok, err := a.store.GetGuide(id)
	if err != nil {
		return domain.Guide{}, fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return domain.Guide{}, ErrGuideNotFound
	}
	if strings.TrimSpace(in.Title) == "" || in.Price < 0 {
		return domain.Guide{}, ErrValidation
	}
	guide.Title = strings.TrimSpace(in.Title)
	guide.Subtitle = strings.TrimSpace(in.Subtitle)
	guide.Image = strings.TrimSpace(in.Image)
	guide.Overview = in.Overview
	guide.Category = strings.TrimSpace(in.Category)
	guide.Tags = in.Tags
	guide.Price = in.Price
	if url := strings.TrimSpace(in.PdfURL); url != "" {
		guide.PdfURL = url
	}
	guide.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveGuide(guide); err != nil {
		return domain.Guide{}, fmt.Errorf("save guide: %w", err)
	}
	return guide, nil
}

// DeleteGuide removes a guide and its uploaded PDF object.
func (a *App) DeleteGuide(ctx context.Context, id string) error {
	guide, ok, err := a.store.GetGuide(id)
	if err != nil {
		return fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return ErrGuideNotFound
	}
	if guide.PdfFileID != "" {
		if file, ok, err := a.store.GetPdfFile(guide.PdfFileID); err == nil && ok && file.StorageKey != "" {
			if err := a.objects.Delete(ctx, file.StorageKey); err != nil {
				slog.Warn("delete guide pdf object", "guideId", id, "error", err)
			}
		}
	}
	return a.store.DeleteGuide(id)
}

// UploadGuidePDF stores an uploaded PDF, links it to the guide, and queues
// the page-count inspection. Without a queue the inspection runs inline.
func (a *App) UploadGuidePDF(ctx context.Context, guideID, filename, contentType string, body io.Reader, size int64) (domain.PdfFile, error) {
	guide, ok, err := a.store.GetGuide(guideID)
	if err != nil {
		return domain.PdfFile{}, fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return domain.PdfFile{}, ErrGuideNotFound
	}
	if !isPdfUpload(filename, contentType) {
		return domain.PdfFile{}, ErrInvalidPdfUpload
	}

	key := fmt.Sprintf("guides/%s/%s", guide.ID, sanitizeObjectName(filename))
	if err := a.objects.Put(ctx, key, body, size, "application/pdf"); err != nil {
		return domain.PdfFile{}, fmt.Errorf("store pdf: %w", err)
	}

	file := domain.PdfFile{
		ID:           util.NewID(),
		GuideID:      guide.ID,
		OriginalName: filename,
		MimeType:     "application/pdf",
		SizeBytes:    size,
		StorageKey:   key,
		CreatedAt:    time.Now().UTC(),
	}
	if err := a.store.SavePdfFile(file); err != nil {
		return domain.PdfFile{}, fmt.Errorf("save pdf file: %w", err)
	}

	guide.PdfFileID = file.ID
	guide.Status = domain.GuideProcessing
	guide.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveGuide(guide); err != nil {
		return domain.PdfFile{}, fmt.Errorf("link guide: %w", err)
	}

	if a.inspectQueue != nil {
		if _, err := a.inspectQueue.Enqueue(ctx, guide.ID); err != nil {
			slog.Warn("enqueue pdf inspection", "guideId", guide.ID, "error", err)
		}
	} else {
		if err := a.InspectGuidePDF(ctx, guide.ID); err != nil {
			slog.Warn("inline pdf inspection", "guideId", guide.ID, "error", err)
		}
	}
	return file, nil
}

func isPdfUpload(filename, contentType string) bool {
	if strings.EqualFold(strings.TrimSpace(contentType), "application/pdf") {
		return true
	}
	return strings.EqualFold(path.Ext(filename), ".pdf")
}

func sanitizeObjectName(filename string) string {
	name := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := strings.Trim(b.String(), "._")
	if out == "" {
		out = "document.pdf"
	}
	return out
}
