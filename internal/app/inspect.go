package app

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/ledongthuc/pdf"

	"guidehub/pkg/domain"
)

// InspectGuidePDF downloads the guide's uploaded PDF, extracts the page
// count, and moves the guide to ready. Parse failures mark the guide failed
// and return nil so the job is not retried for a broken document.
func (a *App) InspectGuidePDF(ctx context.Context, guideID string) error {
	guide, ok, err := a.store.GetGuide(guideID)
	if err != nil {
		return fmt.Errorf("fetch guide: %w", err)
	}
	if !ok || guide.PdfFileID == "" {
		return nil
	}
	file, ok, err := a.store.GetPdfFile(guide.PdfFileID)
	if err != nil {
		return fmt.Errorf("fetch pdf file: %w", err)
	}
	if !ok {
		return nil
	}

	pages, err := a.countPdfPages(ctx, file.StorageKey)
	if err != nil {
		if setErr := a.store.SetGuideStatus(guide.ID, domain.GuideFailed, 0); setErr != nil {
			return fmt.Errorf("mark guide failed: %w", setErr)
		}
		return nil
	}

	file.Pages = pages
	if err := a.store.SavePdfFile(file); err != nil {
		return fmt.Errorf("save pdf pages: %w", err)
	}
	if err := a.store.SetGuideStatus(guide.ID, domain.GuideReady, pages); err != nil {
		return fmt.Errorf("mark guide ready: %w", err)
	}
	return nil
}

func (a *App) countPdfPages(ctx context.Context, storageKey string) (int, error) {
	body, _, err := a.objects.Get(ctx, storageKey)
	if err != nil {
		return 0, fmt.Errorf("open object: %w", err)
	}
	defer body.Close()

	tmp, err := os.CreateTemp("", "guidehub-inspect-*.pdf")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := io.Copy(tmp, body); err != nil {
		return 0, fmt.Errorf("download pdf: %w", err)
	}

	file, reader, err := pdf.Open(tmp.Name())
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()
	pages := reader.NumPage()
	if pages <= 0 {
		return 0, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}
