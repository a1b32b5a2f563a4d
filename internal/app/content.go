package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"guidehub/pkg/domain"
	"guidehub/pkg/storage"
)

var remoteFetchClient = &http.Client{Timeout: 30 * time.Second}

// PdfStream is an open PDF source ready to be copied to a response.
type PdfStream struct {
	Body io.ReadCloser
	Size int64 // -1 when unknown
}

// OpenGuidePDF resolves and opens the PDF for a purchased guide.
// Resolution order: linked upload's storage key, remote http(s) pdfUrl,
// then pdfUrl treated as a bare object key. Access requires a completed
// purchase unless the user is an admin.
func (a *App) OpenGuidePDF(ctx context.Context, user domain.User, guideID string) (PdfStream, error) {
	guide, ok, err := a.store.GetGuide(guideID)
	if err != nil {
		return PdfStream{}, fmt.Errorf("fetch guide: %w", err)
	}
	if !ok {
		return PdfStream{}, ErrGuideNotFound
	}
	if user.Role != domain.RoleAdmin {
		purchased, err := a.HasPurchased(user.ID, guide.ID)
		if err != nil {
			return PdfStream{}, err
		}
		if !purchased {
			return PdfStream{}, ErrPurchaseRequired
		}
	}
	return a.openGuideSource(ctx, guide)
}

func (a *App) openGuideSource(ctx context.Context, guide domain.Guide) (PdfStream, error) {
	if guide.PdfFileID != "" {
		file, ok, err := a.store.GetPdfFile(guide.PdfFileID)
		if err != nil {
			return PdfStream{}, fmt.Errorf("fetch pdf file: %w", err)
		}
		if ok && file.StorageKey != "" {
			return a.openObject(ctx, file.StorageKey)
		}
	}

	pdfURL := strings.TrimSpace(guide.PdfURL)
	if pdfURL == "" {
		return PdfStream{}, ErrPdfSourceMissing
	}
	if strings.HasPrefix(pdfURL, "http://") || strings.HasPrefix(pdfURL, "https://") {
		return a.openRemote(ctx, pdfURL)
	}
	return a.openObject(ctx, pdfURL)
}

func (a *App) openObject(ctx context.Context, key string) (PdfStream, error) {
	body, size, err := a.objects.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return PdfStream{}, ErrPdfSourceMissing
		}
		return PdfStream{}, fmt.Errorf("%w: %v", ErrPdfFetchFailed, err)
	}
	return PdfStream{Body: body, Size: size}, nil
}

func (a *App) openRemote(ctx context.Context, url string) (PdfStream, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PdfStream{}, fmt.Errorf("%w: %v", ErrPdfFetchFailed, err)
	}
	resp, err := remoteFetchClient.Do(req)
	if err != nil {
		return PdfStream{}, fmt.Errorf("%w: %v", ErrPdfFetchFailed, err)
	}
	if resp.StatusCode == http.StatusNotFound {
		_ = resp.Body.Close()
		return PdfStream{}, ErrPdfSourceMissing
	}
	if resp.StatusCode >= 400 {
		_ = resp.Body.Close()
		return PdfStream{}, fmt.Errorf("%w: upstream status %d", ErrPdfFetchFailed, resp.StatusCode)
	}
	size := resp.ContentLength
	if size < 0 {
		size = -1
	}
	return PdfStream{Body: resp.Body, Size: size}, nil
}
