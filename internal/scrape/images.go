package scrape

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "golang.org/x/image/webp"

	"github.com/sells-group/classifieds-cli/internal/dom"
	"github.com/sells-group/classifieds-cli/internal/fetcher"
	"github.com/sells-group/classifieds-cli/internal/model"
)

// Downloader retrieves raw bytes with their declared content type.
type Downloader interface {
	Download(ctx context.Context, url string) (*fetcher.Download, error)
}

// ImageWriter persists image bytes under a filename.
type ImageWriter interface {
	SaveImage(ctx context.Context, filename string, data []byte) error
}

const defaultImageExt = ".jpg"

// ImageHarvester downloads gallery images one at a time in gallery order.
// Each image is independent: a failed download, decode, or write is logged
// and skipped.
type ImageHarvester struct {
	dl  Downloader
	out ImageWriter
	sel Selectors
}

// NewImageHarvester creates an ImageHarvester.
func NewImageHarvester(dl Downloader, out ImageWriter, sel Selectors) *ImageHarvester {
	return &ImageHarvester{dl: dl, out: out, sel: sel}
}

// Harvest processes every gallery image of doc. Sequence numbers are the
// 1-based gallery positions, so a skipped image leaves a gap in the
// filenames.
func (h *ImageHarvester) Harvest(ctx context.Context, doc dom.Document, adID string) []model.ImageAsset {
	nodes := dom.FirstMatch(doc, h.sel.Detail.GalleryImages)
	assets := make([]model.ImageAsset, 0, len(nodes))

	for i, node := range nodes {
		seq := i + 1
		src := h.imageSource(node)
		if src == "" {
			zap.L().Debug("scrape: gallery image without source",
				zap.String("ad_id", adID),
				zap.Int("seq", seq),
			)
			continue
		}
		imgURL, err := resolveURL(h.sel.BaseURL, src)
		if err != nil {
			zap.L().Warn("scrape: bad gallery image url",
				zap.String("ad_id", adID),
				zap.Int("seq", seq),
				zap.Error(err),
			)
			continue
		}

		asset, err := h.harvestOne(ctx, adID, seq, imgURL)
		if err != nil {
			zap.L().Warn("scrape: skipping gallery image",
				zap.String("ad_id", adID),
				zap.Int("seq", seq),
				zap.String("url", imgURL),
				zap.Error(err),
			)
			continue
		}
		zap.L().Debug("scrape: image saved",
			zap.String("ad_id", adID),
			zap.String("filename", asset.Filename),
		)
		assets = append(assets, *asset)
	}

	return assets
}

// imageSource prefers the high-resolution attribute over the fallback.
func (h *ImageHarvester) imageSource(node dom.Node) string {
	for _, attr := range h.sel.Detail.ImageAttributes {
		if v, ok := node.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func (h *ImageHarvester) harvestOne(ctx context.Context, adID string, seq int, imgURL string) (*model.ImageAsset, error) {
	dl, err := h.dl.Download(ctx, imgURL)
	if err != nil {
		return nil, eris.Wrap(err, "scrape: download image")
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(dl.Body))
	if err != nil {
		return nil, eris.Wrap(err, "scrape: decode image")
	}

	filename := ImageFilename(adID, seq, ImageExtension(dl.ContentType))
	if err := h.out.SaveImage(ctx, filename, dl.Body); err != nil {
		return nil, eris.Wrap(err, "scrape: save image")
	}

	return &model.ImageAsset{
		Filename:    filename,
		OriginalURL: imgURL,
		Width:       cfg.Width,
		Height:      cfg.Height,
		SizeBytes:   int64(len(dl.Body)),
	}, nil
}

// ImageFilename builds the deterministic asset name {adID}_{seq}{ext}.
func ImageFilename(adID string, seq int, ext string) string {
	return fmt.Sprintf("%s_%d%s", adID, seq, ext)
}

// ImageExtension maps a declared content type to a file extension,
// defaulting to .jpg.
func ImageExtension(contentType string) string {
	ct := strings.ToLower(contentType)
	switch {
	case strings.Contains(ct, "jpeg"), strings.Contains(ct, "jpg"):
		return ".jpg"
	case strings.Contains(ct, "png"):
		return ".png"
	case strings.Contains(ct, "gif"):
		return ".gif"
	case strings.Contains(ct, "webp"):
		return ".webp"
	default:
		return defaultImageExt
	}
}
