package fetcher

import (
	"bytes"
	"context"
	"image"
	"image/jpeg"
	"log/slog"

	"github.com/adampresley/phototourist/pkg/flickr"
	"github.com/alitto/pond/v2"
	"github.com/nfnt/resize"
)

/*
ErrorCallback receives every pipeline failure. retry is nil when the
pipeline has no sensible way to re-run just the failed piece; the
caller decides whether to retry the whole operation.
*/
type ErrorCallback func(err error, retry func())

type ImageData struct {
	Name      string
	Image     []byte
	Thumbnail []byte
}

/*
PageResult is one fully downloaded page. TotalCount is the remote
total for the whole query, not the number of items on this page.
*/
type PageResult struct {
	Items      []ImageData
	TotalCount float64
}

type ImageFetcherConfig struct {
	Searcher      flickr.Searcher
	MaxWorkers    int
	ErrorCallback ErrorCallback
	ShutdownCtx   context.Context
}

type ImageFetcher interface {
	FetchPage(ctx context.Context, latitude, longitude float64, page int) (*PageResult, error)
}

/*
ImageFetcherService resolves one page request into a set of downloaded
images: a single metadata search, then one concurrent download per
hit, joined before the result is produced. A page with fewer hits than
the page size completes with what the search returned. Any download
failure makes the whole page fail; partial pages are never handed to
the caller. The pipeline never retries on its own.
*/
type ImageFetcherService struct {
	searcher      flickr.Searcher
	maxWorkers    int
	errorCallback ErrorCallback
	shutdownCtx   context.Context
}

func NewImageFetcherService(config ImageFetcherConfig) ImageFetcherService {
	if config.MaxWorkers <= 0 {
		config.MaxWorkers = flickr.PerPage
	}

	if config.ErrorCallback == nil {
		config.ErrorCallback = func(err error, retry func()) {}
	}

	if config.ShutdownCtx == nil {
		config.ShutdownCtx = context.Background()
	}

	return ImageFetcherService{
		searcher:      config.Searcher,
		maxWorkers:    config.MaxWorkers,
		errorCallback: config.ErrorCallback,
		shutdownCtx:   config.ShutdownCtx,
	}
}

func (f ImageFetcherService) FetchPage(ctx context.Context, latitude, longitude float64, page int) (*PageResult, error) {
	var (
		err          error
		searchResult *flickr.SearchResult
	)

	if searchResult, err = f.searcher.Search(ctx, latitude, longitude, page); err != nil {
		f.errorCallback(err, nil)
		return nil, err
	}

	descriptors := searchResult.Descriptors
	items := make([]ImageData, len(descriptors))
	downloadErrs := make([]error, len(descriptors))

	pool := pond.NewPool(f.maxWorkers, pond.WithContext(f.shutdownCtx))

	for i, descriptor := range descriptors {
		pool.Submit(func() {
			var (
				downloadErr error
				imageBytes  []byte
			)

			if imageBytes, downloadErr = f.searcher.DownloadImage(ctx, descriptor); downloadErr != nil {
				downloadErrs[i] = downloadErr
				return
			}

			items[i] = ImageData{
				Name:      descriptor.Title,
				Image:     imageBytes,
				Thumbnail: f.thumbnail(imageBytes, descriptor.Title),
			}
		})
	}

	_ = pool.Stop().Wait()

	/*
	 * A failed download fails the whole page, but siblings were not
	 * cancelled, so report every failure individually.
	 */
	var firstErr error

	for _, downloadErr := range downloadErrs {
		if downloadErr == nil {
			continue
		}

		f.errorCallback(downloadErr, nil)

		if firstErr == nil {
			firstErr = downloadErr
		}
	}

	if firstErr != nil {
		return nil, firstErr
	}

	return &PageResult{
		Items:      items,
		TotalCount: searchResult.Total,
	}, nil
}

/*
thumbnail produces a downscaled jpeg copy of the image, 400px on the
longest edge. Best effort: bytes that do not decode ship without a
thumbnail rather than failing the page.
*/
func (f ImageFetcherService) thumbnail(imageBytes []byte, name string) []byte {
	var (
		err error
		img image.Image
		buf bytes.Buffer
	)

	if img, _, err = image.Decode(bytes.NewReader(imageBytes)); err != nil {
		slog.Warn("error decoding image for thumbnail", "name", name, "error", err)
		return nil
	}

	if err = jpeg.Encode(&buf, f.resizeImage(img, 400), &jpeg.Options{Quality: 85}); err != nil {
		slog.Warn("error encoding thumbnail", "name", name, "error", err)
		return nil
	}

	return buf.Bytes()
}

func (f ImageFetcherService) resizeImage(img image.Image, maxSize uint) image.Image {
	/*
	 * Determine which dimension to resize based on the longest edge
	 */
	bounds := img.Bounds()
	width := uint(bounds.Dx())
	height := uint(bounds.Dy())

	var newWidth, newHeight uint
	if width > height {
		// Landscape orientation
		newWidth = maxSize
		newHeight = uint(float64(height) * (float64(maxSize) / float64(width)))
	} else {
		// Portrait orientation or square
		newHeight = maxSize
		newWidth = uint(float64(width) * (float64(maxSize) / float64(height)))
	}

	return resize.Resize(newWidth, newHeight, img, resize.Lanczos3)
}
