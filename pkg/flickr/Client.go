package flickr

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

const (
	DefaultApiURL      = "https://www.flickr.com/services/rest/"
	DefaultDownloadURL = "https://live.staticflickr.com"

	// PerPage is the fixed search page size.
	PerPage = 25

	// bboxDelta is the half-width, in degrees, of the bounding box
	// around the search center.
	bboxDelta = 5.0
)

type Searcher interface {
	Search(ctx context.Context, latitude, longitude float64, page int) (*SearchResult, error)
	DownloadImage(ctx context.Context, descriptor PhotoDescriptor) ([]byte, error)
}

type ClientConfig struct {
	ApiURL      string
	DownloadURL string
	ApiKey      string
	HttpClient  *http.Client
}

/*
Client talks to the Flickr REST API: one search call per page of
results, then one download per photo. It never retries; every failure
surfaces to the caller as one of the typed errors in this package.
*/
type Client struct {
	apiURL      string
	downloadURL string
	apiKey      string
	httpClient  *http.Client
}

func NewClient(config ClientConfig) Client {
	if config.ApiURL == "" {
		config.ApiURL = DefaultApiURL
	}

	if config.DownloadURL == "" {
		config.DownloadURL = DefaultDownloadURL
	}

	if config.HttpClient == nil {
		config.HttpClient = &http.Client{Timeout: time.Second * 30}
	}

	return Client{
		apiURL:      config.ApiURL,
		downloadURL: config.DownloadURL,
		apiKey:      config.ApiKey,
		httpClient:  config.HttpClient,
	}
}

/*
Search runs a location search for one page of results. The bounding
box is a fixed ±5 degrees around the center.
*/
func (c Client) Search(ctx context.Context, latitude, longitude float64, page int) (*SearchResult, error) {
	var (
		err      error
		body     []byte
		envelope searchEnvelope
	)

	query := url.Values{}
	query.Set("method", "flickr.photos.search")
	query.Set("format", "json")
	query.Set("nojsoncallback", "1")
	query.Set("per_page", strconv.Itoa(PerPage))
	query.Set("accuracy", "8")
	query.Set("privacy_filter", "1")
	query.Set("page", strconv.Itoa(page))
	query.Set("bbox", fmt.Sprintf("%f,%f,%f,%f", longitude-bboxDelta, latitude-bboxDelta, longitude+bboxDelta, latitude+bboxDelta))
	query.Set("api_key", c.apiKey)

	if body, err = c.executeRequest(ctx, c.apiURL+"?"+query.Encode()); err != nil {
		return nil, err
	}

	if err = json.Unmarshal(body, &envelope); err != nil {
		return nil, &DecodeError{Err: err}
	}

	result := &SearchResult{
		Descriptors: envelope.Photos.Photo,
		Page:        envelope.Photos.Page,
		PerPage:     envelope.Photos.PerPage,
	}

	// The API serializes total and pages as strings.
	if result.Total, err = strconv.ParseFloat(envelope.Photos.Total, 64); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("bad total %q: %w", envelope.Photos.Total, err)}
	}

	if result.Pages, err = strconv.Atoi(envelope.Photos.Pages); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("bad pages %q: %w", envelope.Photos.Pages, err)}
	}

	return result, nil
}

/*
DownloadImage fetches the raw image bytes for one search hit. URL
shape per https://www.flickr.com/services/api/misc.urls.html
*/
func (c Client) DownloadImage(ctx context.Context, descriptor PhotoDescriptor) ([]byte, error) {
	imageURL := fmt.Sprintf("%s/%s/%s_%s.jpg", c.downloadURL, descriptor.Server, descriptor.ID, descriptor.Secret)
	return c.executeRequest(ctx, imageURL)
}

func (c Client) executeRequest(ctx context.Context, requestURL string) ([]byte, error) {
	var (
		err      error
		request  *http.Request
		response *http.Response
		body     []byte
	)

	if request, err = http.NewRequestWithContext(ctx, http.MethodGet, requestURL, nil); err != nil {
		return nil, fmt.Errorf("error building request for '%s': %w", requestURL, err)
	}

	if response, err = c.httpClient.Do(request); err != nil {
		return nil, &TransportError{Err: err}
	}

	defer response.Body.Close()

	if body, err = io.ReadAll(response.Body); err != nil {
		return nil, &TransportError{Err: err}
	}

	// Redirect statuses count as success. Anything past 399 does not.
	if response.StatusCode < 200 || response.StatusCode > 399 {
		return nil, generateError(body, response.StatusCode)
	}

	return body, nil
}

/*
generateError builds an HTTPError from an error response, pulling the
message out of a JSON body when there is one.
*/
func generateError(body []byte, statusCode int) *HTTPError {
	var (
		errorData map[string]any
	)

	message := fmt.Sprintf("There was a %d error making the request to the server", statusCode)

	if len(body) > 0 {
		if err := json.Unmarshal(body, &errorData); err == nil {
			if m, ok := errorData["message"].(string); ok {
				message = m
			}
		}
	}

	return &HTTPError{
		StatusCode: statusCode,
		Message:    message,
	}
}
