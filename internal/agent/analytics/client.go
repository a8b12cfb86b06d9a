package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// ErrUnauthorized means the provider rejected the access token.
var ErrUnauthorized = errors.New("analytics provider rejected credential")

// Query is one provider report request.
type Query struct {
	Start      time.Time
	End        time.Time
	Metrics    []string
	Dimensions string
	Filters    string
	Sort       string
	MaxResults int
}

// DefaultDataURL is the YouTube Data API root used to list a channel's uploads.
const DefaultDataURL = "https://www.googleapis.com/youtube/v3"

// dataPageSize is the Data API's maximum page and batch size.
const dataPageSize = 50

// Upload is one video of the channel's uploads playlist.
type Upload struct {
	VideoID         string
	Title           string
	PublishedAt     time.Time
	DurationSeconds *int64
	ViewCount       *int64
}

// Provider is the external analytics source.
type Provider interface {
	Query(ctx context.Context, accessToken string, q Query) (*Report, error)
	// Uploads lists up to limit of the channel's most recent uploads.
	Uploads(ctx context.Context, accessToken string, limit int) ([]Upload, error)
}

// HTTPClient talks to the YouTube Analytics reports endpoint and the Data API.
type HTTPClient struct {
	baseURL string
	dataURL string
	http    *http.Client
	limiter *rate.Limiter
}

type ClientOption func(*HTTPClient)

// WithDataURL overrides the Data API root.
func WithDataURL(u string) ClientOption {
	return func(c *HTTPClient) { c.dataURL = strings.TrimRight(u, "/") }
}

func NewHTTPClient(baseURL string, timeout time.Duration, rps float64, burst int, opts ...ClientOption) *HTTPClient {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	c := &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		dataURL: DefaultDataURL,
		http:    &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *HTTPClient) Query(ctx context.Context, accessToken string, q Query) (*Report, error) {
	params := url.Values{}
	params.Set("ids", "channel==MINE")
	params.Set("startDate", q.Start.Format(time.DateOnly))
	params.Set("endDate", q.End.Format(time.DateOnly))
	params.Set("metrics", strings.Join(q.Metrics, ","))
	if q.Dimensions != "" {
		params.Set("dimensions", q.Dimensions)
	}
	if q.Filters != "" {
		params.Set("filters", q.Filters)
	}
	if q.Sort != "" {
		params.Set("sort", q.Sort)
	}
	if q.MaxResults > 0 {
		params.Set("maxResults", strconv.Itoa(q.MaxResults))
	}

	var report Report
	if err := c.get(ctx, accessToken, c.baseURL+"/reports", params, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

type channelList struct {
	Items []struct {
		ContentDetails struct {
			RelatedPlaylists struct {
				Uploads string `json:"uploads"`
			} `json:"relatedPlaylists"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type playlistItemList struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ContentDetails struct {
			VideoID string `json:"videoId"`
		} `json:"contentDetails"`
	} `json:"items"`
}

type videoList struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title       string    `json:"title"`
			PublishedAt time.Time `json:"publishedAt"`
		} `json:"snippet"`
		ContentDetails struct {
			Duration string `json:"duration"`
		} `json:"contentDetails"`
		Statistics struct {
			ViewCount string `json:"viewCount"`
		} `json:"statistics"`
	} `json:"items"`
}

// Uploads walks the uploads playlist newest first, then reads titles,
// durations and view counts in batches.
func (c *HTTPClient) Uploads(ctx context.Context, accessToken string, limit int) ([]Upload, error) {
	if limit <= 0 {
		return nil, nil
	}
	var channels channelList
	if err := c.get(ctx, accessToken, c.dataURL+"/channels", url.Values{"part": {"contentDetails"}, "mine": {"true"}}, &channels); err != nil {
		return nil, err
	}
	if len(channels.Items) == 0 || channels.Items[0].ContentDetails.RelatedPlaylists.Uploads == "" {
		return nil, errors.New("channel has no uploads playlist")
	}
	playlist := channels.Items[0].ContentDetails.RelatedPlaylists.Uploads

	var ids []string
	page := ""
	for len(ids) < limit {
		params := url.Values{
			"part":       {"contentDetails"},
			"playlistId": {playlist},
			"maxResults": {strconv.Itoa(min(dataPageSize, limit-len(ids)))},
		}
		if page != "" {
			params.Set("pageToken", page)
		}
		var items playlistItemList
		if err := c.get(ctx, accessToken, c.dataURL+"/playlistItems", params, &items); err != nil {
			return nil, err
		}
		for _, it := range items.Items {
			ids = append(ids, it.ContentDetails.VideoID)
		}
		if page = items.NextPageToken; page == "" || len(items.Items) == 0 {
			break
		}
	}
	ids = ids[:min(len(ids), limit)]

	out := make([]Upload, 0, len(ids))
	for start := 0; start < len(ids); start += dataPageSize {
		batch := ids[start:min(start+dataPageSize, len(ids))]
		params := url.Values{"part": {"snippet,contentDetails,statistics"}, "id": {strings.Join(batch, ",")}}
		var videos videoList
		if err := c.get(ctx, accessToken, c.dataURL+"/videos", params, &videos); err != nil {
			return nil, err
		}
		for _, v := range videos.Items {
			u := Upload{VideoID: v.ID, Title: v.Snippet.Title, PublishedAt: v.Snippet.PublishedAt}
			if d, ok := ParseISODuration(v.ContentDetails.Duration); ok {
				u.DurationSeconds = &d
			}
			if n, err := strconv.ParseInt(v.Statistics.ViewCount, 10, 64); err == nil {
				u.ViewCount = &n
			}
			out = append(out, u)
		}
	}
	return out, nil
}

// get performs one rate-limited, authorized GET and decodes the JSON body into out.
func (c *HTTPClient) get(ctx context.Context, accessToken, endpoint string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("analytics rate limit: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("analytics request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("analytics request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		return ErrUnauthorized
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8192))
		return fmt.Errorf("analytics request failed with status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	dec := json.NewDecoder(io.LimitReader(resp.Body, 8<<20))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode analytics response: %w", err)
	}
	return nil
}

var isoDuration = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// ParseISODuration reads the Data API's ISO 8601 durations such as PT4M13S.
func ParseISODuration(s string) (int64, bool) {
	m := isoDuration.FindStringSubmatch(s)
	if m == nil || s == "P" || s == "PT" {
		return 0, false
	}
	var total int64
	for i, unit := range []int64{86400, 3600, 60, 1} {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.ParseInt(m[i+1], 10, 64)
		if err != nil {
			return 0, false
		}
		total += n * unit
	}
	return total, true
}

var _ Provider = (*HTTPClient)(nil)
