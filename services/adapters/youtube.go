package adapters

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sahilchouksey/module-enhancer/model"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

const ProviderYouTube = "youtube"

// YouTubeSearcher finds embeddable videos through the YouTube Data API v3
type YouTubeSearcher struct {
	service *youtube.Service
	timeout time.Duration
}

// YouTubeConfig configures the searcher. Endpoint is only set by tests.
type YouTubeConfig struct {
	APIKey   string
	Endpoint string
	Timeout  time.Duration
}

func NewYouTubeSearcher(ctx context.Context, cfg YouTubeConfig) (*YouTubeSearcher, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("youtube api key is not configured")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultVideoTimeout
	}

	opts := []option.ClientOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint))
	}

	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create YouTube service: %w", err)
	}
	return &YouTubeSearcher{service: service, timeout: cfg.Timeout}, nil
}

func (s *YouTubeSearcher) SearchVideos(ctx context.Context, query string, max int) ([]model.VideoResult, error) {
	ctx, cancel := withTimeout(ctx, s.timeout)
	defer cancel()

	if max < 1 {
		max = 1
	}

	resp, err := s.service.Search.List([]string{"id", "snippet"}).
		Q(query).
		Type("video").
		VideoEmbeddable("true").
		SafeSearch("strict").
		MaxResults(int64(max)).
		Context(ctx).
		Do()
	if err != nil {
		var gErr *googleapi.Error
		if errors.As(err, &gErr) {
			// YouTube reports exhausted quota as 403 quotaExceeded
			if gErr.Code == 403 && looksRateLimited(gErr) {
				return nil, &RateLimitError{ServiceError: &ServiceError{Provider: ProviderYouTube, StatusCode: gErr.Code, Cause: err}}
			}
			return nil, newServiceError(ProviderYouTube, gErr.Code, err)
		}
		return nil, newServiceError(ProviderYouTube, 0, err)
	}

	videos := make([]model.VideoResult, 0, len(resp.Items))
	for _, item := range resp.Items {
		if item.Id == nil || item.Id.VideoId == "" {
			continue
		}
		v := model.VideoResult{
			VideoID: item.Id.VideoId,
			URL:     "https://www.youtube.com/watch?v=" + item.Id.VideoId,
		}
		if item.Snippet != nil {
			v.Title = item.Snippet.Title
			v.Description = item.Snippet.Description
		}
		videos = append(videos, v)
		if len(videos) == max {
			break
		}
	}
	return videos, nil
}
