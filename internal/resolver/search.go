package resolver

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/api/option"
	youtube "google.golang.org/api/youtube/v3"
)

var errNoResults = errors.New("no results")

// YouTubeSearch finds the first video for a query through the YouTube Data API.
type YouTubeSearch struct {
	service *youtube.Service
}

func NewYouTubeSearch(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTubeSearch, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	service, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create youtube service: %w", err)
	}
	return &YouTubeSearch{service: service}, nil
}

func (y *YouTubeSearch) Search(ctx context.Context, query string) (string, error) {
	call := y.service.Search.List([]string{"id"}).
		Q(query).
		Type("video").
		MaxResults(1).
		Context(ctx)

	resp, err := call.Do()
	if err != nil {
		return "", err
	}
	for _, item := range resp.Items {
		if item.Id != nil && item.Id.VideoId != "" {
			return "https://www.youtube.com/watch?v=" + item.Id.VideoId, nil
		}
	}
	return "", errNoResults
}
