package services

import (
	"context"
	"errors"

	"github.com/yungbote/insightflow-backend/internal/clients/unsplash"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type ImageSearchService interface {
	Search(ctx context.Context, query string) ([]unsplash.Image, error)
}

type imageSearchService struct {
	log    *logger.Logger
	client unsplash.Client
}

func NewImageSearchService(baseLog *logger.Logger, client unsplash.Client) ImageSearchService {
	return &imageSearchService{log: baseLog.With("service", "ImageSearchService"), client: client}
}

func (s *imageSearchService) Search(ctx context.Context, query string) ([]unsplash.Image, error) {
	if _, err := requireUser(ctx); err != nil {
		return nil, err
	}
	if s.client == nil {
		return nil, apierr.Upstream("image search is not configured", unsplash.ErrNotConfigured)
	}
	imgs, err := s.client.Search(ctx, query)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		s.log.Warn("Image search failed", "error", err)
		if errors.Is(err, unsplash.ErrNotConfigured) {
			return nil, apierr.Upstream("image search is not configured", err)
		}
		return nil, apierr.Upstream("image search failed", err)
	}
	return imgs, nil
}
