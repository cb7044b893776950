package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/clients/gcp"
	"github.com/yungbote/insightflow-backend/internal/clients/httpfetch"
	"github.com/yungbote/insightflow-backend/internal/clients/redis"
	"github.com/yungbote/insightflow-backend/internal/data/repos"
	"github.com/yungbote/insightflow-backend/internal/ingestion/tabular"
	"github.com/yungbote/insightflow-backend/internal/observability"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

type DatasetService interface {
	// GetForProject loads and parses the dataset linked to an owned project.
	GetForProject(dbc dbctx.Context, projectID uuid.UUID) (*tabular.Dataset, error)
}

type DatasetSources struct {
	HTTP    httpfetch.Fetcher
	Objects gcp.ObjectReader
	Cache   redis.DatasetCache
}

type datasetService struct {
	db          *gorm.DB
	log         *logger.Logger
	projectRepo repos.ProjectRepo
	src         DatasetSources
	parseOpts   tabular.Options
	group       singleflight.Group
}

func NewDatasetService(db *gorm.DB, baseLog *logger.Logger, projectRepo repos.ProjectRepo, src DatasetSources, parseOpts tabular.Options) DatasetService {
	return &datasetService{
		db:          db,
		log:         baseLog.With("service", "DatasetService"),
		projectRepo: projectRepo,
		src:         src,
		parseOpts:   parseOpts,
	}
}

func (s *datasetService) GetForProject(dbc dbctx.Context, projectID uuid.UUID) (*tabular.Dataset, error) {
	uid, err := requireUser(dbc.Ctx)
	if err != nil {
		return nil, err
	}
	p, err := s.projectRepo.GetByID(dbc, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.OwnedBy(uid) {
		return nil, apierr.NotFound(codeProjectNotFound, "project not found")
	}
	if p.DatasetURL == nil || strings.TrimSpace(*p.DatasetURL) == "" {
		return nil, apierr.NotFound(codeDatasetNotFound, "no dataset linked to this project")
	}
	return s.load(dbc.Ctx, strings.TrimSpace(*p.DatasetURL))
}

// load collapses concurrent loads of one locator into a single fetch and parse.
// The shared call outlives any single caller's cancellation.
func (s *datasetService) load(ctx context.Context, locator string) (*tabular.Dataset, error) {
	if s.src.Cache != nil {
		ds, ok, err := s.src.Cache.Get(ctx, locator)
		switch {
		case err != nil:
			observability.Current().IncDatasetCache("error")
			s.log.Warn("Dataset cache read failed", "error", err)
		case ok:
			observability.Current().IncDatasetCache("hit")
			return ds, nil
		default:
			observability.Current().IncDatasetCache("miss")
		}
	}

	ch := s.group.DoChan(locator, func() (any, error) {
		return s.fetchAndParse(context.WithoutCancel(ctx), locator)
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*tabular.Dataset), nil
	}
}

func (s *datasetService) fetchAndParse(ctx context.Context, locator string) (ds *tabular.Dataset, err error) {
	source := locatorScheme(locator)
	ctx, span := observability.StartSpan(ctx, "dataset.load", attribute.String("source", source))
	start := time.Now()
	defer func() {
		result := "ok"
		rows := 0
		if err != nil {
			result = "error"
		} else {
			rows = len(ds.Rows)
		}
		observability.Current().ObserveDatasetLoad(source, result, rows, time.Since(start))
		observability.EndSpan(span, err)
	}()

	rc, err := s.open(ctx, source, locator)
	if err != nil {
		s.log.Warn("Dataset fetch failed", "source", source, "error", err)
		return nil, apierr.Upstream("dataset fetch failed", err)
	}
	defer rc.Close()

	ds, err = tabular.Parse(rc, s.parseOpts)
	if err != nil {
		var rowErr *tabular.RowError
		if errors.As(err, &rowErr) {
			s.log.Warn("Dataset parse failed", "source", source, "line", rowErr.Line, "error", rowErr.Err)
		} else {
			s.log.Warn("Dataset parse failed", "source", source, "error", err)
		}
		return nil, apierr.Upstream("dataset could not be parsed", err)
	}

	if s.src.Cache != nil {
		if cerr := s.src.Cache.Set(ctx, locator, ds); cerr != nil {
			s.log.Warn("Dataset cache write failed", "error", cerr)
		}
	}
	return ds, nil
}

func (s *datasetService) open(ctx context.Context, source, locator string) (io.ReadCloser, error) {
	switch source {
	case "http", "https":
		if s.src.HTTP == nil {
			return nil, errors.New("http datasets are not configured")
		}
		return s.src.HTTP.Fetch(ctx, locator)
	case "gs":
		if s.src.Objects == nil {
			return nil, errors.New("gs datasets are not configured")
		}
		return s.src.Objects.Open(ctx, locator)
	default:
		return nil, fmt.Errorf("unsupported dataset locator scheme %q", source)
	}
}

func locatorScheme(locator string) string {
	u, err := url.Parse(locator)
	if err != nil || u.Scheme == "" {
		return "unknown"
	}
	return strings.ToLower(u.Scheme)
}
