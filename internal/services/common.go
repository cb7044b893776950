package services

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/yungbote/insightflow-backend/internal/data/dberr"
	"github.com/yungbote/insightflow-backend/internal/data/repos"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/domain/story"
	"github.com/yungbote/insightflow-backend/internal/pkg/apierr"
	"github.com/yungbote/insightflow-backend/internal/pkg/ctxutil"
	"github.com/yungbote/insightflow-backend/internal/pkg/dbctx"
)

const (
	codeProjectNotFound = "project_not_found"
	codeBlockNotFound   = "block_not_found"
	codeDatasetNotFound = "dataset_not_found"
)

func requireUser(ctx context.Context) (string, error) {
	uid := ctxutil.UserID(ctx)
	if uid == "" {
		return "", apierr.Unauthorized("authentication required")
	}
	return uid, nil
}

// ParseID parses a client-supplied identifier.
func ParseID(field, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, apierr.Validation("%s must be a valid id", field)
	}
	return id, nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", apierr.Validation("title is required")
	}
	if utf8.RuneCountInString(title) > story.MaxTitleRunes {
		return "", apierr.Validation("title must be at most %d characters", story.MaxTitleRunes)
	}
	return title, nil
}

// normalizeDatasetLocator accepts absolute http(s) URLs and gs://bucket/key.
func normalizeDatasetLocator(raw string) (string, error) {
	loc := strings.TrimSpace(raw)
	if loc == "" {
		return "", apierr.Validation("fileUrl is required")
	}
	u, err := url.Parse(loc)
	if err != nil || u.Host == "" {
		return "", apierr.Validation("fileUrl must be an absolute url")
	}
	switch u.Scheme {
	case "http", "https":
		return loc, nil
	case "gs":
		if strings.TrimPrefix(u.Path, "/") == "" {
			return "", apierr.Validation("fileUrl must name an object")
		}
		return loc, nil
	default:
		return "", apierr.Validation("fileUrl scheme %q is not supported", u.Scheme)
	}
}

// inTx runs fn in the caller's transaction when there is one, otherwise in a
// new one.
func inTx(db *gorm.DB, dbc dbctx.Context, fn func(dbctx.Context) error) error {
	return repos.NewTxRunner(db).InTx(dbc, fn)
}

// lockOwnedProject loads the project for update and checks the caller owns it.
func lockOwnedProject(dbc dbctx.Context, projects repos.ProjectRepo, projectID uuid.UUID, userID string) (*types.Project, error) {
	p, err := projects.GetByIDForUpdate(dbc, projectID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apierr.NotFound(codeProjectNotFound, "project not found")
	}
	if !p.OwnedBy(userID) {
		return nil, apierr.Forbidden("you do not own this project")
	}
	return p, nil
}

// storeErr maps store failures the caller can act on; everything else passes
// through to become a 500.
func storeErr(err error) error {
	if err == nil {
		return nil
	}
	var ae *apierr.Error
	if errors.As(err, &ae) {
		return err
	}
	if dberr.IsUniqueViolation(err, "") {
		return apierr.Conflict("concurrent modification", err)
	}
	return err
}
