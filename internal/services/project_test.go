package services

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/insightflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/pkg/pointers"
)

func TestProjectCreateValidatesTitle(t *testing.T) {
	f := newFixture(t)
	uid := newUserID()

	for _, title := range []string{"", "   ", strings.Repeat("é", 201)} {
		if _, err := f.projects.Create(f.as(uid), CreateProjectInput{Title: title}); err == nil {
			t.Fatalf("title %q: expected validation error", title)
		} else {
			wantStatus(t, err, http.StatusBadRequest)
		}
	}

	p, err := f.projects.Create(f.as(uid), CreateProjectInput{Title: "  Q3 revenue  ", Description: pointers.String("  ")})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Title != "Q3 revenue" || p.UserID != uid || p.Description != nil || p.DatasetURL != nil {
		t.Fatalf("unexpected project: %+v", p)
	}
	if _, err := f.projects.Create(f.as(uid), CreateProjectInput{Title: strings.Repeat("é", 200)}); err != nil {
		t.Fatalf("200 runes should be accepted: %v", err)
	}
}

func TestProjectRequiresCaller(t *testing.T) {
	f := newFixture(t)
	if _, err := f.projects.List(f.anon()); err == nil {
		t.Fatalf("expected unauthorized")
	} else {
		wantStatus(t, err, http.StatusUnauthorized)
	}
	_, err := f.projects.Create(f.anon(), CreateProjectInput{Title: "x"})
	wantStatus(t, err, http.StatusUnauthorized)
}

func TestProjectListScopedAndNewestFirst(t *testing.T) {
	f := newFixture(t)
	uid, other := newUserID(), newUserID()

	a := testutil.SeedProject(t, f.ctx, f.tx, uid, "a")
	b := testutil.SeedProject(t, f.ctx, f.tx, uid, "b")
	testutil.SeedProject(t, f.ctx, f.tx, other, "theirs")
	if err := f.projRepo.Touch(f.as(uid), a.ID, time.Now().UTC().Add(time.Hour)); err != nil {
		t.Fatalf("Touch: %v", err)
	}

	list, err := f.projects.List(f.as(uid))
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(list) != 2 || list[0].ID != a.ID || list[1].ID != b.ID {
		t.Fatalf("unexpected list order: %v", list)
	}

	empty, err := f.projects.List(f.as(newUserID()))
	if err != nil || empty == nil || len(empty) != 0 {
		t.Fatalf("want empty non-nil list, got %v %v", empty, err)
	}
}

func TestProjectGetHidesOtherOwners(t *testing.T) {
	f := newFixture(t)
	uid, other := newUserID(), newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, uid, "mine")
	testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockParagraph, 1)
	testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)

	got, err := f.projects.Get(f.as(uid), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(got.StoryBlocks) != 2 || got.StoryBlocks[0].Order != 0 || got.StoryBlocks[1].Order != 1 {
		t.Fatalf("blocks not ordered: %+v", got.StoryBlocks)
	}

	_, err = f.projects.Get(f.as(other), p.ID)
	wantStatus(t, err, http.StatusNotFound)
	_, err = f.projects.Get(f.as(uid), uuid.New())
	wantStatus(t, err, http.StatusNotFound)
}

func TestProjectGetPublic(t *testing.T) {
	f := newFixture(t)
	p := testutil.SeedProject(t, f.ctx, f.tx, newUserID(), "shared")
	if err := f.projRepo.UpdateDatasetURL(f.anon(), p.ID, pointers.String("https://files.example/secret.csv")); err != nil {
		t.Fatalf("UpdateDatasetURL: %v", err)
	}
	testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)

	pub, err := f.projects.GetPublic(f.anon(), p.ID)
	if err != nil || pub == nil {
		t.Fatalf("GetPublic: %v %v", pub, err)
	}
	raw, _ := json.Marshal(pub)
	for _, leaked := range []string{"userId", "datasetUrl", "secret.csv", p.UserID} {
		if strings.Contains(string(raw), leaked) {
			t.Fatalf("public projection leaked %q: %s", leaked, raw)
		}
	}
	if len(pub.StoryBlocks) != 1 {
		t.Fatalf("want 1 block, got %d", len(pub.StoryBlocks))
	}

	missing, err := f.projects.GetPublic(f.anon(), uuid.New())
	if err != nil || missing != nil {
		t.Fatalf("missing project should be (nil, nil), got %v %v", missing, err)
	}
}

func TestProjectMutationsCheckOwnership(t *testing.T) {
	f := newFixture(t)
	owner, intruder := newUserID(), newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, owner, "original")
	testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)

	before, err := f.projRepo.GetWithBlocks(f.anon(), p.ID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	_, err = f.projects.UpdateTitle(f.as(intruder), p.ID, "hijacked")
	wantStatus(t, err, http.StatusForbidden)
	wantStatus(t, f.projects.LinkDataset(f.as(intruder), p.ID, "https://evil.example/x.csv"), http.StatusForbidden)
	wantStatus(t, f.projects.Delete(f.as(intruder), p.ID), http.StatusForbidden)

	after, err := f.projRepo.GetWithBlocks(f.anon(), p.ID)
	if err != nil || after == nil {
		t.Fatalf("project should survive: %v", err)
	}
	if after.Title != before.Title || after.DatasetURL != nil || len(after.StoryBlocks) != len(before.StoryBlocks) {
		t.Fatalf("store changed: before=%+v after=%+v", before, after)
	}

	_, err = f.projects.UpdateTitle(f.as(owner), uuid.New(), "x")
	wantStatus(t, err, http.StatusNotFound)
}

func TestProjectUpdateTitleAndDelete(t *testing.T) {
	f := newFixture(t)
	uid := newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, uid, "old")
	b := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)

	updated, err := f.projects.UpdateTitle(f.as(uid), p.ID, " new ")
	if err != nil {
		t.Fatalf("UpdateTitle: %v", err)
	}
	if updated.Title != "new" {
		t.Fatalf("title: %q", updated.Title)
	}
	_, err = f.projects.UpdateTitle(f.as(uid), p.ID, "")
	wantStatus(t, err, http.StatusBadRequest)

	if err := f.projects.Delete(f.as(uid), p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if got, _ := f.projRepo.GetByID(f.anon(), p.ID); got != nil {
		t.Fatalf("project still present")
	}
	var n int64
	if err := f.tx.Model(&types.StoryBlock{}).Where("id = ?", b.ID).Count(&n).Error; err != nil || n != 0 {
		t.Fatalf("block should be cascaded: n=%d err=%v", n, err)
	}
	wantStatus(t, f.projects.Delete(f.as(uid), p.ID), http.StatusNotFound)
}

func TestProjectLinkDataset(t *testing.T) {
	f := newFixture(t)
	uid := newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, uid, "data")

	for _, bad := range []string{"", "not a url", "ftp://host/file.csv", "gs://bucket-only", "/relative.csv"} {
		wantStatus(t, f.projects.LinkDataset(f.as(uid), p.ID, bad), http.StatusBadRequest)
	}
	for _, good := range []string{"https://utfs.io/f/abc.csv", "gs://insight-datasets/u1/sales.csv"} {
		if err := f.projects.LinkDataset(f.as(uid), p.ID, good); err != nil {
			t.Fatalf("LinkDataset(%q): %v", good, err)
		}
		got, _ := f.projRepo.GetByID(f.anon(), p.ID)
		if got.DatasetURL == nil || *got.DatasetURL != good {
			t.Fatalf("dataset url not stored: %v", got.DatasetURL)
		}
	}
}
