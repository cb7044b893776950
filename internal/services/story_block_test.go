package services

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"

	"github.com/yungbote/insightflow-backend/internal/data/repos/testutil"
	types "github.com/yungbote/insightflow-backend/internal/domain"
	"github.com/yungbote/insightflow-backend/internal/domain/story"
)

func TestAddBlockAppendsWithDefaultContent(t *testing.T) {
	f := newFixture(t)
	uid := newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, uid, "story")

	var added []*types.StoryBlock
	for _, bt := range []string{"heading", "paragraph", "chart"} {
		b, err := f.blocks.Add(f.as(uid), AddBlockInput{ProjectID: p.ID, Type: bt})
		if err != nil {
			t.Fatalf("Add(%s): %v", bt, err)
		}
		added = append(added, b)
	}
	for i, b := range added {
		if b.Order != i {
			t.Fatalf("block %d got order %d", i, b.Order)
		}
	}

	c, err := added[0].Decoded()
	if err != nil {
		t.Fatalf("Decoded: %v", err)
	}
	if h, ok := c.(story.HeadingContent); !ok || h.Text != story.DefaultHeading {
		t.Fatalf("heading default not stored: %#v", c)
	}

	// Deleting the middle block leaves a gap; the next append goes past the max.
	if err := f.blocks.Delete(f.as(uid), added[1].ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	next, err := f.blocks.Add(f.as(uid), AddBlockInput{ProjectID: p.ID, Type: "image", Content: json.RawMessage(`{"url":"https://images.example/a.jpg","alt":"a"}`)})
	if err != nil {
		t.Fatalf("Add image: %v", err)
	}
	if next.Order != 3 {
		t.Fatalf("want order 3 got %d", next.Order)
	}
	orders := testutil.BlockOrders(t, f.ctx, f.tx, p.ID)
	if len(orders) != 3 || orders[added[0].ID] != 0 || orders[added[2].ID] != 2 {
		t.Fatalf("remaining blocks should keep their orders: %v", orders)
	}
}

func TestAddBlockRejectsBadInputAndIntruders(t *testing.T) {
	f := newFixture(t)
	owner, intruder := newUserID(), newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, owner, "story")

	cases := []AddBlockInput{
		{ProjectID: p.ID, Type: "table"},
		{ProjectID: p.ID, Type: "heading", Content: json.RawMessage(`"just a string"`)},
		{ProjectID: p.ID, Type: "chart", Content: json.RawMessage(`{"chartType":"radar"}`)},
		{ProjectID: p.ID, Type: "video", Content: json.RawMessage(`{"url":"no link here"}`)},
		{ProjectID: p.ID, Type: "paragraph", Content: json.RawMessage(`{broken`)},
	}
	for _, in := range cases {
		_, err := f.blocks.Add(f.as(owner), in)
		wantStatus(t, err, http.StatusBadRequest)
	}

	_, err := f.blocks.Add(f.as(intruder), AddBlockInput{ProjectID: p.ID, Type: "heading"})
	wantStatus(t, err, http.StatusForbidden)
	_, err = f.blocks.Add(f.as(owner), AddBlockInput{ProjectID: uuid.New(), Type: "heading"})
	wantStatus(t, err, http.StatusNotFound)

	if n := len(testutil.BlockOrders(t, f.ctx, f.tx, p.ID)); n != 0 {
		t.Fatalf("no block should have been stored, got %d", n)
	}
}

func TestUpdateOrderRenumbers(t *testing.T) {
	f := newFixture(t)
	uid := newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, uid, "story")
	a := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)
	b := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockParagraph, 4)
	c := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockChart, 7)

	if err := f.blocks.UpdateOrder(f.as(uid), p.ID, []uuid.UUID{c.ID, a.ID, b.ID}); err != nil {
		t.Fatalf("UpdateOrder: %v", err)
	}
	got := testutil.BlockOrders(t, f.ctx, f.tx, p.ID)
	want := map[uuid.UUID]int{c.ID: 0, a.ID: 1, b.ID: 2}
	for id, o := range want {
		if got[id] != o {
			t.Fatalf("block %s: want order %d got %d (all=%v)", id, o, got[id], got)
		}
	}

	loaded, err := f.projects.Get(f.as(uid), p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.StoryBlocks[0].ID != c.ID || loaded.StoryBlocks[2].ID != b.ID {
		t.Fatalf("read back in wrong order")
	}
}

func TestUpdateOrderRejectsNonPermutations(t *testing.T) {
	f := newFixture(t)
	owner, intruder := newUserID(), newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, owner, "story")
	other := testutil.SeedProject(t, f.ctx, f.tx, owner, "other")
	a := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)
	b := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockParagraph, 1)
	foreign := testutil.SeedBlock(t, f.ctx, f.tx, other.ID, types.BlockHeading, 0)
	before := testutil.BlockOrders(t, f.ctx, f.tx, p.ID)

	tests := []struct {
		name string
		ids  []uuid.UUID
	}{
		{"duplicate", []uuid.UUID{a.ID, a.ID}},
		{"missing", []uuid.UUID{b.ID}},
		{"foreign", []uuid.UUID{b.ID, a.ID, foreign.ID}},
		{"swapped foreign", []uuid.UUID{b.ID, foreign.ID}},
		{"unknown", []uuid.UUID{a.ID, uuid.New()}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := f.blocks.UpdateOrder(f.as(owner), p.ID, tc.ids)
			wantStatus(t, err, http.StatusBadRequest)
		})
	}

	wantStatus(t, f.blocks.UpdateOrder(f.as(intruder), p.ID, []uuid.UUID{b.ID, a.ID}), http.StatusForbidden)

	after := testutil.BlockOrders(t, f.ctx, f.tx, p.ID)
	for id, o := range before {
		if after[id] != o {
			t.Fatalf("orders changed after rejected reorder: before=%v after=%v", before, after)
		}
	}
}

func TestUpdateContentValidatesAgainstBlockType(t *testing.T) {
	f := newFixture(t)
	owner, intruder := newUserID(), newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, owner, "story")
	img := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockImage, 0)
	vid := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockVideo, 1)

	_, err := f.blocks.UpdateContent(f.as(owner), img.ID, json.RawMessage(`{"url":"javascript:alert(1)"}`))
	wantStatus(t, err, http.StatusBadRequest)
	stored, _ := f.blocks.(*storyBlockService).blockRepo.GetByID(f.anon(), img.ID)
	if string(stored.Content) != string(img.Content) {
		t.Fatalf("rejected update changed content: %s", stored.Content)
	}

	updated, err := f.blocks.UpdateContent(f.as(owner), vid.ID, json.RawMessage(`{"url":"<iframe src=\"https://www.youtube.com/embed/xyz\"></iframe>"}`))
	if err != nil {
		t.Fatalf("UpdateContent: %v", err)
	}
	c, _ := updated.Decoded()
	v, ok := c.(story.VideoContent)
	if !ok || v.URL == nil || *v.URL != "https://www.youtube.com/embed/xyz" {
		t.Fatalf("embed url not extracted: %#v", c)
	}

	reset, err := f.blocks.UpdateContent(f.as(owner), vid.ID, json.RawMessage(`null`))
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if c, _ := reset.Decoded(); c.(story.VideoContent).URL != nil {
		t.Fatalf("null content should reset to default")
	}

	_, err = f.blocks.UpdateContent(f.as(intruder), vid.ID, json.RawMessage(`{"url":null}`))
	wantStatus(t, err, http.StatusForbidden)
	_, err = f.blocks.UpdateContent(f.as(owner), uuid.New(), json.RawMessage(`{}`))
	wantStatus(t, err, http.StatusNotFound)
}

func TestDeleteBlockChecksOwnership(t *testing.T) {
	f := newFixture(t)
	owner, intruder := newUserID(), newUserID()
	p := testutil.SeedProject(t, f.ctx, f.tx, owner, "story")
	b := testutil.SeedBlock(t, f.ctx, f.tx, p.ID, types.BlockHeading, 0)

	wantStatus(t, f.blocks.Delete(f.as(intruder), b.ID), http.StatusForbidden)
	if len(testutil.BlockOrders(t, f.ctx, f.tx, p.ID)) != 1 {
		t.Fatalf("block removed by non-owner")
	}
	if err := f.blocks.Delete(f.as(owner), b.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	wantStatus(t, f.blocks.Delete(f.as(owner), b.ID), http.StatusNotFound)
}
