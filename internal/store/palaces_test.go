package store

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/lazypower/palace/internal/palace"
)

func testPalace() *palace.Palace {
	recalled := time.Date(2026, 1, 20, 8, 0, 0, 0, time.UTC)
	return &palace.Palace{
		Name:    "System Design Citadel",
		Theme:   "Castle",
		Created: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		Loci: []palace.Locus{
			{
				ID: "gate", Name: "Gate", Anchor: "Portcullis", Children: []string{"hall", "tower"},
				Memories: []palace.Memory{
					{ID: "sd-1", Subject: "Cache Aside", Content: "Lazy load", Image: "A leaky bucket", Confidence: 4, LastRecalled: &recalled, ReviewCount: 3},
					{ID: "sd-2", Subject: "Write Behind", Confidence: 2},
				},
			},
			{ID: "hall", Name: "Hall", Memories: []palace.Memory{{ID: "sd-3", Subject: "Sharding"}}},
			{ID: "tower", Name: "Tower"},
		},
	}
}

func TestSaveAndGetPalace(t *testing.T) {
	db := openTestDB(t)
	want := testPalace()

	if err := db.SavePalace(want); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}

	got, err := db.GetPalace(want.Name)
	if err != nil {
		t.Fatalf("GetPalace: %v", err)
	}
	if got == nil {
		t.Fatal("GetPalace returned nil")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}

func TestGetPalaceMissing(t *testing.T) {
	db := openTestDB(t)
	got, err := db.GetPalace("nowhere")
	if err != nil {
		t.Fatalf("GetPalace: %v", err)
	}
	if got != nil {
		t.Errorf("GetPalace = %+v, want nil", got)
	}
}

func TestSavePalaceReplaces(t *testing.T) {
	db := openTestDB(t)
	p := testPalace()
	if err := db.SavePalace(p); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}

	p.Theme = "Fortress"
	p.Loci = p.Loci[:1]
	p.Loci[0].Memories = p.Loci[0].Memories[:1]
	if err := db.SavePalace(p); err != nil {
		t.Fatalf("SavePalace again: %v", err)
	}

	got, err := db.GetPalace(p.Name)
	if err != nil {
		t.Fatalf("GetPalace: %v", err)
	}
	if got.Theme != "Fortress" {
		t.Errorf("Theme = %q, want Fortress", got.Theme)
	}
	if got.Count() != 1 || len(got.Loci) != 1 {
		t.Errorf("after replace: %d loci, %d memories; want 1, 1", len(got.Loci), got.Count())
	}

	var orphans int
	if err := db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&orphans); err != nil {
		t.Fatalf("count memories: %v", err)
	}
	if orphans != 1 {
		t.Errorf("memories rows = %d, want 1", orphans)
	}
}

func TestSavePalaceRejectsInvalid(t *testing.T) {
	db := openTestDB(t)
	p := testPalace()
	p.Loci[1].Memories[0].ID = "sd-1"
	if err := db.SavePalace(p); err == nil {
		t.Error("expected duplicate memory id to be rejected")
	}
}

func TestListAndDeletePalaces(t *testing.T) {
	db := openTestDB(t)
	if err := db.SavePalace(testPalace()); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}
	if err := db.SavePalace(&palace.Palace{Name: "Anatomy Atrium", Loci: []palace.Locus{{ID: "a", Name: "A"}}}); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}

	list, err := db.ListPalaces()
	if err != nil {
		t.Fatalf("ListPalaces: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("ListPalaces = %d rows, want 2", len(list))
	}
	if list[0].Name != "Anatomy Atrium" || list[1].Name != "System Design Citadel" {
		t.Errorf("order = %q, %q", list[0].Name, list[1].Name)
	}
	if list[1].Loci != 3 || list[1].Memories != 3 {
		t.Errorf("citadel counts = %d loci, %d memories; want 3, 3", list[1].Loci, list[1].Memories)
	}

	if err := db.DeletePalace("System Design Citadel"); err != nil {
		t.Fatalf("DeletePalace: %v", err)
	}
	if err := db.DeletePalace("System Design Citadel"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second DeletePalace err = %v, want ErrNotFound", err)
	}

	var memories int
	db.QueryRow("SELECT COUNT(*) FROM memories").Scan(&memories)
	if memories != 0 {
		t.Errorf("memories left after delete = %d", memories)
	}
}

func TestRecordRecall(t *testing.T) {
	db := openTestDB(t)
	p := testPalace()
	if err := db.SavePalace(p); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}

	at := time.Date(2026, 2, 2, 10, 30, 0, 0, time.UTC)
	m, err := db.RecordRecall(p.Name, "sd-2", 5, at)
	if err != nil {
		t.Fatalf("RecordRecall: %v", err)
	}
	if m.ReviewCount != 1 || m.Confidence != 5 {
		t.Errorf("after recall: reviews %d confidence %d; want 1, 5", m.ReviewCount, m.Confidence)
	}
	if m.LastRecalled == nil || !m.LastRecalled.Equal(at) {
		t.Errorf("LastRecalled = %v, want %v", m.LastRecalled, at)
	}

	m, err = db.RecordRecall(p.Name, "sd-2", 0, at.Add(time.Hour))
	if err != nil {
		t.Fatalf("RecordRecall: %v", err)
	}
	if m.Confidence != 5 || m.ReviewCount != 2 {
		t.Errorf("zero confidence recall: confidence %d reviews %d; want 5, 2", m.Confidence, m.ReviewCount)
	}

	if _, err := db.RecordRecall(p.Name, "nope", 3, at); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown memory err = %v, want ErrNotFound", err)
	}
	if _, err := db.RecordRecall("Elsewhere", "sd-2", 3, at); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown palace err = %v, want ErrNotFound", err)
	}
	if _, err := db.RecordRecall(p.Name, "sd-2", 8, at); err == nil {
		t.Error("expected out of range confidence to fail")
	}
}

func TestAllPalaces(t *testing.T) {
	db := openTestDB(t)
	if err := db.SavePalace(testPalace()); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}
	if err := db.SavePalace(&palace.Palace{Name: "Anatomy Atrium", Loci: []palace.Locus{{ID: "a", Name: "A"}}}); err != nil {
		t.Fatalf("SavePalace: %v", err)
	}

	all, err := db.AllPalaces()
	if err != nil {
		t.Fatalf("AllPalaces: %v", err)
	}
	if len(all) != 2 || all[0].Name != "Anatomy Atrium" {
		t.Fatalf("AllPalaces = %d palaces", len(all))
	}
	if all[1].Count() != 3 {
		t.Errorf("citadel memories = %d, want 3", all[1].Count())
	}
}
