package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/RLAlpha49/RL-Crate-Opener/internal/common"
	"github.com/RLAlpha49/RL-Crate-Opener/internal/entity"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), filepath.Join(t.TempDir(), "history.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordAndList(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	rows := []entity.Opening{
		{ID: uuid.New(), SessionID: "a1b2c3d4", Category: "Exotic Drop", RawText: "import body", Item: "Import Body", Status: "VERBATIM", CreatedAt: base},
		{ID: uuid.New(), SessionID: "a1b2c3d4", Category: "Exotic Drop", RawText: "sport wheeis", Item: "Sport Wheels", Status: "MATCHED", CreatedAt: base.Add(time.Second)},
		{ID: uuid.New(), SessionID: "a1b2c3d4", Category: "Black Market Drop", RawText: "bm trail", Item: "Black Market Trail", Status: "MATCHED", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, r := range rows {
		if err := s.Record(ctx, r); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.List(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	want := []entity.Opening{rows[2], rows[1]}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("List mismatch (-want +got):\n%s", diff)
	}

	counts, err := s.CountByCategory(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(map[string]int{"Exotic Drop": 2, "Black Market Drop": 1}, counts); diff != "" {
		t.Errorf("counts mismatch (-want +got):\n%s", diff)
	}
}

func TestRecordFillsIDAndTime(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()

	if err := s.Record(ctx, entity.Opening{Category: "Sport Drop", Item: "Sport Wheels", Status: "VERBATIM"}); err != nil {
		t.Fatal(err)
	}
	got, err := s.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID == uuid.Nil || got[0].CreatedAt.IsZero() {
		t.Errorf("got %+v", got)
	}
}

func TestDuplicateIDIsHistoryError(t *testing.T) {
	s := openTemp(t)
	ctx := context.Background()
	o := entity.Opening{ID: uuid.New(), Category: "Sport Drop", Item: "Sport Wheels", Status: "VERBATIM"}

	if err := s.Record(ctx, o); err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, o); !common.HasCode(err, common.CodeHistory) {
		t.Errorf("err = %v", err)
	}
}

func TestReopenKeepsRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	s, err := Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Record(ctx, entity.Opening{Category: "Import Drop", Item: "Import Gizmo", Status: "VERBATIM"}); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, path, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	got, err := s.List(ctx, 10)
	if err != nil || len(got) != 1 || got[0].Item != "Import Gizmo" {
		t.Errorf("got %+v, %v", got, err)
	}
}
