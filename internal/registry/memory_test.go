package registry

import (
	"context"
	"testing"
	"time"

	"github.com/helewild/gridhud/internal/domain"
)

func TestMemoryUpsertCreate(t *testing.T) {
	t.Parallel()

	m := NewMemory(NewStatic("scout"))
	now := time.Unix(1700000000, 0)

	sub, err := m.Upsert(context.Background(), domain.Registration{
		ID:     "abc",
		Name:   "Rex",
		Region: "Sandbox Wanderton",
	}, now)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if sub.Name != "Rex" || sub.Affiliation != "scout" {
		t.Errorf("unexpected subject %+v", sub)
	}
	if sub.FirstSeen != 1700000000 || sub.LastSeen != 1700000000 {
		t.Errorf("timestamps = %d/%d, want both 1700000000", sub.FirstSeen, sub.LastSeen)
	}
}

func TestMemoryUpsertUpdate(t *testing.T) {
	t.Parallel()

	m := NewMemory(NewStatic("scout"))
	ctx := context.Background()
	first := time.Unix(1700000000, 0)
	later := time.Unix(1700003600, 0)

	if _, err := m.Upsert(ctx, domain.Registration{ID: "abc", Name: "Rex"}, first); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	sub, err := m.Upsert(ctx, domain.Registration{ID: "abc", Name: "Rex Mk2", Region: "Periapsis"}, later)
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if sub.FirstSeen != first.Unix() {
		t.Errorf("FirstSeen = %d, want preserved %d", sub.FirstSeen, first.Unix())
	}
	if sub.LastSeen != later.Unix() {
		t.Errorf("LastSeen = %d, want %d", sub.LastSeen, later.Unix())
	}
	if sub.Name != "Rex Mk2" || sub.Region != "Periapsis" {
		t.Errorf("unexpected subject after update: %+v", sub)
	}
}

func TestMemoryUpsertEmptyFieldsPreserved(t *testing.T) {
	t.Parallel()

	m := NewMemory(NewStatic("scout"))
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	if _, err := m.Upsert(ctx, domain.Registration{
		ID:          "abc",
		Name:        "Rex",
		Region:      "Sandbox Wanderton",
		CallbackURL: "https://sim.example/cb/1",
	}, now); err != nil {
		t.Fatalf("first Upsert() error = %v", err)
	}

	sub, err := m.Upsert(ctx, domain.Registration{ID: "abc"}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if sub.Name != "Rex" {
		t.Errorf("empty name clobbered stored name: %q", sub.Name)
	}
	if sub.Region != "Sandbox Wanderton" || sub.CallbackURL != "https://sim.example/cb/1" {
		t.Errorf("empty fields clobbered stored values: %+v", sub)
	}
}

func TestMemoryUpsertClassificationSticks(t *testing.T) {
	t.Parallel()

	table := &Table{Default: "resident", Subjects: map[string]string{"abc": "staff"}}
	m := NewMemory(table)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	sub, err := m.Upsert(ctx, domain.Registration{ID: "abc", Name: "Rex"}, now)
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if sub.Affiliation != "staff" {
		t.Fatalf("Affiliation = %q, want %q", sub.Affiliation, "staff")
	}

	// The table changing later must not reclassify an existing subject.
	table.Subjects["abc"] = "exile"
	sub, err = m.Upsert(ctx, domain.Registration{ID: "abc"}, now.Add(time.Minute))
	if err != nil {
		t.Fatalf("second Upsert() error = %v", err)
	}
	if sub.Affiliation != "staff" {
		t.Errorf("Affiliation = %q, want preserved %q", sub.Affiliation, "staff")
	}
}

func TestMemoryUpsertUnnamedSubject(t *testing.T) {
	t.Parallel()

	m := NewMemory(nil)
	sub, err := m.Upsert(context.Background(), domain.Registration{ID: "abc"}, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if sub.Name != domain.UnknownName {
		t.Errorf("Name = %q, want sentinel %q", sub.Name, domain.UnknownName)
	}
	if sub.Affiliation != DefaultLabel {
		t.Errorf("Affiliation = %q, want %q", sub.Affiliation, DefaultLabel)
	}
}

func TestMemoryUpsertRejectsEmptyID(t *testing.T) {
	t.Parallel()

	m := NewMemory(nil)
	if _, err := m.Upsert(context.Background(), domain.Registration{Name: "Rex"}, time.Now()); err == nil {
		t.Fatal("expected error for empty subject id")
	}
}

func TestMemoryLookupOrderAndSentinels(t *testing.T) {
	t.Parallel()

	m := NewMemory(NewStatic("scout"))
	ctx := context.Background()
	registered := time.Unix(1700000000, 0)
	if _, err := m.Upsert(ctx, domain.Registration{ID: "abc", Name: "Rex"}, registered); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if _, err := m.Upsert(ctx, domain.Registration{ID: "def", Name: "Mika"}, registered); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	tenDaysOn := registered.Add(10 * 24 * time.Hour)
	results, err := m.Lookup(ctx, []string{"ghost", "def", "abc"}, tenDaysOn)
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("got %d results, want 3", len(results))
	}

	if r := results[0]; r.ID != "ghost" || r.Known || r.Name != domain.UnknownName ||
		r.Affiliation != domain.UnknownAffiliation || r.Days != 0 {
		t.Errorf("unexpected sentinel result: %+v", r)
	}
	if r := results[1]; r.ID != "def" || !r.Known || r.Name != "Mika" || r.Days != 10 {
		t.Errorf("unexpected result for def: %+v", r)
	}
	if r := results[2]; r.ID != "abc" || !r.Known || r.Name != "Rex" || r.Days != 10 {
		t.Errorf("unexpected result for abc: %+v", r)
	}
}

func TestMemoryLookupEmpty(t *testing.T) {
	t.Parallel()

	m := NewMemory(nil)
	results, err := m.Lookup(context.Background(), nil, time.Now())
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if len(results) != 0 {
		t.Fatalf("got %d results, want 0", len(results))
	}
}

func TestMemoryListRecentFirst(t *testing.T) {
	t.Parallel()

	m := NewMemory(nil)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)
	for i, id := range []string{"abc", "def", "ghi"} {
		if _, err := m.Upsert(ctx, domain.Registration{ID: id}, base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatalf("Upsert(%s) error = %v", id, err)
		}
	}

	subs, err := m.List(ctx)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(subs) != 3 {
		t.Fatalf("got %d subjects, want 3", len(subs))
	}
	for i, want := range []string{"ghi", "def", "abc"} {
		if subs[i].ID != want {
			t.Errorf("subs[%d].ID = %q, want %q", i, subs[i].ID, want)
		}
	}
}

func TestCapIDs(t *testing.T) {
	t.Parallel()

	ids := []string{"a", "b", "c", "d"}

	tests := []struct {
		name string
		max  int
		want int
	}{
		{name: "under_cap", max: 10, want: 4},
		{name: "at_cap", max: 4, want: 4},
		{name: "over_cap", max: 2, want: 2},
		{name: "no_cap", max: 0, want: 4},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got := CapIDs(ids, tc.max)
			if len(got) != tc.want {
				t.Errorf("CapIDs() kept %d ids, want %d", len(got), tc.want)
			}
			for i := range got {
				if got[i] != ids[i] {
					t.Errorf("CapIDs() reordered ids: %v", got)
				}
			}
		})
	}
}
