package candidates

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
)

type stubSource struct {
	profiles []*Profile
	err      error
}

func (s *stubSource) Candidates(context.Context) ([]*Profile, error) {
	return s.profiles, s.err
}

func newPool(t *testing.T, names ...string) *Repository {
	t.Helper()
	profiles := make([]*Profile, 0, len(names))
	for _, name := range names {
		p := NewProfile(name)
		p.Skills = "Python, Algorithms"
		profiles = append(profiles, p)
	}

	repo := NewRepository()
	if err := repo.Load(context.Background(), &stubSource{profiles: profiles}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return repo
}

func TestLoadAndLookup(t *testing.T) {
	repo := newPool(t, "Ada Lovelace", "Grace Hopper")

	if repo.Len() != 2 {
		t.Fatalf("expected 2 profiles, got %d", repo.Len())
	}

	ada, ok := repo.GetByName("Ada Lovelace")
	if !ok {
		t.Fatal("expected Ada Lovelace to be found")
	}
	if ada.ID != "108739825454" {
		t.Fatalf("unexpected id: %s", ada.ID)
	}

	if _, ok := repo.GetByName("ada lovelace"); ok {
		t.Fatal("expected lookup to be case-sensitive")
	}

	if byID, ok := repo.GetByID(ada.ID); !ok || byID != ada {
		t.Fatal("expected lookup by id to return the same profile")
	}
}

func TestLoadKeepsPoolOnFailure(t *testing.T) {
	repo := newPool(t, "Ada Lovelace")

	sourceErr := errors.New("unreadable")
	if err := repo.Load(context.Background(), &stubSource{err: sourceErr}); !errors.Is(err, sourceErr) {
		t.Fatalf("expected source error, got %v", err)
	}

	dup := &stubSource{profiles: []*Profile{NewProfile("Grace Hopper"), NewProfile("Grace Hopper")}}
	if err := repo.Load(context.Background(), dup); !errors.Is(err, ErrDuplicateName) {
		t.Fatalf("expected duplicate error, got %v", err)
	}

	if _, ok := repo.GetByName("Ada Lovelace"); !ok || repo.Len() != 1 {
		t.Fatal("expected previous pool to survive failed loads")
	}
}

func TestDescribeAllIsStable(t *testing.T) {
	repo := newPool(t, "Grace Hopper", "Ada Lovelace")

	first := repo.DescribeAll()
	if first != repo.DescribeAll() {
		t.Fatal("expected identical descriptions for identical state")
	}

	grace := strings.Index(first, "Profile Details for Grace Hopper")
	ada := strings.Index(first, "Profile Details for Ada Lovelace")
	if grace == -1 || ada == -1 || grace > ada {
		t.Fatalf("expected insertion order in description:\n%s", first)
	}

	if !strings.Contains(first, "Skills: Python, Algorithms") {
		t.Fatalf("expected skills in description:\n%s", first)
	}
}

func TestRecordMatchAtMostOncePerJob(t *testing.T) {
	repo := newPool(t, "Ada Lovelace")
	ada, _ := repo.GetByName("Ada Lovelace")

	if err := repo.RecordMatch(ada.ID, "job-1", ""); err != nil {
		t.Fatalf("record match: %v", err)
	}
	if err := repo.RecordMatch(ada.ID, "job-2", "second"); err != nil {
		t.Fatalf("record match: %v", err)
	}
	if err := repo.RecordMatch(ada.ID, "job-1", "first"); err != nil {
		t.Fatalf("record match: %v", err)
	}

	snapshot, _ := repo.Snapshot(ada.ID)
	if len(snapshot.Matches) != 2 {
		t.Fatalf("expected 2 matches, got %+v", snapshot.Matches)
	}
	if snapshot.Matches[0].JobID != "job-1" || snapshot.Matches[0].Motivation != "first" {
		t.Fatalf("expected job-1 updated in place, got %+v", snapshot.Matches[0])
	}

	if !repo.UpdateMotivation(ada.ID, "job-2", "updated") {
		t.Fatal("expected update of existing match")
	}
	if repo.UpdateMotivation(ada.ID, "job-3", "missing") {
		t.Fatal("expected update of unknown match to report false")
	}

	if got, ok := repo.Motivation(ada.ID, "job-2"); !ok || got != "updated" {
		t.Fatalf("unexpected motivation: %q %v", got, ok)
	}

	if err := repo.RecordMatch("unknown", "job-1", ""); err == nil {
		t.Fatal("expected error for unknown candidate")
	}
}

func TestRecordMatchConcurrent(t *testing.T) {
	repo := newPool(t, "Ada Lovelace")
	ada, _ := repo.GetByName("Ada Lovelace")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = repo.RecordMatch(ada.ID, "job-1", "letter")
			_ = repo.DescribeAll()
		}()
	}
	wg.Wait()

	snapshot, _ := repo.Snapshot(ada.ID)
	if len(snapshot.Matches) != 1 {
		t.Fatalf("expected a single match entry, got %d", len(snapshot.Matches))
	}
}
