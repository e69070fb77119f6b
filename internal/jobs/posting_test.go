package jobs

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/spigell/strivebot/internal/candidates"
)

func TestNewPostingStableID(t *testing.T) {
	first := NewPosting("Software Engineer", "Acme")
	second := NewPosting(" Software Engineer ", "Acme ")

	if first.ID != second.ID {
		t.Fatalf("expected equal ids, got %s and %s", first.ID, second.ID)
	}

	if first.ID != "601137848047" {
		t.Fatalf("unexpected id: %s", first.ID)
	}

	if NewPosting("Software Engineer", "Globex").ID == first.ID {
		t.Fatal("expected different companies to produce different ids")
	}
}

func TestSetMotivationReplacesInPlace(t *testing.T) {
	posting := NewPosting("Engineer", "Acme")
	ada := candidates.NewProfile("Ada Lovelace")
	grace := candidates.NewProfile("Grace Hopper")

	posting.SetMotivation(ada, "")
	posting.SetMotivation(grace, "letter for grace")
	posting.SetMotivation(ada, "letter for ada")

	if len(posting.Candidates) != 2 {
		t.Fatalf("expected 2 candidates, got %d", len(posting.Candidates))
	}
	if posting.Candidates[0].Motivation != "letter for ada" {
		t.Fatalf("unexpected motivation: %q", posting.Candidates[0].Motivation)
	}
	if got := posting.CandidateNames(); !reflect.DeepEqual(got, []string{"Ada Lovelace", "Grace Hopper"}) {
		t.Fatalf("unexpected names: %v", got)
	}
}

func TestPostingsExcludeKeepsOrder(t *testing.T) {
	postings := &Postings{Items: []*Posting{
		NewPosting("A", "Acme"),
		NewPosting("B", "Globex"),
		NewPosting("C", "Acme"),
		NewPosting("D", "Initech"),
	}}

	excluded := postings.Exclude(PostingCompanyField, []string{"acme"})
	if len(excluded) != 2 {
		t.Fatalf("expected 2 excluded postings, got %d", len(excluded))
	}

	if postings.Len() != 2 || postings.Items[0].Position != "B" || postings.Items[1].Position != "D" {
		t.Fatalf("unexpected remaining postings: %+v", postings.Items)
	}
}

func TestPostingsDedup(t *testing.T) {
	postings := &Postings{Items: []*Posting{
		NewPosting("A", "Acme"),
		NewPosting("A", "Acme"),
		NewPosting("B", "Acme"),
	}}

	if dropped := postings.Dedup(); len(dropped) != 1 {
		t.Fatalf("expected one duplicate, got %v", dropped)
	}
	if postings.Len() != 2 {
		t.Fatalf("expected 2 postings, got %d", postings.Len())
	}
}

func TestReportByCompany(t *testing.T) {
	posting := NewPosting("Go Developer", "Acme")
	posting.URL = "https://example.com"
	posting.SetMotivation(candidates.NewProfile("Ada Lovelace"), "hello")

	report := (&Postings{Items: []*Posting{posting}}).ReportByCompany()

	entries, ok := report["Acme"]
	if !ok || len(entries) != 1 {
		t.Fatalf("expected one entry for Acme, got %v", report)
	}
	if entries[0]["candidates"] != "Ada Lovelace" {
		t.Fatalf("unexpected candidates entry: %q", entries[0]["candidates"])
	}
	if entries[0]["url"] != "https://example.com" {
		t.Fatalf("unexpected url entry: %q", entries[0]["url"])
	}
}

func TestExcludedPostingsRoundTripFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "exclude.json")

	empty, err := GetExcludedPostingsFromFile(path)
	if err != nil {
		t.Fatalf("missing file should not fail: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected empty list, got %d items", len(empty.Items))
	}

	postings := &Postings{Items: []*Posting{NewPosting("A", "Acme"), NewPosting("B", "Acme")}}
	empty.Append(postings.ToExcluded(ExcludeActorUser, ""))
	empty.Append(postings.ToExcluded(ExcludeActorUser, ""))

	if err := empty.ToFile(path); err != nil {
		t.Fatalf("write exclude file: %v", err)
	}

	loaded, err := GetExcludedPostingsFromFile(path)
	if err != nil {
		t.Fatalf("read exclude file: %v", err)
	}
	if !reflect.DeepEqual(loaded.PostingIDs(), []string{postings.Items[0].ID, postings.Items[1].ID}) {
		t.Fatalf("unexpected ids: %v", loaded.PostingIDs())
	}
}
