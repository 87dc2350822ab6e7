package store

import (
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *Database {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "session.db"), true)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seedDocument(t *testing.T, db *Database) *Document {
	t.Helper()
	doc := &Document{Filename: "contract.pdf", Source: "upload", Text: "1. Term.\n\n2. Termination.", CharCount: 25}
	if err := db.CreateDocument(doc); err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestDocumentRoundTrip(t *testing.T) {
	db := openTestDB(t)
	doc := seedDocument(t, db)

	loaded, err := db.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("get document: %v", err)
	}
	if loaded.Filename != "contract.pdf" || loaded.Text != doc.Text {
		t.Fatalf("unexpected document %+v", loaded)
	}
}

func TestReplaceAndQueryAnalyses(t *testing.T) {
	db := openTestDB(t)
	doc := seedDocument(t, db)

	first := []Analysis{
		{Position: 0, ClauseType: "Term", Summary: "Lasts one year.", Confidence: 0.9},
		{Position: 1, ClauseType: "Termination", Summary: "At-will exit.", RiskFlag: true, RiskReason: "Broad termination rights", Confidence: 0.8},
		{Position: 2, ClauseType: "Termination", Summary: "Notice period.", Confidence: 0.7},
	}
	if err := db.ReplaceAnalyses(doc.ID, first); err != nil {
		t.Fatalf("replace analyses: %v", err)
	}

	rows, total, err := db.ListAnalyses(AnalysisQuery{DocumentID: doc.ID, Limit: -1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(rows) != 3 {
		t.Fatalf("expected 3 rows got total=%d len=%d", total, len(rows))
	}
	for i, row := range rows {
		if row.Position != i {
			t.Fatalf("rows out of position order: %+v", rows)
		}
	}

	risky, _, err := db.ListAnalyses(AnalysisQuery{DocumentID: doc.ID, RiskOnly: true, Limit: -1})
	if err != nil {
		t.Fatalf("list risky: %v", err)
	}
	if len(risky) != 1 || risky[0].ClauseType != "Termination" {
		t.Fatalf("unexpected risky rows %+v", risky)
	}

	count, err := db.CountRisky(doc.ID)
	if err != nil {
		t.Fatalf("count risky: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 risky got %d", count)
	}

	types, err := db.DistinctClauseTypes(doc.ID)
	if err != nil {
		t.Fatalf("distinct types: %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("expected 2 distinct types got %v", types)
	}

	// A fresh run replaces the old results entirely.
	if err := db.ReplaceAnalyses(doc.ID, []Analysis{{Position: 0, ClauseType: "Payment", Summary: "Net 30."}}); err != nil {
		t.Fatalf("replace again: %v", err)
	}
	total, err = db.CountAnalyses(doc.ID)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if total != 1 {
		t.Fatalf("expected old analyses dropped, count=%d", total)
	}
}

func TestListAnalysesTextFilter(t *testing.T) {
	db := openTestDB(t)
	doc := seedDocument(t, db)

	analyses := []Analysis{
		{Position: 0, ClauseType: "Payment", Summary: "Invoices due in thirty days."},
		{Position: 1, ClauseType: "Confidentiality", Summary: "Secrets stay secret."},
	}
	if err := db.ReplaceAnalyses(doc.ID, analyses); err != nil {
		t.Fatalf("replace: %v", err)
	}

	rows, total, err := db.ListAnalyses(AnalysisQuery{DocumentID: doc.ID, Query: "invoices", Limit: -1})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || rows[0].ClauseType != "Payment" {
		t.Fatalf("filter failed: total=%d rows=%+v", total, rows)
	}
}

func TestMarkDocumentAnalyzed(t *testing.T) {
	db := openTestDB(t)
	doc := seedDocument(t, db)

	if err := db.MarkDocumentAnalyzed(doc.ID, 4); err != nil {
		t.Fatalf("mark analyzed: %v", err)
	}
	loaded, err := db.GetDocument(doc.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.AnalyzedAt == nil || loaded.ClauseCount != 4 {
		t.Fatalf("analysis completion not recorded: %+v", loaded)
	}
}
