package store

import (
	"bytes"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return db
}

func TestZonesRoundTrip(t *testing.T) {
	db := openTestDB(t)
	zones := []Zone{
		{Name: "spawn", Min: [3]uint16{0, 0, 0}, Max: [3]uint16{31, 15, 31}, BuildRank: 100},
		{Name: "arena", Min: [3]uint16{40, 0, 40}, Max: [3]uint16{60, 30, 60}, Owner: "Hetal"},
	}
	if err := db.SaveZones("Main", zones); err != nil {
		t.Fatalf("save zones: %v", err)
	}
	// Names resolve case-insensitively.
	got, err := db.Zones("MAIN")
	if err != nil {
		t.Fatalf("load zones: %v", err)
	}
	if len(got) != 2 || got[0].Name != "spawn" || got[1].Owner != "Hetal" {
		t.Fatalf("zones changed across round trip: %+v", got)
	}
}

func TestMissingLevelIsEmptyNotError(t *testing.T) {
	db := openTestDB(t)
	zones, err := db.Zones("nothere")
	if err != nil {
		t.Fatalf("missing level must not error: %v", err)
	}
	if len(zones) != 0 {
		t.Fatalf("expected no zones, got %v", zones)
	}
	portals, err := db.Portals("nothere")
	if err != nil || len(portals) != 0 {
		t.Fatalf("expected no portals, got %v (%v)", portals, err)
	}
	audit, err := db.Audit("nothere")
	if err != nil || audit != nil {
		t.Fatalf("expected empty audit log, got %v (%v)", audit, err)
	}
}

func TestPortalsAndMessages(t *testing.T) {
	db := openTestDB(t)
	portals := []Portal{{Pos: [3]uint16{1, 2, 3}, DestLevel: "hub", DestPos: [3]uint16{8, 4, 8}}}
	messages := []Message{{Pos: [3]uint16{5, 5, 5}, Text: "welcome"}}
	if err := db.SavePortals("freebuild", portals); err != nil {
		t.Fatalf("save portals: %v", err)
	}
	if err := db.SaveMessages("freebuild", messages); err != nil {
		t.Fatalf("save messages: %v", err)
	}
	gotP, err := db.Portals("freebuild")
	if err != nil || len(gotP) != 1 || gotP[0].DestLevel != "hub" {
		t.Fatalf("portals changed: %+v (%v)", gotP, err)
	}
	gotM, err := db.Messages("freebuild")
	if err != nil || len(gotM) != 1 || gotM[0].Text != "welcome" {
		t.Fatalf("messages changed: %+v (%v)", gotM, err)
	}
}

func TestAppendAuditAccumulates(t *testing.T) {
	db := openTestDB(t)
	if err := db.AppendAudit("main", []byte{1, 2, 3}); err != nil {
		t.Fatalf("first append: %v", err)
	}
	if err := db.AppendAudit("main", []byte{4, 5}); err != nil {
		t.Fatalf("second append: %v", err)
	}
	if err := db.AppendAudit("main", nil); err != nil {
		t.Fatalf("empty append must be a no-op: %v", err)
	}
	got, err := db.Audit("main")
	if err != nil {
		t.Fatalf("load audit: %v", err)
	}
	if !bytes.Equal(got, []byte{1, 2, 3, 4, 5}) {
		t.Fatalf("audit log corrupted: %v", got)
	}
}
