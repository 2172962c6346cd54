package duckdb

import (
	"testing"
	"time"
)

func TestClientsByRegionAndCity(t *testing.T) {
	store := newTestStore(t)
	records := makeRecords(5, time.Now())
	records[4].City = "Maringá"
	upsert(t, store, records)

	regions, err := store.ClientsByRegion(10)
	if err != nil {
		t.Fatalf("ClientsByRegion: %v", err)
	}
	if len(regions) != 3 {
		t.Fatalf("regions = %d, want 3", len(regions))
	}
	// Ties are ordered by label.
	if regions[0].Label != "OLT-LDB-HUAWEI-0" || regions[0].Total != 2 {
		t.Errorf("first region = %+v, want OLT-LDB-HUAWEI-0 with 2", regions[0])
	}
	if regions[2].Total != 1 {
		t.Errorf("last region total = %d, want 1", regions[2].Total)
	}

	cities, err := store.ClientsByCity(1)
	if err != nil {
		t.Fatalf("ClientsByCity: %v", err)
	}
	if len(cities) != 1 || cities[0].Label != "Londrina" || cities[0].Total != 4 {
		t.Errorf("cities = %+v, want [Londrina 4]", cities)
	}
}

func TestKPISummary(t *testing.T) {
	store := newTestStore(t)

	empty, err := store.KPISummary()
	if err != nil {
		t.Fatalf("KPISummary on empty store: %v", err)
	}
	if empty.Total != 0 || empty.MostCriticalOLT != "" || empty.OldestCaseDays != 0 {
		t.Errorf("empty KPIs = %+v, want zero values", empty)
	}

	records := makeRecords(5, time.Now())
	records[0].HoursOffline = 30 // below the critical threshold
	upsert(t, store, records)

	kpi, err := store.KPISummary()
	if err != nil {
		t.Fatalf("KPISummary: %v", err)
	}
	if kpi.Total != 5 {
		t.Errorf("Total = %d, want 5", kpi.Total)
	}
	if kpi.NewCriticalCases24h != 4 {
		t.Errorf("NewCriticalCases24h = %d, want 4", kpi.NewCriticalCases24h)
	}
	if kpi.MostCriticalOLT != "OLT-LDB-HUAWEI-0" {
		t.Errorf("MostCriticalOLT = %q, want OLT-LDB-HUAWEI-0", kpi.MostCriticalOLT)
	}
	if kpi.OldestCaseDays != 104/24 {
		t.Errorf("OldestCaseDays = %d, want %d", kpi.OldestCaseDays, 104/24)
	}
}

func TestOfflineHistory(t *testing.T) {
	store := newTestStore(t)
	now := time.Now().UTC()

	records := makeRecords(4, now)
	records[3].DisconnectedAt = now.AddDate(0, 0, -90) // outside the window
	upsert(t, store, records)

	history, err := store.OfflineHistory(30)
	if err != nil {
		t.Fatalf("OfflineHistory: %v", err)
	}
	var total int64
	for i, d := range history {
		total += d.Total
		if len(d.Day) != len("2006-01-02") {
			t.Errorf("day %d = %q, want YYYY-MM-DD", i, d.Day)
		}
		if i > 0 && history[i-1].Day >= d.Day {
			t.Errorf("history not ascending at %d: %s >= %s", i, history[i-1].Day, d.Day)
		}
	}
	if total != 3 {
		t.Errorf("history total = %d, want 3", total)
	}
}

func TestListRegions(t *testing.T) {
	store := newTestStore(t)
	records := makeRecords(4, time.Now())
	records[3].Region = ""
	upsert(t, store, records)

	regions, err := store.ListRegions()
	if err != nil {
		t.Fatalf("ListRegions: %v", err)
	}
	want := []string{"OLT-LDB-HUAWEI-0", "OLT-LDB-HUAWEI-1", "OLT-LDB-HUAWEI-2"}
	if len(regions) != len(want) {
		t.Fatalf("regions = %v, want %v", regions, want)
	}
	for i := range want {
		if regions[i] != want[i] {
			t.Errorf("regions[%d] = %s, want %s", i, regions[i], want[i])
		}
	}
}
