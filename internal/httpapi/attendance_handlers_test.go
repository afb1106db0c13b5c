package httpapi

import (
	"net/http"
	"strings"
	"testing"
)

func TestSaveAttendancePresent(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sup-1")
	site := env.seedSite(t, "", "Acme Warehouse", "tok-acme", siteLat, siteLng)

	resp := env.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{
		"person_id":   "emp-7",
		"date":        "2026-08-29",
		"status":      "present",
		"site_id":     site.ID,
		"shift_start": 9 * 60,
		"shift_end":   17 * 60,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["id"] == "" || body["id"] == nil {
		t.Fatal("expected a generated entry id")
	}
	if body["created_by"] != "sup-1" {
		t.Fatalf("created_by = %v", body["created_by"])
	}
}

func TestSaveAttendanceConflictAcrossSites(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sup-1")
	siteA := env.seedSite(t, "", "Site A", "tok-a", siteLat, siteLng)
	siteB := env.seedSite(t, "", "Site B", "tok-b", siteLat+1, siteLng+1)

	resp := env.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{
		"person_id":   "emp-7",
		"date":        "2026-08-29",
		"status":      "present",
		"site_id":     siteA.ID,
		"shift_start": 9 * 60,
		"shift_end":   17 * 60,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first entry status = %d", resp.StatusCode)
	}

	// Overlapping window at a different site is refused.
	resp = env.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{
		"person_id":   "emp-7",
		"date":        "2026-08-29",
		"status":      "present",
		"site_id":     siteB.ID,
		"shift_start": 16 * 60,
		"shift_end":   22 * 60,
	})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["site_name"] != "Site A" {
		t.Fatalf("site_name = %v, want Site A", body["site_name"])
	}
	msg, _ := body["error"].(string)
	if !strings.Contains(msg, "already scheduled at Site A") {
		t.Fatalf("error = %q", msg)
	}
}

func TestSaveAttendanceLeaveNeedsNoShift(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sup-1")

	resp := env.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{
		"person_id": "emp-7",
		"date":      "2026-08-29",
		"status":    "leave",
	})
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
}

func TestSaveAttendanceValidation(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sup-1")
	site := env.seedSite(t, "", "Acme Warehouse", "tok-acme", siteLat, siteLng)

	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing person", map[string]any{"date": "2026-08-29", "status": "present"}},
		{"bad date", map[string]any{"person_id": "emp-7", "date": "29-08-2026", "status": "leave"}},
		{"unknown status", map[string]any{"person_id": "emp-7", "date": "2026-08-29", "status": "vacationing"}},
		{"present without site", map[string]any{"person_id": "emp-7", "date": "2026-08-29", "status": "present", "shift_start": 540, "shift_end": 1020}},
		{"window out of range", map[string]any{"person_id": "emp-7", "date": "2026-08-29", "status": "present", "site_id": site.ID, "shift_start": 540, "shift_end": 1500}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/v1/attendance", token, tc.body)
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Fatalf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestListAttendance(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sup-1")

	resp := env.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{
		"person_id": "emp-7",
		"date":      "2026-08-29",
		"status":    "week_off",
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("save status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodGet, "/v1/attendance?person_id=emp-7&date=2026-08-29", token, nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	body := decode[map[string][]map[string]any](t, resp)
	if len(body["entries"]) != 1 {
		t.Fatalf("entries = %d, want 1", len(body["entries"]))
	}

	resp = env.do(t, http.MethodGet, "/v1/attendance?person_id=emp-7", token, nil)
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("missing date status = %d, want 400", resp.StatusCode)
	}
}

func TestConflictCheckDryRun(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "sup-1")
	siteA := env.seedSite(t, "", "Site A", "tok-a", siteLat, siteLng)
	siteB := env.seedSite(t, "", "Site B", "tok-b", siteLat+1, siteLng+1)

	resp := env.do(t, http.MethodPost, "/v1/attendance", token, map[string]any{
		"person_id":   "emp-7",
		"date":        "2026-08-29",
		"status":      "present",
		"site_id":     siteA.ID,
		"shift_start": 9 * 60,
		"shift_end":   17 * 60,
	})
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("seed entry status = %d", resp.StatusCode)
	}

	resp = env.do(t, http.MethodPost, "/v1/attendance/conflict-check", token, map[string]any{
		"person_id":   "emp-7",
		"date":        "2026-08-29",
		"status":      "present",
		"site_id":     siteB.ID,
		"shift_start": 10 * 60,
		"shift_end":   14 * 60,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("conflict-check status = %d, want 200", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["conflict"] != true {
		t.Fatalf("conflict = %v, want true", body["conflict"])
	}
	if body["site_name"] != "Site A" {
		t.Fatalf("site_name = %v", body["site_name"])
	}

	// A disjoint window comes back clear.
	resp = env.do(t, http.MethodPost, "/v1/attendance/conflict-check", token, map[string]any{
		"person_id":   "emp-7",
		"date":        "2026-08-29",
		"status":      "present",
		"site_id":     siteB.ID,
		"shift_start": 18 * 60,
		"shift_end":   22 * 60,
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("clear check status = %d", resp.StatusCode)
	}
	body = decode[map[string]any](t, resp)
	if body["conflict"] != false {
		t.Fatalf("conflict = %v, want false", body["conflict"])
	}
}
