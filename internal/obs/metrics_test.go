package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/sites/7":                   "/v1/sites/:id",
		"/v1/sites/7/assignments":       "/v1/sites/:id/assignments",
		"/v1/sites/7/extra":             "/v1/sites/7/extra",
		"/v1/visits":                    "/v1/visits",
		"/v1/visits?actor=sup-1":        "/v1/visits",
		"/v1/attendance/conflict-check": "/v1/attendance/conflict-check",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
