package identity

import "testing"

func TestNormalizeEmail(t *testing.T) {
	if got := NormalizeEmail("  Priya.Sharma@Example.COM "); got != "priya.sharma@example.com" {
		t.Fatalf("expected lowercased trimmed email, got %q", got)
	}
	if got := NormalizeEmail("   "); got != "" {
		t.Fatalf("expected empty for blank input, got %q", got)
	}
}

func TestNormalizePhone_FormattingVariantsAgree(t *testing.T) {
	a := NormalizePhone("+91 98765 43210")
	b := NormalizePhone("098765-43210")
	if a == "" || a != b {
		t.Fatalf("expected identical digit strings, got %q and %q", a, b)
	}
}

func TestNormalizePhone_UnparseableKeepsDigits(t *testing.T) {
	if got := NormalizePhone("ext. 12-34"); got != "1234" {
		t.Fatalf("expected digit-only fallback, got %q", got)
	}
}

func TestNormalizeCompany(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"  Acme   Tech  Pvt Ltd ", "acme tech"},
		{"ACME TECH", "acme tech"},
		{"Globex Inc", "globex"},
		{"Initech", "initech"},
	}
	for _, tc := range cases {
		if got := NormalizeCompany(tc.in); got != tc.want {
			t.Fatalf("NormalizeCompany(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestRatio(t *testing.T) {
	if got := Ratio("acme tech", "acme tech"); got != 1 {
		t.Fatalf("identical strings should score 1, got %f", got)
	}
	if got := Ratio("", "acme"); got != 0 {
		t.Fatalf("empty input should score 0, got %f", got)
	}
	if got := Ratio("acme technologies", "acme technology"); got < 0.85 {
		t.Fatalf("near-identical names should pass the company threshold, got %f", got)
	}
	if got := Ratio("acme tech", "globex corp"); got > 0.5 {
		t.Fatalf("unrelated names should score low, got %f", got)
	}
}

func TestRatio_Symmetry(t *testing.T) {
	a, b := "9876543210", "9876543211"
	if Ratio(a, b) != Ratio(b, a) {
		t.Fatalf("ratio must be symmetric")
	}
}
