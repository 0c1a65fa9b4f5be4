package utils

import "testing"

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Tax & Compliance":    "tax-and-compliance",
		"  Owner's  Deed  ":   "owners-deed",
		"Mouja/Map 2024":      "mouja-map-2024",
		"খতিয়ান scan":         "scan",
		"---":                 "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Fatalf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSlugifyFilename(t *testing.T) {
	cases := []struct {
		in, base, ext string
	}{
		{"Dolil Scan (1).PDF", "dolil-scan-1", ".pdf"},
		{`C:\Users\me\khajna.jpeg`, "khajna", ".jpeg"},
		{"../../etc/passwd", "passwd", ""},
		{"খতিয়ান.png", "file", ".png"},
	}
	for _, tc := range cases {
		base, ext := SlugifyFilename(tc.in)
		if base != tc.base || ext != tc.ext {
			t.Fatalf("SlugifyFilename(%q) = %q, %q; want %q, %q", tc.in, base, ext, tc.base, tc.ext)
		}
	}
}
