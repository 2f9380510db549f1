package parser

import (
	"testing"
)

func TestParse_Subdirs(t *testing.T) {
	s, err := Parse(`/data/gfs/**/.*\.grib2$`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RootDir != "/data/gfs" {
		t.Errorf("root = %q, want %q", s.RootDir, "/data/gfs")
	}
	if !s.WantSubdirs {
		t.Error("expected WantSubdirs")
	}
	if !s.Match("/data/gfs/2024/run.grib2") || s.Match("/data/gfs/2024/run.grib2.gcx") {
		t.Error("filter mismatch")
	}
}

func TestParse_FlatDirectory(t *testing.T) {
	s, err := Parse(`/data/nam/NAM_.*\.grib1`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.RootDir != "/data/nam" || s.WantSubdirs {
		t.Errorf("spec = %+v", s)
	}
	if !s.Match("NAM_20240101.grib1") || s.Match("GFS_20240101.grib1") {
		t.Error("filter mismatch")
	}
}

func TestParse_DateFormat(t *testing.T) {
	s, err := Parse(`/data/ruc/**/RUC2_#yyyyMMdd_HHmm#\.grib2$`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.DateFormat != "yyyyMMdd_HHmm" {
		t.Errorf("date format = %q", s.DateFormat)
	}
	if !s.Match("RUC2_20240101_0000.grib2") {
		t.Error("date section should match any characters")
	}
}

func TestParse_NoFilter(t *testing.T) {
	s, err := Parse("/data/all/**")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Filter != nil || !s.Match("anything") {
		t.Errorf("spec = %v", s)
	}
	if s.String() != "/data/all/**" {
		t.Errorf("String() = %q", s.String())
	}
}

func TestParse_Invalid(t *testing.T) {
	for _, in := range []string{"", "nodir", "/data/**/([unclosed"} {
		if _, err := Parse(in); err == nil {
			t.Errorf("Parse(%q) should fail", in)
		}
	}
}
