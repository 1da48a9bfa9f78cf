package locator

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/desertthunder/nifx/internal/shared"
	tu "github.com/desertthunder/nifx/internal/testing"
)

func defaultOptions() Options {
	return OptionsFromConfig(shared.DefaultConfig().Layout)
}

func TestLocate(t *testing.T) {
	t.Run("pairs archives with sidecars", func(t *testing.T) {
		in := t.TempDir()
		date := filepath.Join(in, "ISPY2-100899", "06-16-2011")
		tu.MustWriteFile(t, filepath.Join(date, "S1.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(date, "S1.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(date, "S2.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(date, "S3.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(date, "notes.txt"), "x")

		units, err := New(defaultOptions(), nil).Locate(in, "/out")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if len(units) != 1 {
			t.Fatalf("expected 1 unit, got %d: %+v", len(units), units)
		}

		u := units[0]
		if u.GroupID != "ISPY2-100899" || u.DateKey != "06-16-2011" || u.UnitID != "S1" {
			t.Errorf("unexpected unit %+v", u)
		}
		if u.InputRoot != in || u.OutputRoot != "/out" {
			t.Errorf("unexpected roots %q %q", u.InputRoot, u.OutputRoot)
		}
	})

	t.Run("skips unrecognized groups and bad dates", func(t *testing.T) {
		in := t.TempDir()
		tu.MustWriteFile(t, filepath.Join(in, "OTHER-1", "06-16-2011", "S1.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(in, "OTHER-1", "06-16-2011", "S1.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(in, "ACRIN-6698-1", "2011-06-16", "S1.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(in, "ACRIN-6698-1", "2011-06-16", "S1.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(in, "ACRIN-6698-1", "13-40-2011", "S1.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(in, "ACRIN-6698-1", "13-40-2011", "S1.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(in, "ACRIN-6698-1", "02-01-2012", "S9.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(in, "ACRIN-6698-1", "02-01-2012", "S9.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(in, "ISPY2-stray-file.zip"), "zip")

		var buf bytes.Buffer
		units, err := New(defaultOptions(), shared.NewLogger(&buf)).Locate(in, "/out")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if len(units) != 1 || units[0].Key() != "ACRIN-6698-1/02-01-2012/S9" {
			t.Fatalf("unexpected units %+v", units)
		}

		logs := buf.String()
		for _, want := range []string{"OTHER-1", "2011-06-16", "13-40-2011"} {
			if !strings.Contains(logs, want) {
				t.Errorf("expected notice mentioning %q, got %q", want, logs)
			}
		}
	})

	t.Run("incomplete uploads are excluded silently", func(t *testing.T) {
		in := t.TempDir()
		date := filepath.Join(in, "ISPY2-1", "01-02-2020")
		tu.MustWriteFile(t, filepath.Join(date, "only-archive.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(date, "only-sidecar.json"), "{}")

		var buf bytes.Buffer
		units, err := New(defaultOptions(), shared.NewLogger(&buf)).Locate(in, "/out")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if len(units) != 0 {
			t.Errorf("expected no units, got %+v", units)
		}
		if strings.Contains(buf.String(), "only-") {
			t.Errorf("incomplete uploads should not be reported, got %q", buf.String())
		}
	})

	t.Run("extension match is case sensitive", func(t *testing.T) {
		in := t.TempDir()
		date := filepath.Join(in, "ISPY2-1", "01-02-2020")
		tu.MustWriteFile(t, filepath.Join(date, "S1.ZIP"), "zip")
		tu.MustWriteFile(t, filepath.Join(date, "S1.json"), "{}")
		tu.MustWriteFile(t, filepath.Join(date, "S2.zip"), "zip")
		tu.MustWriteFile(t, filepath.Join(date, "S2.JSON"), "{}")

		units, err := New(defaultOptions(), nil).Locate(in, "/out")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if len(units) != 0 {
			t.Errorf("upper-case extensions should not pair, got %+v", units)
		}
	})

	t.Run("directories named like archives are ignored", func(t *testing.T) {
		in := t.TempDir()
		date := filepath.Join(in, "ISPY2-1", "01-02-2020")
		tu.MustMkdir(t, filepath.Join(date, "S1.zip"))
		tu.MustWriteFile(t, filepath.Join(date, "S1.json"), "{}")

		units, err := New(defaultOptions(), nil).Locate(in, "/out")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}
		if len(units) != 0 {
			t.Errorf("expected no units, got %+v", units)
		}
	})

	t.Run("sorted output across groups and dates", func(t *testing.T) {
		in := t.TempDir()
		for _, rel := range []string{
			"ISPY2-2/03-01-2020/b", "ISPY2-1/03-01-2020/z", "ISPY2-1/01-01-2020/a", "ISPY2-1/03-01-2020/c",
		} {
			tu.MustWriteFile(t, filepath.Join(in, rel+".zip"), "zip")
			tu.MustWriteFile(t, filepath.Join(in, rel+".json"), "{}")
		}

		units, err := New(defaultOptions(), nil).Locate(in, "/out")
		if err != nil {
			t.Fatalf("Locate() error = %v", err)
		}

		var keys []string
		for _, u := range units {
			keys = append(keys, u.Key())
		}
		want := []string{"ISPY2-1/01-01-2020/a", "ISPY2-1/03-01-2020/c", "ISPY2-1/03-01-2020/z", "ISPY2-2/03-01-2020/b"}
		if !reflect.DeepEqual(keys, want) {
			t.Errorf("keys = %v, want %v", keys, want)
		}
	})

	t.Run("unreadable root is fatal", func(t *testing.T) {
		_, err := New(defaultOptions(), nil).Locate(filepath.Join(t.TempDir(), "missing"), "/out")
		if !errors.Is(err, shared.ErrUnreadableInput) {
			t.Errorf("Locate() error = %v, want ErrUnreadableInput", err)
		}
	})

	t.Run("root that is a file is fatal", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "root.txt")
		if err := os.WriteFile(file, []byte("x"), 0644); err != nil {
			t.Fatalf("failed to write file: %v", err)
		}
		if _, err := New(defaultOptions(), nil).Locate(file, "/out"); !errors.Is(err, shared.ErrUnreadableInput) {
			t.Errorf("Locate() error = %v, want ErrUnreadableInput", err)
		}
	})
}

func TestIntersect(t *testing.T) {
	tt := []struct {
		name     string
		archives []string
		sidecars []string
		want     []string
	}{
		{name: "disjoint", archives: []string{"a"}, sidecars: []string{"b"}, want: []string{}},
		{name: "overlap", archives: []string{"a", "b", "c"}, sidecars: []string{"c", "a", "d"}, want: []string{"a", "c"}},
		{name: "empty", want: []string{}},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got := Intersect(set(tc.archives), set(tc.sidecars))
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("Intersect() = %v, want %v", got, tc.want)
			}
		})
	}
}

func set(items []string) map[string]bool {
	m := make(map[string]bool, len(items))
	for _, s := range items {
		m[s] = true
	}
	return m
}
