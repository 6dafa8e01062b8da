package drumlang

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"drumcoder/pkg/catalog"
	"drumcoder/pkg/contract"
	codec "drumcoder/pkg/drumlang"
)

func newSource(t *testing.T, opts *Options) *Source {
	t.Helper()
	s, err := New(codec.New(catalog.Default()), opts)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return s
}

func TestParse(t *testing.T) {
	s := newSource(t, nil)
	cases := []struct {
		name  string
		text  string
		beats int
		bpm   int
		err   error
	}{
		{"plain", "B5S5", 2, contract.DefaultBPM, nil},
		{"header", "# groove\nbpm=96\nB5S5\nB5\n", 3, 96, nil},
		{"header_not_first", "B5\nbpm=96\n", 0, 0, contract.ErrMalformedPattern},
		{"bad_bpm", "bpm=fast\nB5", 0, 0, contract.ErrInvalidInput},
		{"zero_bpm", "bpm=0\nB5", 0, 0, contract.ErrInvalidInput},
		{"empty", "# only comments\n\n", 0, 0, contract.ErrInvalidInput},
		{"malformed", "B5Z", 0, 0, contract.ErrMalformedPattern},
		{"placeholder", "B?", 0, 0, contract.ErrMalformedPattern},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr, err := s.Parse(c.text)
			if c.err != nil {
				if !errors.Is(err, c.err) {
					t.Fatalf("want %v, got %v", c.err, err)
				}
				return
			}
			if err != nil || tr.Len() != c.beats || tr.BPM != c.bpm {
				t.Fatalf("got %d beats bpm %d err %v", tr.Len(), tr.BPM, err)
			}
		})
	}
}

// TestTracks 解析失败的文件以 err 交付，不中断遍历
func TestTracks(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.drum"), []byte("bpm=100\nB5S5"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.drum"), []byte("B5Z"), 0o644)
	os.WriteFile(filepath.Join(dir, "c.txt"), []byte("B5"), 0o644)

	var ok, bad int
	err := newSource(t, nil).Tracks(context.Background(), []string{dir}, func(id contract.FileID, tr contract.PlayableTrack, err error) error {
		if err != nil {
			if !errors.Is(err, contract.ErrMalformedPattern) {
				t.Fatalf("unexpected error %v", err)
			}
			bad++
			return nil
		}
		if tr.BPM != 100 || tr.Len() != 2 {
			t.Fatalf("track %s: %+v", id, tr)
		}
		ok++
		return nil
	})
	if err != nil || ok != 1 || bad != 1 {
		t.Fatalf("err=%v ok=%d bad=%d", err, ok, bad)
	}
}

func TestTracksMaxBytes(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "big.drum"), []byte("B5B5B5B5"), 0o644)
	var got error
	err := newSource(t, &Options{MaxBytes: 4}).Tracks(context.Background(), []string{dir}, func(_ contract.FileID, _ contract.PlayableTrack, err error) error {
		got = err
		return nil
	})
	if err != nil || !errors.Is(got, contract.ErrInvalidInput) {
		t.Fatalf("err=%v got=%v", err, got)
	}
}

func TestTracksYieldStops(t *testing.T) {
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "a.drum"), []byte("B5"), 0o644)
	os.WriteFile(filepath.Join(dir, "b.drum"), []byte("B5"), 0o644)
	stop := errors.New("stop")
	n := 0
	err := newSource(t, nil).Tracks(context.Background(), []string{dir}, func(contract.FileID, contract.PlayableTrack, error) error {
		n++
		return stop
	})
	if !errors.Is(err, stop) || n != 1 {
		t.Fatalf("err=%v n=%d", err, n)
	}
}

func TestNewNilCodec(t *testing.T) {
	if _, err := New(nil, nil); !errors.Is(err, contract.ErrConfiguration) {
		t.Fatalf("want configuration error, got %v", err)
	}
}
