package scanners

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/klauspost/compress/gzip"

	"github.com/strelka-go/backend/cli/config"
	"github.com/strelka-go/backend/coordinator"
	"github.com/strelka-go/backend/iox"
	"github.com/strelka-go/backend/types"
)

func testCoordinator(t *testing.T) *coordinator.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	c := coordinator.New(mr.Addr(), 0)
	t.Cleanup(iox.CloseFunc(c))
	return c
}

func testFile(name string) *types.File {
	f := types.NewFile("ptr")
	f.Name = name
	return f
}

func scanExpiry() time.Time {
	return time.Now().Add(time.Minute)
}

func TestHash_DefaultAlgorithms(t *testing.T) {
	s := NewHash(nil, nil)

	res, err := s.Scan(t.Context(), []byte("hello"), testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	wantSHA := "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"
	if res.Output["sha256"] != wantSHA {
		t.Errorf("sha256 = %v", res.Output["sha256"])
	}
	if res.Output["md5"] != "5d41402abc4b2a76b9719d911017c592" {
		t.Errorf("md5 = %v", res.Output["md5"])
	}
	if _, ok := res.Output["xxh64"]; !ok {
		t.Error("missing xxh64 digest")
	}
}

func TestHash_AlgorithmSubset(t *testing.T) {
	s := NewHash(nil, nil)
	opts := config.Options{"algorithms": []any{"sha256"}}

	res, err := s.Scan(t.Context(), []byte("hello"), testFile(""), opts, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Output) != 1 {
		t.Errorf("output = %v, want sha256 only", res.Output)
	}
}

func TestHash_UnknownAlgorithm(t *testing.T) {
	s := NewHash(nil, nil)
	opts := config.Options{"algorithms": []any{"crc1024"}}

	if _, err := s.Scan(t.Context(), []byte("x"), testFile(""), opts, scanExpiry()); err == nil {
		t.Fatal("expected error for unknown algorithm")
	}
}

func TestHeaderFooter(t *testing.T) {
	data := []byte("0123456789")
	opts := config.Options{"length": 4}

	head, err := NewHeader(nil, nil).Scan(t.Context(), data, testFile(""), opts, scanExpiry())
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if head.Output["header"] != "0123" {
		t.Errorf("header = %v", head.Output["header"])
	}

	foot, err := NewFooter(nil, nil).Scan(t.Context(), data, testFile(""), opts, scanExpiry())
	if err != nil {
		t.Fatalf("footer: %v", err)
	}
	if foot.Output["footer"] != "6789" {
		t.Errorf("footer = %v", foot.Output["footer"])
	}
}

func TestHeaderFooter_ShortInput(t *testing.T) {
	data := []byte("ab")

	head, err := NewHeader(nil, nil).Scan(t.Context(), data, testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("header: %v", err)
	}
	if head.Output["header"] != "ab" {
		t.Errorf("header = %v", head.Output["header"])
	}

	foot, err := NewFooter(nil, nil).Scan(t.Context(), nil, testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("footer on empty: %v", err)
	}
	if foot.Output["footer"] != "" {
		t.Errorf("footer = %v", foot.Output["footer"])
	}
}

func TestEntropy(t *testing.T) {
	s := NewEntropy(nil, nil)

	res, err := s.Scan(t.Context(), bytes.Repeat([]byte{0xAA}, 1024), testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Output["entropy"].(float64) != 0 {
		t.Errorf("uniform input entropy = %v, want 0", res.Output["entropy"])
	}

	all := make([]byte, 256)
	for i := range all {
		all[i] = byte(i)
	}
	res, err = s.Scan(t.Context(), all, testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if got := res.Output["entropy"].(float64); got < 7.99 || got > 8.01 {
		t.Errorf("flat distribution entropy = %v, want 8", got)
	}
}

func TestURL_DedupesAndSorts(t *testing.T) {
	s := NewURL(nil, nil)
	data := []byte(`see https://b.example and http://a.example plus https://b.example again`)

	res, err := s.Scan(t.Context(), data, testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	urls := res.Output["urls"].([]string)
	if len(urls) != 2 || urls[0] != "http://a.example" || urls[1] != "https://b.example" {
		t.Errorf("urls = %v", urls)
	}
	if res.Output["total"] != 2 {
		t.Errorf("total = %v", res.Output["total"])
	}
}

func TestZip_ExtractsChildren(t *testing.T) {
	coord := testCoordinator(t)
	s := NewZip(nil, coord)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, content := range map[string]string{"a.txt": "alpha", "b.txt": "bravo"} {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := f.Write([]byte(content)); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	res, err := s.Scan(t.Context(), buf.Bytes(), testFile("archive.zip"), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}

	if res.Output["total"] != 2 || res.Output["extracted"] != 2 {
		t.Errorf("output = %v", res.Output)
	}
	listing := res.Output["files"].([]map[string]any)
	if len(listing) != 2 || listing[0]["size"] != int64(5) {
		t.Errorf("files = %v", listing)
	}
	if len(res.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(res.Children))
	}

	for _, child := range res.Children {
		if child.Source != "ScanZip" {
			t.Errorf("child source = %q", child.Source)
		}
		if child.Pointer != child.UID {
			t.Errorf("child pointer %q != uid %q", child.Pointer, child.UID)
		}
		data, err := coord.DrainBytes(t.Context(), child.Pointer)
		if err != nil {
			t.Fatalf("drain child: %v", err)
		}
		if len(data) == 0 {
			t.Errorf("child %s has no bytes", child.Name)
		}
	}
}

func TestZip_RespectsLimit(t *testing.T) {
	coord := testCoordinator(t)
	s := NewZip(nil, coord)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for _, name := range []string{"1", "2", "3"} {
		f, err := w.Create(name)
		if err != nil {
			t.Fatalf("zip create: %v", err)
		}
		if _, err := f.Write([]byte("x")); err != nil {
			t.Fatalf("zip write: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("zip close: %v", err)
	}

	res, err := s.Scan(t.Context(), buf.Bytes(), testFile(""), config.Options{"limit": 1}, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Children) != 1 {
		t.Errorf("children = %d, want 1", len(res.Children))
	}
	if res.Output["total"] != 3 {
		t.Errorf("total = %v, want 3", res.Output["total"])
	}
}

func TestZip_RejectsGarbage(t *testing.T) {
	s := NewZip(nil, testCoordinator(t))
	if _, err := s.Scan(t.Context(), []byte("not a zip"), testFile(""), nil, scanExpiry()); err == nil {
		t.Fatal("expected error for non-zip input")
	}
}

func TestGzip_ExtractsChild(t *testing.T) {
	coord := testCoordinator(t)
	s := NewGzip(nil, coord)

	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	if _, err := w.Write([]byte("decompressed body")); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}

	res, err := s.Scan(t.Context(), buf.Bytes(), testFile("report.txt.gz"), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(res.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(res.Children))
	}
	if res.Children[0].Name != "report.txt" {
		t.Errorf("child name = %q, want report.txt", res.Children[0].Name)
	}
	if res.Output["size_decompressed"] != len("decompressed body") {
		t.Errorf("size_decompressed = %v", res.Output["size_decompressed"])
	}

	data, err := coord.DrainBytes(t.Context(), res.Children[0].Pointer)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if string(data) != "decompressed body" {
		t.Errorf("child bytes = %q", data)
	}
}

func TestTar_ExtractsRegularFiles(t *testing.T) {
	coord := testCoordinator(t)
	s := NewTar(nil, coord)

	var buf bytes.Buffer
	w := tar.NewWriter(&buf)
	if err := w.WriteHeader(&tar.Header{Name: "dir/", Typeflag: tar.TypeDir, Mode: 0o755}); err != nil {
		t.Fatalf("tar dir: %v", err)
	}
	content := []byte("tar entry body")
	if err := w.WriteHeader(&tar.Header{Name: "dir/file.txt", Typeflag: tar.TypeReg, Mode: 0o644, Size: int64(len(content))}); err != nil {
		t.Fatalf("tar header: %v", err)
	}
	if _, err := w.Write(content); err != nil {
		t.Fatalf("tar write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("tar close: %v", err)
	}

	res, err := s.Scan(t.Context(), buf.Bytes(), testFile(""), nil, scanExpiry())
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if res.Output["total"] != 2 {
		t.Errorf("total = %v, want 2", res.Output["total"])
	}
	if len(res.Children) != 1 {
		t.Fatalf("children = %d, want 1", len(res.Children))
	}
	if res.Children[0].Name != "dir/file.txt" {
		t.Errorf("child name = %q", res.Children[0].Name)
	}
}

func TestBuiltins_CoverConfiguredNames(t *testing.T) {
	builtins := Builtins()
	for _, name := range []string{"ScanEntropy", "ScanFooter", "ScanGzip", "ScanHash", "ScanHeader", "ScanTar", "ScanUrl", "ScanZip"} {
		if _, ok := builtins[name]; !ok {
			t.Errorf("missing builtin %s", name)
		}
	}
}
