package archive

import (
	"archive/tar"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
)

func TestPackRoundTrip(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "compile.log"), []byte("gcc output\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "case1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "case1", "out.txt"), []byte("42\n"), 0644); err != nil {
		t.Fatal(err)
	}

	archivePath, err := Pack(dir)
	if err != nil {
		t.Fatalf("Pack returned error: %v", err)
	}
	if filepath.Ext(archivePath) != ".zst" {
		t.Fatalf("archive path %q does not end in .zst", archivePath)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("expected source dir to survive Pack, got %v", err)
	}

	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		t.Fatalf("zstd.NewReader: %v", err)
	}
	defer zr.Close()

	tr := tar.NewReader(zr)
	found := map[string]string{}
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("tar read: %v", err)
		}
		if header.Typeflag == tar.TypeDir {
			continue
		}
		content, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read tar entry %q: %v", header.Name, err)
		}
		found[header.Name] = string(content)
	}

	if found["compile.log"] != "gcc output\n" {
		t.Fatalf("compile.log content = %q", found["compile.log"])
	}
	if found[filepath.Join("case1", "out.txt")] != "42\n" {
		t.Fatalf("case1/out.txt content = %q", found[filepath.Join("case1", "out.txt")])
	}
}

func TestPackMissingDirReturnsError(t *testing.T) {
	if _, err := Pack(filepath.Join(t.TempDir(), "does-not-exist")); err == nil {
		t.Fatal("expected error packing a nonexistent directory")
	}
}
