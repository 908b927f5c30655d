package comparator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/genuine-oj/judger/internal/verdict"
)

func TestNormalizeIsIdempotent(t *testing.T) {
	input := []byte("3 \r\nfoo  \n\nbar\t\n  \n")
	once := Normalize(input)
	twice := Normalize(once)
	if string(once) != string(twice) {
		t.Fatalf("Normalize not idempotent: once=%q twice=%q", once, twice)
	}
}

func TestHashIgnoresTrailingWhitespace(t *testing.T) {
	a := Hash([]byte("3\n"))
	b := Hash([]byte("3 \n\n"))
	if a != b {
		t.Fatalf("hashes differ for trailing-whitespace variants: %s vs %s", a, b)
	}
}

func TestLoadReferenceHashRejectsMalformed(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.md5")
	if err := os.WriteFile(bad, []byte("NOTHEX\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadReferenceHash(bad); err == nil {
		t.Fatal("expected error for malformed reference hash")
	}

	good := filepath.Join(dir, "good.md5")
	sum := Hash([]byte("hello\n"))
	if err := os.WriteFile(good, []byte(sum), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadReferenceHash(good)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != sum {
		t.Fatalf("got %q, want %q", got, sum)
	}
}

func TestCompareDefault(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "1.out")
	refPath := filepath.Join(dir, "1.md5")

	if err := os.WriteFile(outPath, []byte("42\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(refPath, []byte(Hash([]byte("42\n"))), 0644); err != nil {
		t.Fatal(err)
	}

	v, out, err := CompareDefault(outPath, refPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != verdict.Accepted {
		t.Fatalf("verdict = %v, want Accepted", v)
	}
	if out != nil {
		t.Fatalf("expected nil output on acceptance, got %q", out)
	}

	if err := os.WriteFile(outPath, []byte("43\n"), 0644); err != nil {
		t.Fatal(err)
	}
	v, out, err = CompareDefault(outPath, refPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != verdict.WrongAnswer {
		t.Fatalf("verdict = %v, want WrongAnswer", v)
	}
	if string(out) != "43\n" {
		t.Fatalf("output = %q, want the mismatched content echoed back", out)
	}
}

func TestCompareDefaultMissingReferenceIsSystemError(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "1.out")
	if err := os.WriteFile(outPath, []byte("1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	v, out, err := CompareDefault(outPath, filepath.Join(dir, "missing.md5"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != verdict.SystemError {
		t.Fatalf("verdict = %v, want SystemError", v)
	}
	if len(out) == 0 {
		t.Fatal("expected a descriptive message in place of output")
	}
}

func TestSPJExitCode(t *testing.T) {
	cases := map[int]verdict.Verdict{
		0: verdict.Accepted,
		1: verdict.WrongAnswer,
		2: verdict.SystemError,
		7: verdict.SystemError,
	}
	for code, want := range cases {
		if got := SPJExitCode(code); got != want {
			t.Fatalf("SPJExitCode(%d) = %v, want %v", code, got, want)
		}
	}
}
