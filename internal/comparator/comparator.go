// Package comparator implements answer comparison: the default
// normalized-hash comparator and the SPJ comparator's exit-code
// interpretation.
package comparator

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"regexp"

	"github.com/genuine-oj/judger/internal/verdict"
	pkgerrors "github.com/genuine-oj/judger/pkg/errors"
)

var md5Pattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// Normalize strips trailing bytes from the whole blob, splits into
// lines, right-strips each line, and rejoins with "\n". It is
// idempotent: Normalize(Normalize(x)) == Normalize(x).
func Normalize(content []byte) []byte {
	const blobWhitespace = "\r\n\t\v\f "
	const lineWhitespace = "\r\t\v\f "
	trimmed := bytes.TrimRight(content, blobWhitespace)
	lines := bytes.Split(trimmed, []byte("\n"))
	for i, line := range lines {
		lines[i] = bytes.TrimRight(line, lineWhitespace)
	}
	return bytes.Join(lines, []byte("\n"))
}

// Hash returns the hex-encoded MD5 of the normalized content.
func Hash(content []byte) string {
	sum := md5.Sum(Normalize(content))
	return hex.EncodeToString(sum[:])
}

// LoadReferenceHash reads and strictly validates a .md5 reference file:
// exactly 32 lowercase hex characters, no surrounding whitespace. This
// resolves spec.md §9's open question on md5 file encoding — any
// deviation is a SYSTEM_ERROR at load time rather than a silent WA.
func LoadReferenceHash(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", pkgerrors.New(pkgerrors.JudgeSystemError).WithMessage("Test answer hash not found!")
	}
	text := string(data)
	if !md5Pattern.MatchString(text) {
		return "", pkgerrors.New(pkgerrors.JudgeSystemError).WithMessage(fmt.Sprintf("malformed reference hash in %s", path))
	}
	return text, nil
}

// CompareDefault implements spec.md §4.4's default comparator.
func CompareDefault(outputPath, referenceHashPath string) (verdict.Verdict, []byte, error) {
	content, err := os.ReadFile(outputPath)
	if err != nil {
		return verdict.SystemError, nil, pkgerrors.Wrap(err, pkgerrors.JudgeSystemError).WithMessage("read user output failed")
	}
	refHash, err := LoadReferenceHash(referenceHashPath)
	if err != nil {
		return verdict.SystemError, []byte(pkgerrors.GetError(err).Message), nil
	}
	if Hash(content) == refHash {
		return verdict.Accepted, nil, nil
	}
	return verdict.WrongAnswer, content, nil
}

// SPJExitCode interprets a checker's exit code per spec.md §4.6.
func SPJExitCode(exitCode int) verdict.Verdict {
	switch exitCode {
	case 0:
		return verdict.Accepted
	case 1:
		return verdict.WrongAnswer
	default:
		return verdict.SystemError
	}
}
