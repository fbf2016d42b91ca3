package hashstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
)

// ReadError reports a file that could not be opened or read while digesting.
type ReadError struct {
	Path  string
	Cause error
}

func (e *ReadError) Error() string {
	if e == nil {
		return "hashstore read error"
	}
	return fmt.Sprintf("failed to read %s: %v", e.Path, e.Cause)
}

func (e *ReadError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// DigestBytes returns the hex SHA-256 digest of payload.
func DigestBytes(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// DigestReader streams reader through SHA-256 and returns the digest and the
// number of bytes consumed.
func DigestReader(reader io.Reader) (string, int64, error) {
	hasher := sha256.New()
	size, err := io.Copy(hasher, reader)
	if err != nil {
		return "", size, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// DigestFile returns the hex SHA-256 digest of the file at path.
func DigestFile(path string) (string, error) {
	digest, _, err := DigestFileSize(path)
	return digest, err
}

// DigestFileSize is DigestFile that also reports the file size in bytes.
func DigestFileSize(path string) (string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", 0, &ReadError{Path: path, Cause: err}
	}
	defer file.Close()

	digest, size, err := DigestReader(file)
	if err != nil {
		return "", 0, &ReadError{Path: path, Cause: err}
	}
	return digest, size, nil
}

// Equal compares two hex digests ignoring case and surrounding whitespace.
func Equal(left string, right string) bool {
	normalizedLeft := strings.TrimSpace(left)
	normalizedRight := strings.TrimSpace(right)
	if normalizedLeft == "" || normalizedRight == "" {
		return false
	}
	return strings.EqualFold(normalizedLeft, normalizedRight)
}
