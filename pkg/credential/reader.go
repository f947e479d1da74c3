package credential

import (
	"io/fs"
	"os"
	"strings"
)

// Reader fetches the bytes a locator points at. The returned slice belongs
// to the caller, which zeroes it once the PEM has been decoded, so an
// implementation that caches content must return a fresh copy on every call.
type Reader interface {
	ReadCredential(locator string) ([]byte, error)
}

// FileReader reads locators as paths on the local filesystem.
type FileReader struct{}

// ReadCredential implements Reader
func (FileReader) ReadCredential(locator string) ([]byte, error) {
	return os.ReadFile(strings.TrimSpace(locator))
}

// FSReader reads locators from an fs.FS. A leading slash is ignored so
// absolute-looking paths resolve inside the file system.
type FSReader struct {
	FS fs.FS
}

// ReadCredential implements Reader
func (r FSReader) ReadCredential(locator string) ([]byte, error) {
	return fs.ReadFile(r.FS, strings.TrimPrefix(strings.TrimSpace(locator), "/"))
}
