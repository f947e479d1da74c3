// Package archive writes single-entry AES-256 encrypted zip archives
package archive

import (
	"bytes"
	"fmt"
	"io"
	"time"

	"github.com/yeka/zip"

	"github.com/sirosfoundation/go-regpack/pkg/failure"
)

// MIMEType is the media type of a packaged archive.
const MIMEType = "application/zip"

// Entry is one file inside an archive.
type Entry struct {
	Name    string
	Content []byte
}

// Packager writes archives compressed with deflate and encrypted with
// WinZip AES-256 (AE-2), which 7-Zip, WinZip and most unzip tools open.
type Packager struct {
	now func() time.Time
}

// PackagerOption configures a Packager
type PackagerOption func(*Packager)

// WithClock sets the clock used for entry modification times.
func WithClock(now func() time.Time) PackagerOption {
	return func(p *Packager) {
		if now != nil {
			p.now = now
		}
	}
}

// NewPackager creates a packager
func NewPackager(opts ...PackagerOption) *Packager {
	p := &Packager{now: time.Now}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Package writes entry into a new encrypted archive. The password must not
// be empty.
func (p *Packager) Package(entry Entry, password string) ([]byte, error) {
	if password == "" {
		return nil, failure.New(failure.InvalidPassword, "archive password is empty")
	}
	if entry.Name == "" {
		return nil, failure.New(failure.ArchiveWriteFailed, "archive entry name is empty")
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	fh := &zip.FileHeader{Name: entry.Name, Method: zip.Deflate}
	fh.SetModTime(p.now())
	fh.SetPassword(password)
	fh.SetEncryptionMethod(zip.AES256Encryption)
	w, err := zw.CreateHeader(fh)
	if err != nil {
		return nil, failure.Wrap(failure.ArchiveWriteFailed, err, "creating entry %q", entry.Name)
	}
	if _, err := io.Copy(w, bytes.NewReader(entry.Content)); err != nil {
		return nil, failure.Wrap(failure.ArchiveWriteFailed, err, "writing entry %q", entry.Name)
	}
	if err := zw.Close(); err != nil {
		return nil, failure.Wrap(failure.ArchiveWriteFailed, err, "finishing archive")
	}

	return buf.Bytes(), nil
}

// Open decrypts every entry of archive with password.
func Open(archive []byte, password string) ([]Entry, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return nil, fmt.Errorf("reading archive: %w", err)
	}

	entries := make([]Entry, 0, len(zr.File))
	for _, f := range zr.File {
		if f.IsEncrypted() {
			f.SetPassword(password)
		}
		content, err := readEntry(f)
		if err != nil {
			if f.IsEncrypted() {
				return nil, failure.Wrap(failure.InvalidPassword, err, "decrypting entry %q", f.Name)
			}
			return nil, fmt.Errorf("reading entry %q: %w", f.Name, err)
		}
		entries = append(entries, Entry{Name: f.Name, Content: content})
	}
	return entries, nil
}

// Encrypted reports whether every entry of archive is encrypted.
func Encrypted(archive []byte) (bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return false, fmt.Errorf("reading archive: %w", err)
	}
	for _, f := range zr.File {
		if !f.IsEncrypted() {
			return false, nil
		}
	}
	return len(zr.File) > 0, nil
}

func readEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
