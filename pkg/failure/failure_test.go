package failure

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf_ThroughWrapping(t *testing.T) {
	base := New(MalformedPem, "missing BEGIN marker")
	wrapped := fmt.Errorf("loading certificate: %w", base)

	kind, ok := KindOf(wrapped)
	require.True(t, ok)
	assert.Equal(t, MalformedPem, kind)
	assert.True(t, IsKind(wrapped, MalformedPem))
	assert.False(t, IsKind(wrapped, SigningFailed))
}

func TestKindOf_PlainError(t *testing.T) {
	_, ok := KindOf(io.EOF)
	assert.False(t, ok)
}

func TestError_UnwrapAndMessage(t *testing.T) {
	err := Wrap(ArchiveWriteFailed, io.ErrShortWrite, "writing entry %q", "lote.xml")

	assert.ErrorIs(t, err, io.ErrShortWrite)
	assert.Equal(t, `ArchiveWriteFailed: writing entry "lote.xml": short write`, err.Error())
	assert.Equal(t, "InvalidPassword: archive password is empty", New(InvalidPassword, "archive password is empty").Error())
}

func TestError_IsMatchesKind(t *testing.T) {
	err := fmt.Errorf("step: %w", New(SigningFailed, "key is not RSA"))

	assert.True(t, errors.Is(err, &Error{Kind: SigningFailed}))
	assert.False(t, errors.Is(err, &Error{Kind: DecryptionFailed}))
}

func TestKind_Category(t *testing.T) {
	structural := map[Kind]bool{
		MalformedPem:               true,
		UnsupportedKeyFormat:       true,
		DocumentConstructionFailed: true,
		ArchiveWriteFailed:         true,
	}

	for _, k := range Kinds() {
		t.Run(k.String(), func(t *testing.T) {
			if structural[k] {
				assert.Equal(t, CategoryStructural, k.Category())
			} else {
				assert.Equal(t, CategoryConfiguration, k.Category())
			}
		})
	}
	assert.Len(t, Kinds(), 11)
}
