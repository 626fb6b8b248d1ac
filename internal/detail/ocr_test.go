package detail

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestOCR_DisabledIsNoOp(t *testing.T) {
	t.Parallel()

	o := NewOCR("", "/ignored", "")
	require.False(t, o.Enabled())

	text, err := o.Run(context.Background(), []byte{0x89, 0x50, 0x4e, 0x47})
	require.NoError(t, err)
	require.Empty(t, text)
}

func TestOCR_DefaultsLanguages(t *testing.T) {
	t.Parallel()

	o := NewOCR("/usr/bin/tesseract", "", "")
	require.True(t, o.Enabled())
	require.Equal(t, "chi_sim+eng", o.languages)
}

func TestOCR_RunsConfiguredExecutable(t *testing.T) {
	t.Parallel()

	// Stand-in for tesseract that drains stdin and prints fixed text.
	script := filepath.Join(t.TempDir(), "fake-tesseract")
	err := os.WriteFile(script, []byte("#!/bin/sh\ncat >/dev/null\necho 'recognized text'\n"), 0o755)
	require.NoError(t, err)

	o := NewOCR(script, "", "eng")
	text, err := o.Run(context.Background(), []byte("image bytes"))
	require.NoError(t, err)
	require.Equal(t, "recognized text", text)
}

func TestOCR_FailureSurfacesStderr(t *testing.T) {
	t.Parallel()

	script := filepath.Join(t.TempDir(), "broken-tesseract")
	err := os.WriteFile(script, []byte("#!/bin/sh\necho 'no languages' >&2\nexit 1\n"), 0o755)
	require.NoError(t, err)

	o := NewOCR(script, "", "eng")
	_, err = o.Run(context.Background(), []byte("image bytes"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "no languages")
}
