package security

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidatePathRejections(t *testing.T) {
	root := t.TempDir()

	tests := []struct {
		name string
		path string
	}{
		{"Empty", ""},
		{"NullByte", "file\x00name"},
		{"TooLong", strings.Repeat("a", MaxPathLength+1)},
		{"Absolute", "/etc/passwd"},
		{"TraversalSegment", "../outside"},
		{"NestedTraversal", "data/../../outside"},
		{"HiddenFile", ".env"},
		{"HiddenDirectory", "data/.ssh/key"},
		{"ReservedName", "con"},
		{"ReservedNameWithExtension", "nul.txt"},
		{"ReservedNameNested", "data/com1.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePath(root, tt.path, false, false)
			require.Error(t, err)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
		})
	}
}

func TestValidatePathAccepted(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "data"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "data", "input.csv"), []byte("a,b\n"), 0o600))

	assert.NoError(t, ValidatePath(root, "data/input.csv", false, false))
	assert.NoError(t, ValidatePath(root, "data/input.csv", true, true))
	assert.NoError(t, ValidatePath(root, "data", true, false))
}

func TestValidatePathExistence(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "dir"), 0o755))

	t.Run("MissingFile", func(t *testing.T) {
		err := ValidatePath(root, "missing.txt", true, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not exist")
	})

	t.Run("DirectoryWhenFileRequired", func(t *testing.T) {
		err := ValidatePath(root, "dir", true, true)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not a regular file")
	})
}

func TestValidatePathSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(outside, "secret"), []byte("x"), 0o600))

	t.Run("AbsoluteTarget", func(t *testing.T) {
		link := filepath.Join(root, "abslink")
		require.NoError(t, os.Symlink(filepath.Join(outside, "secret"), link))
		err := ValidatePath(root, "abslink", false, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes")
	})

	t.Run("RelativeTargetOutsideRoot", func(t *testing.T) {
		link := filepath.Join(root, "rellink")
		require.NoError(t, os.Symlink("../../etc/passwd", link))
		err := ValidatePath(root, "rellink", false, false)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "escapes")
	})

	t.Run("RelativeTargetInsideRoot", func(t *testing.T) {
		require.NoError(t, os.WriteFile(filepath.Join(root, "real.txt"), []byte("x"), 0o600))
		link := filepath.Join(root, "goodlink")
		require.NoError(t, os.Symlink("real.txt", link))
		assert.NoError(t, ValidatePath(root, "goodlink", true, true))
	})
}

func TestValidatePathNeverMutatesInput(t *testing.T) {
	root := t.TempDir()
	path := "data/../../escape"
	// Validating twice yields the identical classification: the check
	// has no hidden state.
	first := ValidatePath(root, path, false, false)
	second := ValidatePath(root, path, false, false)
	require.Error(t, first)
	require.Error(t, second)
	assert.Equal(t, first.Error(), second.Error())
}

func TestValidatePattern(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		max      int
		hasError bool
	}{
		{"Valid", "numpy", 0, false},
		{"ValidWithVersion", "pandas==2.1.0", 0, false},
		{"Empty", "", 0, true},
		{"WhitespaceOnly", "   \t", 0, true},
		{"NullByte", "num\x00py", 0, true},
		{"OverDefaultCap", strings.Repeat("x", MaxPatternLength+1), 0, true},
		{"OverExplicitCap", "abcdef", 3, true},
		{"AtExplicitCap", "abc", 3, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePattern(tt.pattern, tt.max)
			if tt.hasError {
				require.Error(t, err)
				var verr *ValidationError
				require.ErrorAs(t, err, &verr)
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestImageTrusted(t *testing.T) {
	allowlist := []string{"alpine:latest", "docker.io/library/python:3.11-slim"}

	t.Run("ExactMatch", func(t *testing.T) {
		assert.True(t, ImageTrusted("alpine:latest", allowlist))
	})

	t.Run("NoPrefixMatching", func(t *testing.T) {
		assert.False(t, ImageTrusted("alpine", allowlist))
		assert.False(t, ImageTrusted("alpine:latest-extra", allowlist))
		assert.False(t, ImageTrusted("docker.io/library/python", allowlist))
	})

	t.Run("UntrustedImage", func(t *testing.T) {
		assert.False(t, ImageTrusted("untrusted/image", allowlist))
	})

	t.Run("EmptyAllowlistFailsClosed", func(t *testing.T) {
		assert.False(t, ImageTrusted("alpine:latest", nil))
		assert.False(t, ImageTrusted("alpine:latest", []string{}))
	})

	t.Run("EmptyImage", func(t *testing.T) {
		assert.False(t, ImageTrusted("", allowlist))
	})
}
