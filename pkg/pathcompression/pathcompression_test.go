package pathcompression

import (
	"archive/tar"
	"context"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/docsite-tools/docsync/pkg/plog"
	"github.com/docsite-tools/docsync/pkg/util"
)

func TestMain(m *testing.M) {
	plog.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// readArchive returns the entry names and regular file contents of an archive.
func readArchive(t *testing.T, path string, format Format) (names []string, contents map[string]string) {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var r io.Reader
	switch format {
	case TarGz:
		gr, err := pgzip.NewReader(f)
		require.NoError(t, err)
		defer gr.Close()
		r = gr
	case TarZst:
		zr, err := zstd.NewReader(f)
		require.NoError(t, err)
		defer zr.Close()
		r = zr
	}

	contents = make(map[string]string)
	tr := tar.NewReader(r)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		names = append(names, hdr.Name)
		if hdr.Typeflag == tar.TypeReg {
			data, err := io.ReadAll(tr)
			require.NoError(t, err)
			contents[hdr.Name] = string(data)
		}
	}
	return names, contents
}

func createSpecDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.yaml"), []byte("openapi: 3.0.0"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "tmp", "nested"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tmp", "nested", "a.json"), []byte("{}"), 0644))
	return dir
}

func TestCompress(t *testing.T) {
	for _, format := range []Format{TarGz, TarZst} {
		t.Run(format.String(), func(t *testing.T) {
			base := createSpecDir(t)
			archive := filepath.Join(t.TempDir(), "archives", "spec"+format.Extension())

			err := NewPathCompressor(4).Compress(context.Background(), Plan{
				BaseDir:     base,
				Entries:     []string{"old.yaml", "tmp"},
				ArchivePath: archive,
				Format:      format,
				Level:       Fastest,
				Metrics:     true,
			})
			require.NoError(t, err)

			names, contents := readArchive(t, archive, format)
			assert.ElementsMatch(t, []string{"old.yaml", "tmp/", "tmp/nested/", "tmp/nested/a.json"}, names)
			assert.Equal(t, "openapi: 3.0.0", contents["old.yaml"])
			assert.Equal(t, "{}", contents["tmp/nested/a.json"])

			entries, err := os.ReadDir(filepath.Dir(archive))
			require.NoError(t, err)
			assert.Len(t, entries, 1, "temporary files must be renamed or removed")
		})
	}
}

func TestCompressStoresSymlinksAsLinks(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlinks require elevated privileges on Windows")
	}
	base := t.TempDir()
	require.NoError(t, os.Symlink("/does/not/exist", filepath.Join(base, "dangling")))
	archive := filepath.Join(t.TempDir(), "links.tar.gz")

	err := NewPathCompressor(0).Compress(context.Background(), Plan{
		BaseDir:     base,
		Entries:     []string{"dangling"},
		ArchivePath: archive,
		Format:      TarGz,
	})
	require.NoError(t, err)

	f, err := os.Open(archive)
	require.NoError(t, err)
	defer f.Close()
	gr, err := pgzip.NewReader(f)
	require.NoError(t, err)
	hdr, err := tar.NewReader(gr).Next()
	require.NoError(t, err)
	assert.Equal(t, byte(tar.TypeSymlink), hdr.Typeflag)
	assert.Equal(t, "/does/not/exist", hdr.Linkname)
}

func TestCompressFailureLeavesNoArchive(t *testing.T) {
	base := createSpecDir(t)
	archiveDir := t.TempDir()
	archive := filepath.Join(archiveDir, "spec.tar.zst")

	err := NewPathCompressor(0).Compress(context.Background(), Plan{
		BaseDir:     base,
		Entries:     []string{"old.yaml", "missing.yaml"},
		ArchivePath: archive,
		Format:      TarZst,
	})
	require.Error(t, err)

	entries, err := os.ReadDir(archiveDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCompressDryRun(t *testing.T) {
	base := createSpecDir(t)
	archive := filepath.Join(t.TempDir(), "spec.tar.gz")

	err := NewPathCompressor(0).Compress(context.Background(), Plan{
		BaseDir:     base,
		Entries:     []string{"old.yaml"},
		ArchivePath: archive,
		Format:      TarGz,
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.NoFileExists(t, archive)
}

func TestCompressRejectsUnknownFormat(t *testing.T) {
	base := createSpecDir(t)
	err := NewPathCompressor(0).Compress(context.Background(), Plan{
		BaseDir:     base,
		Entries:     []string{"old.yaml"},
		ArchivePath: filepath.Join(t.TempDir(), "spec.zip"),
		Format:      Format("zip"),
	})
	assert.Error(t, err)
}

func TestCompressCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewPathCompressor(0).Compress(ctx, Plan{Entries: []string{"x"}, Format: TarGz})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestArchiveFileName(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "cobo_waas2_openapi_spec_20260102T030405Z.tar.gz", ArchiveFileName("cobo_waas2_openapi_spec", ts, TarGz))
	assert.Equal(t, "spec_20260102T030405Z.tar.zst", ArchiveFileName("spec", ts, TarZst))
}

func TestParseFormatAndLevel(t *testing.T) {
	f, err := ParseFormat("tar.zst")
	require.NoError(t, err)
	assert.Equal(t, TarZst, f)

	_, err = ParseFormat("zip")
	assert.Error(t, err)

	l, err := ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, Default, l)

	_, err = ParseLevel("ultra")
	assert.Error(t, err)
}

func TestYAMLDecoding(t *testing.T) {
	var doc struct {
		Format Format `yaml:"format"`
		Level  Level  `yaml:"level"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("format: tar.zst\nlevel: best\n"), &doc))
	assert.Equal(t, TarZst, doc.Format)
	assert.Equal(t, Best, doc.Level)

	assert.Error(t, yaml.Unmarshal([]byte("format: rar\n"), &doc))
	assert.Error(t, yaml.Unmarshal([]byte("level: [1]\n"), &doc))

	out, err := yaml.Marshal(doc)
	require.NoError(t, err)
	assert.Contains(t, string(out), "format: tar.zst")
}

func TestCompressCreatesArchiveDirWithUserWritablePerms(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits are not enforced on Windows")
	}
	base := createSpecDir(t)
	archiveDir := filepath.Join(t.TempDir(), "archives")

	err := NewPathCompressor(0).Compress(context.Background(), Plan{
		BaseDir:     base,
		Entries:     []string{"old.yaml"},
		ArchivePath: filepath.Join(archiveDir, "spec.tar.gz"),
		Format:      TarGz,
	})
	require.NoError(t, err)

	info, err := os.Stat(archiveDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.NotZero(t, info.Mode().Perm()&util.PermUserWrite, "archive directory must be writable by the user")
	assert.Equal(t, os.FileMode(0), info.Mode().Perm()&^util.UserWritableDirPerms)
}
