// Package extension generates the per-launch browser extension that feeds
// proxy credentials to the browser.
package extension

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/klauspost/compress/zip"

	"github.com/xabinapal/dabrowser/internal/profile"
	"github.com/xabinapal/dabrowser/internal/utils"
)

// ErrInvalidBundle indicates a bundle could not be built or read.
var ErrInvalidBundle = errors.New("invalid extension bundle")

// Artifact is a packaged extension for one launch.
type Artifact struct {
	// Path is the zip archive.
	Path string
	// Dir is the launch arena holding the archive and its unpacked copy.
	Dir string
	// Token identifies the launch.
	Token string
}

// UnpackedDir is where Unpack places the bundle by default.
func (a *Artifact) UnpackedDir() string {
	return filepath.Join(a.Dir, "unpacked")
}

// Builder writes extension artifacts under Root/<owner>/<token>.
type Builder struct {
	Root string
}

// NewBuilder returns a builder rooted at root.
func NewBuilder(root string) *Builder {
	return &Builder{Root: root}
}

// Build packages an extension that routes traffic through proxy and answers
// its authentication challenges. It returns nil, nil when the proxy has no
// host or port. The staging directory is always removed.
func (b *Builder) Build(ctx context.Context, proxy profile.Proxy, owner, token string) (*Artifact, error) {
	if !proxy.HasAddress() {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !utils.IsSafeID(owner) || !utils.IsSafeID(token) {
		return nil, fmt.Errorf("%w: unsafe owner %q or token %q", ErrInvalidBundle, owner, token)
	}

	port, err := strconv.Atoi(proxy.Port)
	if err != nil {
		return nil, fmt.Errorf("%w: port %q: %v", ErrInvalidBundle, proxy.Port, err)
	}

	if err := os.MkdirAll(b.Root, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	stage, err := os.MkdirTemp(b.Root, "stage-"+token+"-*")
	if err != nil {
		return nil, fmt.Errorf("%w: staging: %v", ErrInvalidBundle, err)
	}
	defer os.RemoveAll(stage)

	manifestData, err := json.MarshalIndent(newManifest(), "", "    ")
	if err != nil {
		return nil, fmt.Errorf("%w: manifest: %v", ErrInvalidBundle, err)
	}

	var background bytes.Buffer
	err = backgroundTemplate.Execute(&background, backgroundData{
		Config: proxyConfig{
			Mode: "fixed_servers",
			Rules: proxyRules{
				SingleProxy: singleProxy{Scheme: "http", Host: proxy.Host, Port: port},
				BypassList:  []string{"localhost"},
			},
		},
		Credentials: credentials{Username: proxy.Username, Password: proxy.Password},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: background script: %v", ErrInvalidBundle, err)
	}

	files := []string{ManifestFile, BackgroundFile}
	contents := map[string][]byte{
		ManifestFile:   manifestData,
		BackgroundFile: background.Bytes(),
	}
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(stage, name), contents[name], 0600); err != nil {
			return nil, fmt.Errorf("%w: write %s: %v", ErrInvalidBundle, name, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	outDir := filepath.Join(b.Root, owner, token)
	if err := os.MkdirAll(outDir, 0700); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	archive := filepath.Join(outDir, ArchiveFile)
	if err := zipFiles(archive, stage, files); err != nil {
		// A failed build leaves no arena behind.
		_ = b.ReleaseToken(owner, token)
		return nil, fmt.Errorf("%w: package: %v", ErrInvalidBundle, err)
	}

	return &Artifact{Path: archive, Dir: outDir, Token: token}, nil
}

// zipFiles archives names from dir into dest through a temp file and rename.
func zipFiles(dest, dir string, names []string) error {
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	zw := zip.NewWriter(tmp)
	for _, name := range names {
		if err := addFile(zw, dir, name); err != nil {
			zw.Close()
			tmp.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, dest)
}

func addFile(zw *zip.Writer, dir, name string) error {
	// #nosec G304 - name is one of the fixed bundle file names
	f, err := os.Open(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	defer f.Close()

	w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
	if err != nil {
		return err
	}
	_, err = io.Copy(w, f)
	return err
}

// Release removes every artifact owned by owner.
func (b *Builder) Release(owner string) error {
	if !utils.IsSafeID(owner) {
		return fmt.Errorf("%w: unsafe owner %q", ErrInvalidBundle, owner)
	}
	return os.RemoveAll(filepath.Join(b.Root, owner))
}

// ReleaseToken removes the arena of a single launch, and the owner directory
// once it is empty.
func (b *Builder) ReleaseToken(owner, token string) error {
	if !utils.IsSafeID(owner) || !utils.IsSafeID(token) {
		return fmt.Errorf("%w: unsafe owner %q or token %q", ErrInvalidBundle, owner, token)
	}
	if err := os.RemoveAll(filepath.Join(b.Root, owner, token)); err != nil {
		return err
	}
	// Fails harmlessly while other launches of the owner still have arenas.
	_ = os.Remove(filepath.Join(b.Root, owner))
	return nil
}

// isWithin reports whether path is inside dir.
func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}
