package extension

import (
	"bufio"
	"bytes"
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
)

// maxEntrySize bounds each extracted file.
const maxEntrySize = 1 << 20

func openArchive(path string) (*zip.ReadCloser, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		if errors.Is(err, zip.ErrInsecurePath) && zr != nil {
			zr.Close()
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	return zr, nil
}

// Unpack extracts the artifact archive into dest, which is created if
// needed. Entries that would land outside dest are rejected.
func Unpack(a *Artifact, dest string) error {
	zr, err := openArchive(a.Path)
	if err != nil {
		return err
	}
	defer zr.Close()

	if err := os.MkdirAll(dest, 0700); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	absDest, err := filepath.Abs(dest)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	for _, f := range zr.File {
		if filepath.IsAbs(f.Name) || strings.HasPrefix(f.Name, "/") || strings.Contains(f.Name, `\`) {
			return fmt.Errorf("%w: unsafe entry %q", ErrInvalidBundle, f.Name)
		}
		target := filepath.Join(absDest, filepath.FromSlash(f.Name))
		if !isWithin(absDest, target) || target == absDest {
			return fmt.Errorf("%w: unsafe entry %q", ErrInvalidBundle, f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0700); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidBundle, err)
			}
			continue
		}
		if f.FileInfo().Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: symlink entry %q", ErrInvalidBundle, f.Name)
		}
		if err := extract(f, target); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidBundle, f.Name, err)
		}
	}
	return nil
}

func extract(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0700); err != nil {
		return err
	}

	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	// #nosec G304 - target was checked to be inside the destination
	out, err := os.OpenFile(target, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}

	n, err := io.Copy(out, io.LimitReader(rc, maxEntrySize+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if n > maxEntrySize {
		return errors.New("entry too large")
	}
	return nil
}

func readEntry(zr *zip.ReadCloser, name string) ([]byte, error) {
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(io.LimitReader(rc, maxEntrySize))
	}
	return nil, fmt.Errorf("missing %s", name)
}

// Inspect reads the proxy configuration embedded in an archive.
func Inspect(path string) (profile.Proxy, error) {
	zr, err := openArchive(path)
	if err != nil {
		return profile.Proxy{}, err
	}
	defer zr.Close()

	manifestData, err := readEntry(zr, ManifestFile)
	if err != nil {
		return profile.Proxy{}, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	var m manifest
	if err := json.Unmarshal(manifestData, &m); err != nil {
		return profile.Proxy{}, fmt.Errorf("%w: manifest: %v", ErrInvalidBundle, err)
	}
	if m.ManifestVersion != 2 {
		return profile.Proxy{}, fmt.Errorf("%w: unsupported manifest version %d", ErrInvalidBundle, m.ManifestVersion)
	}

	script, err := readEntry(zr, BackgroundFile)
	if err != nil {
		return profile.Proxy{}, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}

	var cfg proxyConfig
	var creds credentials
	var haveConfig, haveCreds bool

	sc := bufio.NewScanner(bytes.NewReader(script))
	sc.Buffer(make([]byte, 0, 64*1024), maxEntrySize)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		switch {
		case strings.HasPrefix(line, configPrefix):
			if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(line, configPrefix), ";")), &cfg); err != nil {
				return profile.Proxy{}, fmt.Errorf("%w: config: %v", ErrInvalidBundle, err)
			}
			haveConfig = true
		case strings.HasPrefix(line, credentialsPrefix):
			if err := json.Unmarshal([]byte(strings.TrimSuffix(strings.TrimPrefix(line, credentialsPrefix), ";")), &creds); err != nil {
				return profile.Proxy{}, fmt.Errorf("%w: credentials: %v", ErrInvalidBundle, err)
			}
			haveCreds = true
		}
	}
	if err := sc.Err(); err != nil {
		return profile.Proxy{}, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if !haveConfig || !haveCreds {
		return profile.Proxy{}, fmt.Errorf("%w: background script has no embedded configuration", ErrInvalidBundle)
	}

	return profile.Proxy{
		Host:     cfg.Rules.SingleProxy.Host,
		Port:     strconv.Itoa(cfg.Rules.SingleProxy.Port),
		Username: creds.Username,
		Password: creds.Password,
	}, nil
}
