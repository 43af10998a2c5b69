// Package updater replaces the running batchctl binary with the latest
// GitHub release.
package updater

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

const (
	defaultAPIBase = "https://api.github.com"
	repo           = "mediaforge/batchctl"
	binaryName     = "batchctl"
)

// Release is the subset of the GitHub release payload we consume
type Release struct {
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset is one downloadable artifact attached to a release
type Asset struct {
	Name        string `json:"name"`
	DownloadURL string `json:"browser_download_url"`
}

// Updater checks for and installs new releases
type Updater struct {
	apiBase string
	client  *http.Client
}

// New creates an updater against the public GitHub API
func New() *Updater {
	return &Updater{
		apiBase: defaultAPIBase,
		client:  &http.Client{Timeout: 5 * time.Minute},
	}
}

// Latest fetches the latest release
func (u *Updater) Latest(ctx context.Context) (*Release, error) {
	url := fmt.Sprintf("%s/repos/%s/releases/latest", u.apiBase, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("checking for updates: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("release check returned status %d", resp.StatusCode)
	}

	var release Release
	if err := json.NewDecoder(resp.Body).Decode(&release); err != nil {
		return nil, fmt.Errorf("parsing release info: %w", err)
	}
	return &release, nil
}

// NeedsUpdate reports whether latest is newer than current. Versions
// are "vX.Y.Z" or "X.Y.Z"; a "dev" build always wants the update.
func NeedsUpdate(current, latest string) bool {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" {
		return latest != "dev"
	}

	cur := parseVersion(current)
	lat := parseVersion(latest)
	for i := 0; i < 3; i++ {
		if lat[i] != cur[i] {
			return lat[i] > cur[i]
		}
	}
	return false
}

func parseVersion(v string) [3]int {
	var parts [3]int
	fmt.Sscanf(v, "%d.%d.%d", &parts[0], &parts[1], &parts[2])
	return parts
}

// PlatformAsset picks the release asset built for this OS and arch
func (r *Release) PlatformAsset() (*Asset, error) {
	want := fmt.Sprintf("%s_%s", runtime.GOOS, runtime.GOARCH)
	for i := range r.Assets {
		if strings.Contains(r.Assets[i].Name, want) && strings.HasSuffix(r.Assets[i].Name, ".tar.gz") {
			return &r.Assets[i], nil
		}
	}
	return nil, fmt.Errorf("release %s has no asset for %s", r.TagName, want)
}

// Apply downloads the given asset and swaps it in for the running
// executable. On failure the original binary is restored.
func (u *Updater) Apply(ctx context.Context, asset *Asset) error {
	tmpDir, err := os.MkdirTemp("", "batchctl-update-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	archivePath := filepath.Join(tmpDir, asset.Name)
	if err := u.download(ctx, asset.DownloadURL, archivePath); err != nil {
		return fmt.Errorf("downloading update: %w", err)
	}

	newBinary := filepath.Join(tmpDir, binaryName)
	if err := extractBinary(archivePath, newBinary); err != nil {
		return fmt.Errorf("extracting update: %w", err)
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}
	exe, err = filepath.EvalSymlinks(exe)
	if err != nil {
		return err
	}

	return swapBinary(exe, newBinary)
}

func (u *Updater) download(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}

	resp, err := u.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download returned status %d", resp.StatusCode)
	}

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, resp.Body)
	return err
}

// extractBinary pulls the batchctl binary out of a tar.gz archive. The
// binary may sit at the archive root or inside a directory.
func extractBinary(archivePath, dest string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return err
	}
	defer f.Close()

	gzr, err := gzip.NewReader(f)
	if err != nil {
		return err
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		if header.Typeflag != tar.TypeReg || filepath.Base(header.Name) != binaryName {
			continue
		}

		out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0755)
		if err != nil {
			return err
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return err
		}
		return out.Close()
	}

	return fmt.Errorf("binary %s not found in archive", binaryName)
}

func swapBinary(currentPath, newPath string) error {
	info, err := os.Stat(currentPath)
	if err != nil {
		return err
	}

	backupPath := currentPath + ".old"
	os.Remove(backupPath)

	if err := os.Rename(currentPath, backupPath); err != nil {
		return fmt.Errorf("backing up current binary: %w", err)
	}

	// Copy rather than rename: the temp dir may be on another filesystem.
	if err := copyFile(newPath, currentPath, info.Mode()); err != nil {
		os.Rename(backupPath, currentPath)
		return fmt.Errorf("installing new binary: %w", err)
	}

	os.Remove(backupPath)
	return nil
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
