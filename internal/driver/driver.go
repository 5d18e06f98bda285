// Package driver locates and downloads the WebDriver binaries that local
// sessions need.
package driver

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"net/http"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/glog"
	"github.com/google/go-github/v27/github"
	"golang.org/x/sync/errgroup"
)

// execCommand is replaced in tests.
var execCommand = exec.Command

// File describes how to download one archive or binary.
type File struct {
	URL string
	// Name is the local archive name.
	Name string
	// Hash, if set, is checked after download. HashType is "md5" or, by
	// default, "sha256".
	Hash     string
	HashType string
	// Binary is the executable's path relative to the extraction directory.
	Binary string
}

// Installer downloads drivers into Dir, one subdirectory per driver version.
type Installer struct {
	Dir    string
	Client *http.Client
	// GitHub looks up geckodriver releases.
	GitHub *github.Client
	// Bucket reads the legacy chromedriver bucket. Nil uses Cloud Storage.
	Bucket Bucket
	// CfTURL is the Chrome for Testing milestone index.
	CfTURL string
	// OS and Arch default to the running platform.
	OS, Arch string
}

// DefaultCfTURL is the Chrome for Testing index of the latest version per
// milestone.
const DefaultCfTURL = "https://googlechromelabs.github.io/chrome-for-testing/latest-versions-per-milestone-with-downloads.json"

// NewInstaller returns an Installer for the running platform.
func NewInstaller(dir string) *Installer {
	return &Installer{
		Dir:    dir,
		Client: http.DefaultClient,
		GitHub: github.NewClient(nil),
		CfTURL: DefaultCfTURL,
		OS:     runtime.GOOS,
		Arch:   runtime.GOARCH,
	}
}

func (in *Installer) client() *http.Client {
	if in.Client != nil {
		return in.Client
	}
	return http.DefaultClient
}

func (in *Installer) platform() (string, string) {
	goos, arch := in.OS, in.Arch
	if goos == "" {
		goos = runtime.GOOS
	}
	if arch == "" {
		arch = runtime.GOARCH
	}
	return goos, arch
}

// Install downloads f into dir unless the binary is already there, extracts
// it and returns the binary's path.
func (in *Installer) Install(ctx context.Context, f File, dir string) (string, error) {
	bin := filepath.Join(dir, filepath.FromSlash(f.Binary))
	if fi, err := os.Stat(bin); err == nil && fi.Mode().IsRegular() {
		glog.Infof("Using cached %q", bin)
		return bin, nil
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	archive := filepath.Join(dir, f.Name)
	glog.Infof("Downloading %q from %q", f.Name, f.URL)
	if err := in.download(ctx, f, archive); err != nil {
		return "", err
	}
	if err := extract(archive, dir); err != nil {
		return "", err
	}
	if err := os.Chmod(bin, 0755); err != nil {
		return "", fmt.Errorf("%s: %v", f.Name, err)
	}
	return bin, nil
}

func (in *Installer) download(ctx context.Context, f File, dst string) (err error) {
	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("error creating %q: %v", dst, err)
	}
	defer func() {
		if closeErr := out.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("error closing %q: %v", dst, closeErr)
		}
	}()

	req, err := http.NewRequest(http.MethodGet, f.URL, nil)
	if err != nil {
		return err
	}
	resp, err := in.client().Do(req.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("%s: error downloading %q: %v", f.Name, f.URL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: error downloading %q: %s", f.Name, f.URL, resp.Status)
	}

	if f.Hash == "" {
		if _, err := io.Copy(out, resp.Body); err != nil {
			return fmt.Errorf("%s: error downloading %q: %v", f.Name, f.URL, err)
		}
		return nil
	}
	var h hash.Hash
	switch strings.ToLower(f.HashType) {
	case "md5":
		h = md5.New()
	default:
		h = sha256.New()
	}
	if _, err := io.Copy(io.MultiWriter(out, h), resp.Body); err != nil {
		return fmt.Errorf("%s: error downloading %q: %v", f.Name, f.URL, err)
	}
	if got := hex.EncodeToString(h.Sum(nil)); got != f.Hash {
		return fmt.Errorf("%s: got hash %q, want %q", f.Name, got, f.Hash)
	}
	return nil
}

// extract unpacks a .zip, .tar.gz or .tar.bz2 archive into dir with the
// system unzip and tar tools. Other files are left alone.
func extract(archive, dir string) error {
	var args []string
	switch {
	case strings.HasSuffix(archive, ".zip"):
		args = []string{"unzip", "-o", "-d", dir, archive}
	case strings.HasSuffix(archive, ".gz"):
		args = []string{"tar", "-xzf", archive, "-C", dir}
	case strings.HasSuffix(archive, ".bz2"):
		args = []string{"tar", "-xjf", archive, "-C", dir}
	default:
		return nil
	}
	glog.Infof("Unpacking %q", archive)
	if out, err := execCommand(args[0], args[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("error unpacking %q: %v: %s", path.Base(archive), err, out)
	}
	return nil
}

// InstallAll installs the drivers for browsers concurrently and returns
// their paths keyed by browser. chromeVersion is the local Chrome version,
// or empty to detect it.
func (in *Installer) InstallAll(ctx context.Context, chromeVersion string, browsers ...string) (map[string]string, error) {
	paths := make([]string, len(browsers))
	g, ctx := errgroup.WithContext(ctx)
	for i, b := range browsers {
		i, b := i, b
		g.Go(func() error {
			var (
				p   string
				err error
			)
			switch b {
			case "chrome":
				v := chromeVersion
				if v == "" {
					sv, derr := DetectChromeVersion("")
					if derr != nil {
						return derr
					}
					v = sv.String()
				}
				p, err = in.ChromeDriver(ctx, v)
			case "firefox":
				p, err = in.GeckoDriver(ctx)
			default:
				return fmt.Errorf("no driver download for %q", b)
			}
			if err != nil {
				return fmt.Errorf("error handling %s: %v", b, err)
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	out := make(map[string]string, len(browsers))
	for i, b := range browsers {
		out[b] = paths[i]
	}
	return out, nil
}
