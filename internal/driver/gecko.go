package driver

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/google/go-github/v27/github"
)

func (in *Installer) geckoAssetSuffix() (string, error) {
	goos, arch := in.platform()
	switch goos {
	case "linux":
		switch arch {
		case "amd64":
			return "-linux64.tar.gz", nil
		case "arm64":
			return "-linux-aarch64.tar.gz", nil
		case "386":
			return "-linux32.tar.gz", nil
		}
	case "darwin":
		if arch == "arm64" {
			return "-macos-aarch64.tar.gz", nil
		}
		return "-macos.tar.gz", nil
	case "windows":
		if arch == "386" {
			return "-win32.zip", nil
		}
		return "-win64.zip", nil
	}
	return "", fmt.Errorf("no geckodriver build for %s/%s", goos, arch)
}

// GeckoDriverFile describes the latest geckodriver release for the platform.
func (in *Installer) GeckoDriverFile(ctx context.Context) (File, string, error) {
	suffix, err := in.geckoAssetSuffix()
	if err != nil {
		return File{}, "", err
	}
	client := in.GitHub
	if client == nil {
		client = github.NewClient(in.client())
	}
	rel, _, err := client.Repositories.GetLatestRelease(ctx, "mozilla", "geckodriver")
	if err != nil {
		return File{}, "", err
	}
	for _, a := range rel.Assets {
		name := a.GetName()
		if !strings.HasPrefix(name, "geckodriver-") || !strings.HasSuffix(name, suffix) {
			continue
		}
		u := a.GetBrowserDownloadURL()
		if u == "" {
			return File{}, "", fmt.Errorf("%s does not have a download URL", name)
		}
		goos, _ := in.platform()
		return File{URL: u, Name: name, Binary: exe("geckodriver", goos)}, rel.GetTagName(), nil
	}
	return File{}, "", fmt.Errorf("release for geckodriver*%s not found at https://github.com/mozilla/geckodriver/releases", suffix)
}

// GeckoDriver installs the latest geckodriver and returns its path.
func (in *Installer) GeckoDriver(ctx context.Context) (string, error) {
	f, tag, err := in.GeckoDriverFile(ctx)
	if err != nil {
		return "", err
	}
	return in.Install(ctx, f, filepath.Join(in.Dir, "geckodriver", tag))
}
