package driver

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"cloud.google.com/go/storage"
	"github.com/blang/semver"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/golang/glog"
	"google.golang.org/api/option"
)

// firstCfTMilestone is the first Chrome major version published through
// Chrome for Testing. Older versions live in the legacy bucket.
const firstCfTMilestone = 115

// Bucket is the read access the installer needs to a storage bucket.
type Bucket interface {
	// Read returns an object's contents.
	Read(ctx context.Context, name string) ([]byte, error)
	// Locate returns an object's download URL and MD5 sum.
	Locate(ctx context.Context, name string) (url string, md5 []byte, err error)
}

// legacyBucket is the Cloud Storage bucket of ChromeDriver releases before
// Chrome for Testing.
const legacyBucket = "chromedriver"

type gcsBucket struct {
	bkt *storage.BucketHandle
}

// NewGCSBucket opens a public Cloud Storage bucket without credentials.
func NewGCSBucket(ctx context.Context, name string, hc *http.Client) (Bucket, error) {
	if hc == nil {
		hc = http.DefaultClient
	}
	client, err := storage.NewClient(ctx, option.WithHTTPClient(hc))
	if err != nil {
		return nil, fmt.Errorf("cannot create a storage client: %v", err)
	}
	return &gcsBucket{bkt: client.Bucket(name)}, nil
}

func (b *gcsBucket) Read(ctx context.Context, name string) ([]byte, error) {
	r, err := b.bkt.Object(name).NewReader(ctx)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return ioutil.ReadAll(r)
}

func (b *gcsBucket) Locate(ctx context.Context, name string) (string, []byte, error) {
	attrs, err := b.bkt.Object(name).Attrs(ctx)
	if err != nil {
		return "", nil, err
	}
	return attrs.MediaLink, attrs.MD5, nil
}

type cftIndex struct {
	Milestones map[string]struct {
		Version   string `json:"version"`
		Downloads map[string][]struct {
			Platform string `json:"platform"`
			URL      string `json:"url"`
		} `json:"downloads"`
	} `json:"milestones"`
}

func (in *Installer) cftPlatform() (string, error) {
	switch goos, arch := in.platform(); goos {
	case "linux":
		if arch == "amd64" {
			return "linux64", nil
		}
	case "darwin":
		if arch == "arm64" {
			return "mac-arm64", nil
		}
		return "mac-x64", nil
	case "windows":
		if arch == "386" {
			return "win32", nil
		}
		return "win64", nil
	}
	goos, arch := in.platform()
	return "", fmt.Errorf("no chromedriver build for %s/%s", goos, arch)
}

func (in *Installer) legacyPlatform() (string, error) {
	switch goos, arch := in.platform(); goos {
	case "linux":
		return "linux64", nil
	case "darwin":
		if arch == "arm64" {
			return "mac_arm64", nil
		}
		return "mac64", nil
	case "windows":
		return "win32", nil
	}
	goos, _ := in.platform()
	return "", fmt.Errorf("no legacy chromedriver build for %s", goos)
}

func exe(name string, goos string) string {
	if goos == "windows" {
		return name + ".exe"
	}
	return name
}

// ChromeDriverFile describes the ChromeDriver download matching the Chrome
// version chromeVersion.
func (in *Installer) ChromeDriverFile(ctx context.Context, chromeVersion string) (File, string, error) {
	v, err := ParseVersion(chromeVersion)
	if err != nil {
		return File{}, "", err
	}
	if v.Major >= firstCfTMilestone {
		return in.cftFile(ctx, v)
	}
	return in.legacyFile(ctx, v)
}

// ChromeDriver installs the ChromeDriver matching chromeVersion and returns
// its path.
func (in *Installer) ChromeDriver(ctx context.Context, chromeVersion string) (string, error) {
	f, version, err := in.ChromeDriverFile(ctx, chromeVersion)
	if err != nil {
		return "", err
	}
	return in.Install(ctx, f, filepath.Join(in.Dir, "chromedriver", version))
}

func (in *Installer) cftFile(ctx context.Context, v semver.Version) (File, string, error) {
	plat, err := in.cftPlatform()
	if err != nil {
		return File{}, "", err
	}
	req, err := http.NewRequest(http.MethodGet, in.CfTURL, nil)
	if err != nil {
		return File{}, "", err
	}
	resp, err := in.client().Do(req.WithContext(ctx))
	if err != nil {
		return File{}, "", fmt.Errorf("chrome for testing index: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return File{}, "", fmt.Errorf("chrome for testing index: %s", resp.Status)
	}
	var idx cftIndex
	if err := json.NewDecoder(resp.Body).Decode(&idx); err != nil {
		return File{}, "", fmt.Errorf("chrome for testing index: %v", err)
	}
	ms, ok := idx.Milestones[fmt.Sprint(v.Major)]
	if !ok {
		return File{}, "", fmt.Errorf("chrome for testing has no milestone %d", v.Major)
	}
	for _, d := range ms.Downloads["chromedriver"] {
		if d.Platform != plat {
			continue
		}
		goos, _ := in.platform()
		glog.Infof("ChromeDriver %s matches Chrome %s", ms.Version, v)
		return File{
			URL:    d.URL,
			Name:   "chromedriver-" + plat + ".zip",
			Binary: "chromedriver-" + plat + "/" + exe("chromedriver", goos),
		}, ms.Version, nil
	}
	return File{}, "", fmt.Errorf("milestone %d has no chromedriver for %s", v.Major, plat)
}

func (in *Installer) legacyFile(ctx context.Context, v semver.Version) (File, string, error) {
	plat, err := in.legacyPlatform()
	if err != nil {
		return File{}, "", err
	}
	bkt := in.Bucket
	if bkt == nil {
		if bkt, err = NewGCSBucket(ctx, legacyBucket, in.client()); err != nil {
			return File{}, "", err
		}
	}
	latest := fmt.Sprintf("LATEST_RELEASE_%d", v.Major)
	data, err := bkt.Read(ctx, latest)
	if err != nil {
		return File{}, "", fmt.Errorf("cannot read gs://%s/%s: %v", legacyBucket, latest, err)
	}
	version := strings.TrimSpace(string(data))
	name := "chromedriver_" + plat + ".zip"
	object := version + "/" + name
	link, sum, err := bkt.Locate(ctx, object)
	if err != nil {
		return File{}, "", fmt.Errorf("cannot get gs://%s/%s attrs: %v", legacyBucket, object, err)
	}
	goos, _ := in.platform()
	f := File{URL: link, Name: name, Binary: exe("chromedriver", goos)}
	if len(sum) > 0 {
		f.Hash, f.HashType = hex.EncodeToString(sum), "md5"
	}
	glog.Infof("ChromeDriver %s matches Chrome %s", version, v)
	return f, version, nil
}

var versionRE = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)(?:\.\d+)?`)

// ParseVersion extracts the first dotted version from s, such as the output
// of "chrome --version". Chrome's fourth component is dropped.
func ParseVersion(s string) (semver.Version, error) {
	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return semver.Version{}, fmt.Errorf("no version in %q", s)
	}
	return semver.Parse(m[1] + "." + m[2] + "." + m[3])
}

// DetectChromeVersion runs bin --version. An empty bin is looked up among
// the usual install locations.
func DetectChromeVersion(bin string) (semver.Version, error) {
	if bin == "" {
		p, ok := launcher.LookPath()
		if !ok {
			return semver.Version{}, fmt.Errorf("chrome not found")
		}
		bin = p
	}
	out, err := execCommand(bin, "--version").Output()
	if err != nil {
		return semver.Version{}, fmt.Errorf("%s --version: %v", bin, err)
	}
	return ParseVersion(string(out))
}
