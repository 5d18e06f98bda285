// Package artifact saves a screenshot when a scenario step fails.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image/png"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/xgraphics"
	"github.com/golang/glog"
	"github.com/wanmail/uiflow"
	"github.com/wanmail/uiflow/config"
	"google.golang.org/api/option"
)

// maxNameLen bounds each sanitized name component.
const maxNameLen = 80

var unsafeRun = regexp.MustCompile(`[^a-z0-9_-]+`)

// SanitizeName lowercases name and replaces every run of characters outside
// [a-z0-9_-] with one underscore. The result is at most 80 characters.
func SanitizeName(name string) string {
	s := unsafeRun.ReplaceAllString(strings.ToLower(name), "_")
	s = strings.Trim(s, "_")
	if len(s) > maxNameLen {
		s = strings.TrimRight(s[:maxNameLen], "_")
	}
	if s == "" {
		return "unnamed"
	}
	return s
}

// Sink stores artifacts.
type Sink interface {
	// Put stores data as name and returns its location.
	Put(ctx context.Context, name string, data []byte) (string, error)
}

// DirSink writes artifacts into a local directory.
type DirSink struct {
	Dir string
}

// Put implements Sink.
func (d DirSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	if err := os.MkdirAll(d.Dir, 0755); err != nil {
		return "", err
	}
	p := filepath.Join(d.Dir, name)
	if err := os.WriteFile(p, data, 0644); err != nil {
		return "", err
	}
	return p, nil
}

// BucketSink uploads artifacts to a Cloud Storage bucket.
type BucketSink struct {
	Bucket string
	Prefix string

	client    *storage.Client
	newWriter func(ctx context.Context, object string) io.WriteCloser
}

// NewBucketSink opens bucket with the default credentials, or with opts.
func NewBucketSink(ctx context.Context, bucket, prefix string, opts ...option.ClientOption) (*BucketSink, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("cannot create a storage client: %v", err)
	}
	b := &BucketSink{Bucket: bucket, Prefix: prefix, client: client}
	b.newWriter = func(ctx context.Context, object string) io.WriteCloser {
		w := client.Bucket(bucket).Object(object).NewWriter(ctx)
		w.ContentType = "image/png"
		return w
	}
	return b, nil
}

// Put implements Sink.
func (b *BucketSink) Put(ctx context.Context, name string, data []byte) (string, error) {
	object := path.Join(b.Prefix, name)
	w := b.newWriter(ctx, object)
	if _, err := w.Write(data); err != nil {
		w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return fmt.Sprintf("gs://%s/%s", b.Bucket, object), nil
}

// Close releases the storage client.
func (b *BucketSink) Close() error {
	if b.client == nil {
		return nil
	}
	return b.client.Close()
}

// Capturer takes and stores failure screenshots.
type Capturer struct {
	Sinks []Sink
	// Now stamps artifact names. Nil means time.Now.
	Now func() time.Time
	// Timeout bounds the uploads of one capture. Zero means 30s.
	Timeout time.Duration

	grab func(display string) ([]byte, error)
}

// New returns a Capturer for the configured artifact destinations.
func New(ctx context.Context, a config.Artifacts) (*Capturer, error) {
	c := &Capturer{}
	if a.Dir != "" {
		c.Sinks = append(c.Sinks, DirSink{Dir: a.Dir})
	}
	if a.Bucket != "" {
		b, err := NewBucketSink(ctx, a.Bucket, a.Prefix)
		if err != nil {
			return nil, err
		}
		c.Sinks = append(c.Sinks, b)
	}
	return c, nil
}

// Close releases the sinks that hold connections.
func (c *Capturer) Close() error {
	var errs []error
	for _, s := range c.Sinks {
		if cl, ok := s.(io.Closer); ok {
			if err := cl.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

// Name returns the artifact name for a step failing at t.
func Name(t time.Time, scenario, step string) string {
	return fmt.Sprintf("%s_%s_%s.png", t.Format("20060102-150405"), SanitizeName(scenario), SanitizeName(step))
}

// Capture screenshots s and stores the image in every sink. It returns the
// first stored location. When the browser cannot take the screenshot and
// renders into a local frame buffer, the X root window is grabbed instead.
func (c *Capturer) Capture(s *uiflow.Session, scenario, step string) (string, error) {
	if len(c.Sinks) == 0 {
		return "", errors.New("no artifact sinks configured")
	}
	data, err := s.Screenshot()
	if err != nil {
		if s.Display() == "" {
			return "", fmt.Errorf("screenshot: %v", err)
		}
		glog.Warningf("browser screenshot failed, grabbing display :%s: %v", s.Display(), err)
		grab := c.grab
		if grab == nil {
			grab = grabDisplay
		}
		if data, err = grab(s.Display()); err != nil {
			return "", fmt.Errorf("grabbing display :%s: %v", s.Display(), err)
		}
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	timeout := c.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	name := Name(now(), scenario, step)
	var first string
	var errs []error
	for _, sink := range c.Sinks {
		loc, err := sink.Put(ctx, name, data)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		glog.Infof("saved screenshot %s", loc)
		if first == "" {
			first = loc
		}
	}
	return first, errors.Join(errs...)
}

// grabDisplay encodes the root window of an X display as PNG.
func grabDisplay(display string) ([]byte, error) {
	X, err := xgbutil.NewConnDisplay(":" + display)
	if err != nil {
		return nil, err
	}
	defer X.Conn().Close()
	img, err := xgraphics.NewDrawable(X, xproto.Drawable(X.RootWin()))
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
