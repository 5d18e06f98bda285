package uiflow

import (
	"encoding/json"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/mailru/easyjson"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/log"
)

// PerformanceLog marks the session as having Chrome's performance log
// enabled, which DocumentStatus reads.
func PerformanceLog() SessionOption {
	return func(s *Session) {
		s.doc.enabled = true
	}
}

// documentStatus remembers the latest main-frame document response seen in
// the performance log. Reading the log drains it, so the result is cached
// to keep repeated evaluations stable.
type documentStatus struct {
	enabled bool

	mu        sync.Mutex
	mainFrame cdp.FrameID
	seen      bool
	status    int64
	url       string
}

// perfEntry is the envelope ChromeDriver wraps around every DevTools event
// in the performance log.
type perfEntry struct {
	Message struct {
		Method string          `json:"method"`
		Params json.RawMessage `json:"params"`
	} `json:"message"`
}

func (d *documentStatus) consume(msgs []log.Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, m := range msgs {
		var e perfEntry
		if err := json.Unmarshal([]byte(m.Message), &e); err != nil {
			debugLog("performance log entry: %v", err)
			continue
		}
		switch e.Message.Method {
		case "Page.frameNavigated":
			var ev page.EventFrameNavigated
			if err := easyjson.Unmarshal(e.Message.Params, &ev); err != nil || ev.Frame == nil {
				continue
			}
			if ev.Frame.ParentID == "" {
				d.mainFrame = ev.Frame.ID
			}
		case "Network.responseReceived":
			var ev network.EventResponseReceived
			if err := easyjson.Unmarshal(e.Message.Params, &ev); err != nil || ev.Response == nil {
				continue
			}
			if ev.Type != network.ResourceTypeDocument {
				continue
			}
			if d.mainFrame != "" && ev.FrameID != d.mainFrame {
				continue
			}
			if d.mainFrame == "" && string(ev.RequestID) != string(ev.LoaderID) {
				continue
			}
			d.seen = true
			d.status = ev.Response.Status
			d.url = ev.Response.URL
		}
	}
}

// DocumentStatus drains the performance log and returns the HTTP status and
// URL of the latest main document response. ok is false when no document
// response has been observed or the performance log is not enabled.
func (s *Session) DocumentStatus() (status int64, url string, ok bool, err error) {
	if !s.doc.enabled {
		return 0, "", false, nil
	}
	wd, err := s.Driver()
	if err != nil {
		return 0, "", false, err
	}
	msgs, err := wd.Log(log.Performance)
	if err != nil {
		return 0, "", false, err
	}
	s.doc.consume(msgs)

	s.doc.mu.Lock()
	defer s.doc.mu.Unlock()
	return s.doc.status, s.doc.url, s.doc.seen, nil
}

// DocumentStatusOK is a gate that fails while the latest main document
// response carries an HTTP error status. It passes when no status is known.
func DocumentStatusOK(s *Session) Signal {
	return func(selenium.WebDriver) (bool, error) {
		status, u, ok, err := s.DocumentStatus()
		if err != nil {
			return false, err
		}
		if ok && status >= 400 {
			debugLog("document %s answered %d", u, status)
			return false, nil
		}
		return true, nil
	}
}
