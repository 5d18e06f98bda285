package uiflow

import (
	"github.com/golang/glog"
	"github.com/tebeka/selenium"
)

var debugFlag = false

// SetDebug turns on poll-level logging in this package and wire-level logging
// in the WebDriver client.
func SetDebug(debug bool) {
	debugFlag = debug
	selenium.SetDebug(debug)
}

func debugLog(format string, args ...interface{}) {
	if !debugFlag {
		glog.V(2).Infof(format, args...)
		return
	}
	glog.Infof(format, args...)
}
