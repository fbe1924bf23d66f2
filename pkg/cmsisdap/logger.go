package cmsisdap

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

func init() {
	logger = logrus.New()
}

// SetLogger replaces the logger used by the package.
func SetLogger(loggerInstance *logrus.Logger) {
	logger = loggerInstance
}
