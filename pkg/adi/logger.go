package adi

import (
	"github.com/sirupsen/logrus"
)

var (
	logger *logrus.Logger = nil
)

func init() {
	logger = logrus.New()
}

// SetLogger replaces the logger used by the package. Selection changes are
// logged at debug level, raw register traffic at trace level.
func SetLogger(loggerInstance *logrus.Logger) {
	logger = loggerInstance
}
