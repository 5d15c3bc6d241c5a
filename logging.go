package main

import "github.com/sirupsen/logrus"

var log = logrus.StandardLogger().WithField("module", "accessibility")
