package utils

import (
	"github.com/sirupsen/logrus"

	"github.com/stellar/stellar-tenant-control-plane/internal/crashtracker"
)

type GlobalOptionsType struct {
	LogLevel    logrus.Level
	SentryDSN   string
	Environment string
	Version     string
	GitCommit   string
	DatabaseURL string
	// ServiceName identifies this process as the origin of the messages it publishes.
	ServiceName string
}

// Release names the running build, e.g. "0.4.0+1a2b3c4". The commit is omitted when unknown.
func (g GlobalOptionsType) Release() string {
	if g.GitCommit == "" {
		return g.Version
	}
	return g.Version + "+" + g.GitCommit
}

// PopulateCrashTrackerOptions fills in what the crash tracker reports about this process. The Sentry DSN is only
// copied for the Sentry tracker.
func (g GlobalOptionsType) PopulateCrashTrackerOptions(crashTrackerOptions *crashtracker.CrashTrackerOptions) {
	if crashTrackerOptions.CrashTrackerType == crashtracker.CrashTrackerTypeSentry {
		crashTrackerOptions.SentryDSN = g.SentryDSN
	}
	crashTrackerOptions.Environment = g.Environment
	crashTrackerOptions.ServiceName = g.ServiceName
	crashTrackerOptions.Release = g.Release()
}
