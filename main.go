package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/stellar/go-stellar-sdk/support/log"

	"github.com/stellar/stellar-tenant-control-plane/cmd"
	cmdUtils "github.com/stellar/stellar-tenant-control-plane/cmd/utils"
)

const Version = "0.4.0"

// GitCommit is set at build time with -ldflags "-X main.GitCommit=$GIT_COMMIT".
var GitCommit string

func main() {
	// Trace until the log-level option is parsed, so the env file and option parsing are logged too.
	log.DefaultLogger = log.New()
	log.DefaultLogger.SetLevel(logrus.TraceLevel)

	envFile, err := cmdUtils.LoadEnvFile(os.Args[1:])
	if err != nil {
		log.Fatalf("loading env file: %v", err)
	}
	if envFile != "" {
		log.Debugf("loaded env file %s", envFile)
	}

	if err = cmd.SetupCLI(Version, GitCommit).Execute(); err != nil {
		log.Fatalf("executing command: %v", err)
	}
}
