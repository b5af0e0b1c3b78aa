package main

import (
	"os"
	"strconv"

	"github.com/rs/xid"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/logfields"
)

const defConfigFile = "/etc/mergekeeper/config.toml"

// Environment variables that are set by the CI server and used as default
// values for the build parameters.
const (
	envBuildID     = "BUILD_TAG"
	envCaseID      = "CASE_ID"
	envNodeID      = "NODE_ID"
	envBuildURL    = "BUILD_URL"
	envBuildNumber = "BUILD_NUMBER"
	envBuildResult = "BUILD_RESULT"
	envRepoSubdir  = "REPO_SUBDIR"
)

type arguments struct {
	Verbose    bool
	ConfigFile string
	DryRun     bool
	Repo       string
	RepoSubdir string
}

var args arguments

func registerGlobalFlags(fs *pflag.FlagSet) {
	fs.BoolVarP(&args.Verbose, "verbose", "v", false, "enable verbose logging")
	fs.StringVarP(&args.ConfigFile, "cfg-file", "c", defConfigFile, "path to the configuration file, .yaml and .yml files are parsed as YAML, all others as TOML")
	fs.BoolVar(&args.DryRun, "dry-run", false, "do not commit or push changes")
	fs.StringVar(&args.Repo, "repo", "", "name of the composite repository to operate on")
	fs.StringVar(
		&args.RepoSubdir, "repo-subdir", os.Getenv(envRepoSubdir),
		"directory of the working copy relative to the current directory, used when no repository is configured",
	)
}

func envInt(name string) int {
	val, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return 0
	}

	return val
}

// buildArgs are the parameters of the CI build a command runs for.
type buildArgs struct {
	BuildID string
	CaseID  int
	NodeID  string
}

func (b *buildArgs) registerBuildID(fs *pflag.FlagSet) {
	fs.StringVar(&b.BuildID, "build-id", os.Getenv(envBuildID), "unique id of the build, the merge ledger is stored under this id")
}

func (b *buildArgs) registerCaseID(fs *pflag.FlagSet) {
	fs.IntVar(&b.CaseID, "case", envInt(envCaseID), "id of the issue tracker case the build is for")
}

func (b *buildArgs) registerNodeID(fs *pflag.FlagSet) {
	fs.StringVar(&b.NodeID, "node", os.Getenv(envNodeID), "name of the branch the build is for")
}

// buildID returns the passed build id or generates a random one.
func (b *buildArgs) buildID() string {
	if b.BuildID != "" {
		return b.BuildID
	}

	b.BuildID = xid.New().String()
	logger.Info(
		"no build id was passed, generated a random one",
		logfields.Event("build_id_generated"),
		logfields.BuildID(b.BuildID),
		zap.String("env_var", envBuildID),
	)

	return b.BuildID
}
