package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
	"go.uber.org/zap"

	"github.com/simplesurance/mergekeeper/internal/cfg"
	"github.com/simplesurance/mergekeeper/internal/hg"
	"github.com/simplesurance/mergekeeper/internal/ledger"
	"github.com/simplesurance/mergekeeper/internal/logfields"
	"github.com/simplesurance/mergekeeper/internal/retryer"
	"github.com/simplesurance/mergekeeper/internal/tracker"
	"github.com/simplesurance/mergekeeper/internal/tracker/fogbugz"
	"github.com/simplesurance/mergekeeper/internal/tracker/jira"
	"github.com/simplesurance/mergekeeper/internal/workflow"
	"github.com/simplesurance/mergekeeper/internal/workspace"
)

// annotationNoConfig marks commands that run without loading the
// configuration file.
const annotationNoConfig = "mergekeeper/no-config"

// caseLookupRetryTimeout is how long build steps retry transient issue
// tracker errors.
const caseLookupRetryTimeout = 5 * time.Minute

var config *cfg.Config

func mustLoadConfig() {
	// we use exitOnErr in this function instead of logger.Fatal() because
	// the logger is not initialized yet
	var err error

	config, err = cfg.LoadFile(args.ConfigFile)
	exitOnErr(fmt.Sprintf("could not load configuration file: %s", args.ConfigFile), err)
}

// workDir returns the directory of the working copy the command operates on.
func workDir() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	return config.Repository.Resolve(args.Repo, filepath.Join(cwd, args.RepoSubdir))
}

func newHgClient(dir string) *hg.Client {
	return hg.New(
		dir,
		hg.WithExecutable(config.HgExecutable),
		hg.WithCommandTimeout(config.HgCommandTimeout),
	)
}

func newVCS(dir string) workflow.VCS {
	clt := newHgClient(dir)

	if args.DryRun {
		logger.Info("dry-run enabled, changes are not committed and pushed", logfields.Event("dry_run_enabled"))
		return hg.NewDryClient(clt)
	}

	return clt
}

// newTrackerClient returns a client for the configured issue tracker.
func newTrackerClient() (tracker.CaseLookup, error) {
	tcfg := &config.Tracker

	switch tcfg.Backend {
	case cfg.TrackerBackendFogbugz:
		clt, err := fogbugz.New(fogbugz.Config{
			URL:                 tcfg.URL,
			Token:               tcfg.Token,
			FeatureBranchField:  tcfg.FeatureBranchField,
			OriginalBranchField: tcfg.OriginalBranchField,
			TargetBranchField:   tcfg.TargetBranchField,
			DefaultAssignee:     tcfg.DefaultAssignee,
		})
		if err != nil {
			return nil, err
		}

		return clt, nil

	case cfg.TrackerBackendJira:
		clt, err := jira.New(jira.Config{
			URL:                 tcfg.URL,
			Project:             tcfg.Project,
			Username:            tcfg.Username,
			Token:               tcfg.Token,
			FeatureBranchField:  tcfg.FeatureBranchField,
			OriginalBranchField: tcfg.OriginalBranchField,
			TargetBranchField:   tcfg.TargetBranchField,
			DefaultAssignee:     tcfg.DefaultAssignee,
			Cloud:               tcfg.Cloud,
		})
		if err != nil {
			return nil, err
		}

		return clt, nil

	default:
		return nil, fmt.Errorf("unsupported tracker backend: %q", tcfg.Backend)
	}
}

// newCaseLookup returns a client for the configured issue tracker that
// retries transient errors.
func newCaseLookup() (tracker.CaseLookup, error) {
	clt, err := newTrackerClient()
	if err != nil {
		return nil, err
	}

	logger.Debug(
		"issue tracker client initialized",
		logfields.Event("tracker_client_initialized"),
		logfields.EventProvider(config.Tracker.Backend),
		zap.String("tracker_url", config.Tracker.URL),
		zap.String("tracker_token", hide(config.Tracker.Token)),
	)

	return tracker.NewRetryingLookup(clt, retryer.New(retryer.WithTimeout(caseLookupRetryTimeout))), nil
}

func newStore() (ledger.Store, error) {
	switch config.Store.Backend {
	case cfg.StoreBackendMemory:
		logger.Warn(
			"using in-memory store, the merge ledger is lost when the command terminates",
			logfields.Event("memory_store_used"),
		)

		return ledger.NewMemoryStore(), nil

	case cfg.StoreBackendRedis:
		return ledger.NewRedisStore(ledger.RedisConfig{
			Addr:     config.Store.RedisAddr,
			Password: config.Store.RedisPassword,
			DB:       config.Store.RedisDB,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported store backend: %q", config.Store.Backend)
	}
}

// openLedger returns the ledger of the build, the returned function closes
// the underlying store.
func openLedger(buildID string) (*ledger.Ledger, func(), error) {
	store, err := newStore()
	if err != nil {
		return nil, nil, err
	}

	l, err := ledger.NewLedger(store, buildID)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}

	closeFn := func() {
		if err := store.Close(); err != nil {
			logger.Warn("closing store failed", logfields.Event("store_close_failed"), zap.Error(err))
		}
	}

	return l, closeFn, nil
}

// withWorkspaceLock runs fn while holding the exclusive lock of the working
// copy in dir.
func withWorkspaceLock(ctx context.Context, dir string, fn func() error) error {
	lock, err := workspace.Acquire(ctx, dir, config.Workspace.LockTimeout)
	if err != nil {
		return err
	}

	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn("releasing workspace lock failed", logfields.Event("workspace_unlock_failed"), zap.Error(err))
		}
	}()

	return fn()
}

// pushMetrics sends the metrics of a one-shot command to the configured
// Pushgateway.
func pushMetrics(command string) {
	if config == nil || config.Metrics.PushgatewayURL == "" {
		return
	}

	reg := prometheus.NewRegistry()
	collectors := append(hg.Collectors(), workflow.Collectors()...)
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			var alreadyRegErr prometheus.AlreadyRegisteredError
			if !errors.As(err, &alreadyRegErr) {
				logger.Warn("registering metric collector failed", logfields.Event("metrics_register_failed"), zap.Error(err))
			}
		}
	}

	err := push.New(config.Metrics.PushgatewayURL, appName).
		Gatherer(reg).
		Grouping("command", command).
		Push()
	if err != nil {
		logger.Warn(
			"pushing metrics to pushgateway failed",
			logfields.Event("metrics_push_failed"),
			zap.String("pushgateway_url", config.Metrics.PushgatewayURL),
			zap.Error(err),
		)

		return
	}

	logger.Debug("metrics pushed", logfields.Event("metrics_pushed"))
}
