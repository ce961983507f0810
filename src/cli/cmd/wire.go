package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/sofmeright/kfreight/src/artifact"
	"github.com/sofmeright/kfreight/src/buildgate"
	"github.com/sofmeright/kfreight/src/config"
	"github.com/sofmeright/kfreight/src/lease"
	"github.com/sofmeright/kfreight/src/sources"
)

// newStore builds the configured artifact store, wrapped with retry for
// transient transport faults.
func newStore(cfg *config.Config) (artifact.Store, error) {
	var inner artifact.Store
	switch cfg.Store.Backend {
	case "http":
		s := artifact.NewHTTPStore(cfg.Store.HTTP.BaseURL)
		s.AckToken = cfg.Store.HTTP.AckToken
		inner = s
	case "s3":
		s, err := artifact.NewS3Store(artifact.S3Options{
			Endpoint:  cfg.Store.S3.Endpoint,
			AccessKey: os.Getenv("KF_S3_ACCESS_KEY"),
			SecretKey: os.Getenv("KF_S3_SECRET_KEY"),
			Bucket:    cfg.Store.S3.Bucket,
			UseSSL:    cfg.Store.S3.UseSSL,
		})
		if err != nil {
			return nil, err
		}
		inner = s
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}

	return &artifact.Retrying{
		Store:    inner,
		Attempts: cfg.Store.Retries,
		Backoff:  time.Duration(cfg.Store.BackoffMS) * time.Millisecond,
	}, nil
}

// newLocker builds the configured build lease backend.
func newLocker(cfg *config.Config) (lease.Locker, error) {
	switch cfg.Lease.Backend {
	case "none":
		return lease.Nop{}, nil
	case "local":
		return lease.NewLocal(), nil
	case "etcd":
		return lease.NewEtcd(cfg.Lease.Endpoints, time.Duration(cfg.Lease.TTLSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unknown lease backend %q", cfg.Lease.Backend)
	}
}

// newWorkspace loads the source manifest and prepares the workspace.
func newWorkspace(cfg *config.Config) (*sources.Workspace, error) {
	manifest, err := sources.LoadManifest(cfg.Sources.Manifest)
	if err != nil {
		return nil, err
	}
	return sources.NewWorkspace(manifest, cfg.Sources.Workspace), nil
}

// newGate assembles the build gate from configured components.
func newGate(cfg *config.Config) (*buildgate.Gate, error) {
	store, err := newStore(cfg)
	if err != nil {
		return nil, err
	}
	locker, err := newLocker(cfg)
	if err != nil {
		return nil, err
	}
	ws, err := newWorkspace(cfg)
	if err != nil {
		return nil, err
	}
	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}

	builder := buildgate.NewExecBuilder(verbose)
	builder.CrossCompile = cfg.Build.CrossCompile
	if !verbose {
		builder.Stdout = nil
		builder.Stderr = nil
	}

	return &buildgate.Gate{
		Store:    store,
		Sources:  ws,
		Resolver: resolver,
		Builder:  builder,
		Locker:   locker,
		Jobs:     cfg.Build.Jobs,
		Verbose:  verbose,
		Stderr:   os.Stderr,
	}, nil
}

// matrixKeys expands the configured matrix into artifact keys, versions
// outermost so log output groups by kernel.
func matrixKeys(cfg *config.Config) []artifact.Key {
	keys := make([]artifact.Key, 0, len(cfg.Matrix.Versions)*len(cfg.Matrix.Arches))
	for _, v := range cfg.Matrix.Versions {
		for _, a := range cfg.Matrix.Arches {
			keys = append(keys, artifact.Key{Version: v, Arch: a})
		}
	}
	return keys
}
