// Package config loads zipline's optional per-project and per-destination tuning settings from a
// ".zipline" ini file, found by walking up the directory tree from the current working directory.
package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/go-ini/ini"
)

// Loader can be used for loading .zipline configuration as well as overridden with default settings.
type Loader struct {
	// Profile is the AWS profile to use, taking precedence over bucket-based AWS profile setting.
	Profile string

	cfg           *ini.File
	s3clientCache sync.Map
	sectionCache  sync.Map
}

// Load will traverse the directory hierarchy upwards to find the first ".zipline" file available and load its
// contents into the Loader.
//
// The path of the .zipline file is returned.
func (l *Loader) Load(ctx context.Context) (string, error) {
	var (
		path        = filepath.Join(".", ".zipline")
		fi          os.FileInfo
		err         error
		cur, parent string
	)

	if cur, err = os.Getwd(); err != nil {
		return "", err
	}

	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
		}

		if fi, err = os.Stat(path); err == nil && !fi.IsDir() {
			break
		}

		// a ".zipline" directory is not a config file, so keep walking upwards past it.
		if err == nil || os.IsNotExist(err) {
			parent = filepath.Dir(cur)

			if parent == cur || parent == "." || parent == "/" {
				return "", nil
			}

			path = filepath.Join(parent, ".zipline")
			cur = parent
			continue
		}

		return "", err
	}

	l.cfg, err = ini.Load(path)
	if err != nil {
		l.cfg = ini.Empty()
		return path, err
	}

	return path, nil
}

// LoadProfile is a convenient method to set Loader.Profile then call Load.
func (l *Loader) LoadProfile(ctx context.Context, profile string) (string, error) {
	l.Profile = profile
	return l.Load(ctx)
}

// LoadFile loads configuration from the given explicit path instead of traversing the directory
// hierarchy for a ".zipline" file, for the CLI's own --config flag.
func (l *Loader) LoadFile(path string) error {
	cfg, err := ini.Load(path)
	if err != nil {
		return err
	}
	l.cfg = cfg
	return nil
}

// DefaultLoader is the default Loader instance for package-level methods.
var DefaultLoader = &Loader{cfg: ini.Empty()}

// Load calls Loader.Load on the DefaultLoader instance.
func Load(ctx context.Context) (string, error) {
	return DefaultLoader.Load(ctx)
}

// LoadProfile calls Loader.LoadProfile on the DefaultLoader instance.
func LoadProfile(ctx context.Context, profile string) (string, error) {
	return DefaultLoader.LoadProfile(ctx, profile)
}

// PipelineConfig contains tuning knobs for the Parallel Merger and Intermediate Zipper, read from
// the "[pipeline]" section.
type PipelineConfig struct {
	ChunkSize      int
	InFlightChunks int
	// SpoolThresholdBytes is read from "spool-threshold-bytes" but not applied anywhere: the
	// zipper package always uses its own spool thresholds.
	SpoolThresholdBytes int
}

// ForPipeline returns the pipeline tuning configuration, falling back to the package defaults for
// any key that is absent or zero.
func (l *Loader) ForPipeline() (c PipelineConfig) {
	if cache, ok := l.sectionCache.Load("pipeline"); ok {
		return cache.(PipelineConfig)
	}

	if l.cfg == nil {
		return
	}

	sec, err := l.cfg.GetSection("pipeline")
	if err == nil {
		c.ChunkSize = sec.Key("chunk-size").MustInt(0)
		c.InFlightChunks = sec.Key("in-flight-chunks").MustInt(0)
		c.SpoolThresholdBytes = sec.Key("spool-threshold-bytes").MustInt(0)
	}

	l.sectionCache.Store("pipeline", c)
	return
}

// ForPipeline calls Loader.ForPipeline on the DefaultLoader instance.
func ForPipeline() PipelineConfig {
	return DefaultLoader.ForPipeline()
}

// DestinationConfig contains configuration settings for a specific S3 destination bucket, read
// from the "[s3://bucket]" section.
type DestinationConfig struct {
	Bucket              string
	AWSProfile          string
	ExpectedBucketOwner *string
	StorageClass        types.StorageClass
}

// ForBucket returns the destination configuration for bucket, reading from l's own loaded config
// rather than any package-level global.
func (l *Loader) ForBucket(bucket string) (c DestinationConfig) {
	if cache, ok := l.sectionCache.Load("s3://" + bucket); ok {
		return cache.(DestinationConfig)
	}

	if l.cfg == nil {
		return c
	}

	sec, err := l.cfg.GetSection("s3://" + bucket)
	if err != nil {
		return c
	}

	c.Bucket = bucket
	c.AWSProfile = sec.Key("aws-profile").Value()
	if k := sec.Key("expected-bucket-owner"); k != nil && k.Value() != "" {
		c.ExpectedBucketOwner = aws.String(k.Value())
	}
	if k := sec.Key("storage-class"); k != nil && k.Value() != "" {
		c.StorageClass = types.StorageClass(k.Value())
	}

	l.sectionCache.Store("s3://"+bucket, c)
	return
}

// ForBucket calls Loader.ForBucket on the DefaultLoader instance.
func ForBucket(bucket string) DestinationConfig {
	return DefaultLoader.ForBucket(bucket)
}
