// Copyright 2026 CleverData
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/kardianos/service"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleverdata/s3-uploader/internal/api"
	"github.com/cleverdata/s3-uploader/internal/config"
	"github.com/cleverdata/s3-uploader/internal/core"
	"github.com/cleverdata/s3-uploader/internal/db"
	"github.com/cleverdata/s3-uploader/internal/logging"
	"github.com/cleverdata/s3-uploader/internal/store"
	"github.com/cleverdata/s3-uploader/internal/watch"
)

// RunAgent is the entry point for the long-running process. It blocks until
// ctx is cancelled, then drains in-flight work.
func RunAgent(ctx context.Context, cfg *config.Config, logger core.Logger) error {
	core.DebugMode = cfg.Debug
	if cfg.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	remote, err := store.New(ctx, store.Options{
		Bucket:          cfg.Bucket,
		Region:          cfg.Region,
		AccessKeyID:     cfg.AccessKeyID,
		SecretAccessKey: cfg.SecretAccessKey,
		Endpoint:        cfg.Endpoint,
		ForcePathStyle:  cfg.ForcePathStyle,
	})
	if err != nil {
		return err
	}

	ledger, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer ledger.Close()

	fs := afero.NewOsFs()
	liveRoot := core.WatchedRoot{
		Kind:               core.LiveSegments,
		Path:               cfg.HLS.Path,
		Namespace:          cfg.HLS.Namespace,
		Enabled:            cfg.UploadHLS,
		StabilityThreshold: cfg.HLS.StabilityThreshold,
		PollInterval:       cfg.HLS.PollInterval,
	}
	recRoot := core.WatchedRoot{
		Kind:               core.Recordings,
		Path:               cfg.Recordings.Path,
		Namespace:          cfg.Recordings.Namespace,
		Enabled:            cfg.UploadRecordings,
		StabilityThreshold: cfg.Recordings.StabilityThreshold,
		PollInterval:       cfg.Recordings.PollInterval,
		IgnoreInitial:      true,
	}

	var live *core.LivePipeline
	if liveRoot.Enabled {
		live = core.NewLivePipeline(liveRoot, remote, fs, ledger, logger)
	}
	var rec *core.Scheduler
	if recRoot.Enabled {
		rec = core.NewScheduler(recRoot, remote, core.NewRegistry(), core.SchedulerOptions{
			Delay:       cfg.RecordingDelay(),
			DeleteLocal: cfg.DeleteLocal,
			Fs:          fs,
			Ledger:      ledger,
		}, logger)
	}
	engine := core.NewEngine(live, rec, core.EngineOptions{
		ConcurrencyLimit: cfg.ConcurrencyLimit,
		Bucket:           cfg.Bucket,
		RecordingDelay:   cfg.RecordingDelay(),
	}, logger)

	logger.Infof("S3 Uploader %s starting (bucket: %s, region: %s)", Version, remote.Bucket(), cfg.Region)
	logger.Infof("HLS upload: %t, recordings upload: %t, recording delay: %s, delete local: %t",
		cfg.UploadHLS, cfg.UploadRecordings, cfg.RecordingDelay(), cfg.DeleteLocal)

	events := make(chan core.Event, 256)
	var wg sync.WaitGroup
	for _, root := range []core.WatchedRoot{liveRoot, recRoot} {
		if !root.Enabled {
			continue
		}
		w, err := watch.New(root, events, logger)
		if err != nil {
			return fmt.Errorf("failed to watch %s: %w", root.Path, err)
		}
		defer w.Close()

		wg.Add(1)
		go func(root core.WatchedRoot) {
			defer wg.Done()
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Errorf("[%s] Watcher stopped: %v", root.Kind, err)
			}
		}(root)
	}

	server := api.NewServer(engine, ledger, logger)
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := server.ListenAndServe(ctx, cfg.Port); err != nil {
			logger.Errorf("Inspection server failed: %v", err)
		}
	}()

	engine.Run(ctx, events)
	wg.Wait()

	logger.Info("S3 Uploader stopped.")
	return nil
}

// loadRuntime reads the effective config and builds the console/file logger.
func loadRuntime() (*config.Config, *logging.Logger, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, err
	}
	logger := logging.New(logging.Options{
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Debug:      cfg.Debug,
	})
	return cfg, logger, nil
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the uploader in the foreground",
	Long:  `Runs the watchers and upload pipelines directly. Also invoked by the service manager.`,
	Run: func(cmd *cobra.Command, args []string) {
		if service.Interactive() {
			cfg, logger, err := loadRuntime()
			if err != nil {
				log.Fatalf("Invalid configuration: %v", err)
			}
			defer logger.Close()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			if err := RunAgent(ctx, cfg, logger); err != nil {
				logger.Errorf("Startup failed: %v", err)
				os.Exit(1)
			}
			return
		}

		// Under a service manager we MUST call s.Run() so it sees us check in.
		s, err := getService(viper.ConfigFileUsed())
		if err != nil {
			log.Fatalf("Failed to initialize service: %v", err)
		}
		if err := s.Run(); err != nil {
			log.Fatalf("Service exited: %v", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
