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
	"os"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleverdata/s3-uploader/internal/config"
	"github.com/cleverdata/s3-uploader/internal/core"
	"github.com/cleverdata/s3-uploader/internal/logging"
)

const serviceName = "s3-uploader"

// program implements the service.Interface
type program struct {
	cancel  context.CancelFunc
	done    chan struct{}
	fileLog *logging.Logger
}

func (p *program) Start(s service.Service) error {
	svcLogger, err := s.Logger(nil)
	if err != nil {
		return err
	}
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		svcLogger.Errorf("Invalid configuration: %v", err)
		return err
	}

	// The service manager owns the console; log_file still gets its rotated copy.
	var logger core.Logger = svcLogger
	if cfg.LogFile != "" {
		p.fileLog = logging.New(logging.Options{
			File:       cfg.LogFile,
			MaxSizeMB:  cfg.LogMaxSizeMB,
			MaxBackups: cfg.LogMaxBackups,
			Debug:      cfg.Debug,
			FileOnly:   true,
		})
		logger = logging.Tee{svcLogger, p.fileLog}
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go func() {
		defer close(p.done)
		if err := RunAgent(ctx, cfg, logger); err != nil {
			logger.Errorf("Startup failed: %v", err)
			// Let the service manager restart us.
			os.Exit(1)
		}
	}()
	return nil
}

func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()
	select {
	case <-p.done:
	case <-time.After(30 * time.Second):
	}
	if p.fileLog != nil {
		p.fileLog.Close()
	}
	return nil
}

func getService(configPath string) (service.Service, error) {
	args := []string{"run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}

	svcConfig := &service.Config{
		Name:        serviceName,
		DisplayName: "Media S3 Uploader",
		Description: "Mirrors live HLS segments and finished recordings to S3.",
		Arguments:   args,
	}

	prg := &program{}
	return service.New(prg, svcConfig)
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install the uploader as a system service",
	Run: func(cmd *cobra.Command, args []string) {
		// The service re-reads the same file the installer saw.
		configPath := viper.ConfigFileUsed()
		if configPath == "" {
			fmt.Println("Note: no config file found; the service will rely on environment variables.")
		}

		s, err := getService(configPath)
		if err != nil {
			fmt.Printf("Setup failed: %v\n", err)
			return
		}

		// Check if already installed
		status, err := s.Status()
		if err == nil && status != service.StatusUnknown {
			fmt.Println("S3 Uploader is already installed.")
			fmt.Printf("Service is currently %s.\n", statusString(status))
			fmt.Println("Use 's3-uploader restart' to apply config changes, or 's3-uploader uninstall' to remove it.")
			return
		}

		fmt.Println("Installing S3 Uploader service...")
		if err := s.Install(); err != nil {
			fmt.Printf("Failed to install: %v\n", err)
			fmt.Println("Hint: Ensure you are running as root.")
			return
		}
		fmt.Println("Service installed successfully.")

		fmt.Println("Starting service...")
		if err := s.Start(); err != nil {
			fmt.Printf("Failed to start: %v\n", err)
			return
		}
		fmt.Println("Service started.")
	},
}

var uninstallCmd = &cobra.Command{
	Use:   "uninstall",
	Short: "Remove the uploader service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := getService("")
		if err != nil {
			fmt.Println(err)
			return
		}

		// It might not be running.
		_ = s.Stop()

		if err := s.Uninstall(); err != nil {
			fmt.Printf("Failed to uninstall: %v\n", err)
			return
		}
		fmt.Println("Service uninstalled.")
	},
}

// controlCmd builds the start/stop/restart commands, which differ only in verb.
func controlCmd(action, short, doing, done string) *cobra.Command {
	return &cobra.Command{
		Use:   action,
		Short: short,
		Run: func(cmd *cobra.Command, args []string) {
			s, err := getService("")
			if err != nil {
				fmt.Println(err)
				return
			}

			fmt.Printf("%s S3 Uploader service...\n", doing)
			if err := service.Control(s, action); err != nil {
				fmt.Printf("Failed to %s: %v\n", action, err)
				return
			}
			fmt.Printf("Service %s.\n", done)
		},
	}
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the status of the uploader service",
	Run: func(cmd *cobra.Command, args []string) {
		s, err := getService("")
		if err != nil {
			fmt.Println(err)
			return
		}

		status, err := s.Status()
		if err != nil {
			fmt.Printf("Could not get status: %v\n", err)
			return
		}
		fmt.Printf("S3 Uploader Service Status: %s\n", statusString(status))
	},
}

func statusString(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Running"
	case service.StatusStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

func init() {
	rootCmd.AddCommand(installCmd)
	rootCmd.AddCommand(uninstallCmd)
	rootCmd.AddCommand(controlCmd("start", "Start the uploader service", "Starting", "started"))
	rootCmd.AddCommand(controlCmd("stop", "Stop the uploader service", "Stopping", "stopped"))
	rootCmd.AddCommand(controlCmd("restart", "Restart the uploader service", "Restarting", "restarted"))
	rootCmd.AddCommand(statusCmd)
}
