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
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleverdata/s3-uploader/internal/api"
	"github.com/cleverdata/s3-uploader/internal/db"
)

var (
	agentAddr     string
	historyLimit  int
	historyRemote bool
)

func agentClient() *api.Client {
	addr := agentAddr
	if addr == "" {
		addr = fmt.Sprintf("http://127.0.0.1:%d", viper.GetInt("port"))
	}
	return api.NewClient(addr)
}

func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		log.Fatalf("encode: %v", err)
	}
}

func requestContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 10*time.Second)
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Query a running uploader's health endpoint",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := requestContext()
		defer cancel()

		h, err := agentClient().Health(ctx)
		if err != nil {
			log.Fatalf("Agent unreachable: %v", err)
		}
		printJSON(h)
	},
}

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List recordings waiting for their delayed upload",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := requestContext()
		defer cancel()

		p, err := agentClient().Pending(ctx)
		if err != nil {
			log.Fatalf("Agent unreachable: %v", err)
		}
		printJSON(p)
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent upload outcomes",
	Long:  `Reads the upload ledger directly, or asks a running agent with --remote.`,
	Run: func(cmd *cobra.Command, args []string) {
		if historyRemote {
			ctx, cancel := requestContext()
			defer cancel()

			h, err := agentClient().History(ctx, historyLimit)
			if err != nil {
				log.Fatalf("Agent unreachable: %v", err)
			}
			printJSON(h)
			return
		}

		ledger, err := db.Open(viper.GetString("db_path"))
		if err != nil {
			log.Fatalf("Failed to open ledger: %v", err)
		}
		defer ledger.Close()

		recs, err := ledger.Recent(historyLimit)
		if err != nil {
			log.Fatalf("%v", err)
		}
		printJSON(api.History{Count: len(recs), Records: recs})
	},
}

func init() {
	for _, c := range []*cobra.Command{healthCmd, pendingCmd, historyCmd} {
		c.Flags().StringVar(&agentAddr, "addr", "", "agent base URL (default http://127.0.0.1:<port>)")
		rootCmd.AddCommand(c)
	}
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "number of rows to show")
	historyCmd.Flags().BoolVar(&historyRemote, "remote", false, "ask the running agent instead of reading the ledger file")
}
