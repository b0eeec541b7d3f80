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
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cleverdata/s3-uploader/internal/db"
)

var resetPath string

var resetCmd = &cobra.Command{
	Use:   "reset-history",
	Short: "Clear the upload ledger",
	Long:  `Clears the local SQLite ledger of upload outcomes. This only affects what 'history' reports; it never touches the bucket.`,
	Run: func(cmd *cobra.Command, args []string) {
		ledger, err := db.Open(viper.GetString("db_path"))
		if err != nil {
			log.Fatalf("Failed to open ledger: %v", err)
		}
		defer ledger.Close()

		if resetPath != "" {
			fmt.Printf("Clearing history for: %s\n", resetPath)
		} else {
			fmt.Println("WARNING: Clearing the ENTIRE upload history.")
		}

		n, err := ledger.Reset(resetPath)
		if err != nil {
			log.Fatalf("%v", err)
		}
		log.Printf("History reset complete (%d rows removed).", n)
	},
}

func init() {
	resetCmd.Flags().StringVarP(&resetPath, "path", "p", "", "Specific local file path to clear from history")
	rootCmd.AddCommand(resetCmd)
}
