// Copyright 2018 Tamás Demeter-Haludka
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

package main

import (
	"os"

	"github.com/alien-bunny/hutch/lib/log"
	"github.com/spf13/cobra"
)

func main() {
	logger := log.NewProdLogger(os.Stdout)

	rootCmd := &cobra.Command{
		Use:   "hutchctl",
		Short: "hutchctl is a command line helper for Hutch",
	}

	rootCmd.AddCommand(
		createVersionCMD(logger),
		createGenSecretCMD(logger),
		createGenCertCMD(logger),
	)

	rootCmd.Execute()
}
