// Copyright 2024 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matrixorigin/tntconnector/pkg/common/moerr"
	"github.com/matrixorigin/tntconnector/pkg/connector"
	"github.com/matrixorigin/tntconnector/pkg/logutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()
	if err := rootCommand().ExecuteContext(ctx); err != nil {
		logutil.Error("tnt-loader failed",
			zap.Uint16("code", moerr.Code(err)),
			zap.Error(err))
		_ = logutil.Sync()
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "tnt-loader",
		Short:        "Bulk write rows into a tarantool cartridge cluster",
		Long:         "Discover the crud routers of a cartridge cluster and upsert or delete rows read from a csv file or a mysql protocol query",
		SilenceUsage: true,
	}
	cmd.AddCommand(
		loadCommand(connector.ModeUpsert, "Replace full tuples, columns must match the space format"),
		loadCommand(connector.ModeDelete, "Delete by primary key, columns must match the primary index parts"),
	)
	return cmd
}
