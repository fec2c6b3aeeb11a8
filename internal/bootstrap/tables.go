package bootstrap

import (
	"context"

	"github.com/DOH-JDJ0303/waphl-data/internal/domain"
	awsinfra "github.com/DOH-JDJ0303/waphl-data/internal/infra/aws"
	"github.com/DOH-JDJ0303/waphl-data/internal/usecase"
)

// gbaTableCommand builds the GBA summary table from the published metadata.
var gbaTableCommand = []string{
	"bash", "-c",
	"git clone https://github.com/DOH-JDJ0303/waphl-data.git && bash waphl-data/waphl-res2tbl/gba/aws-batch-script.sh $BUCKET $KEY",
}

func (a *App) buildTables(ctx context.Context) (*usecase.TableService, error) {
	tc := a.Config.Tables
	clients, err := a.aws(ctx)
	if err != nil {
		return nil, err
	}

	var followUp domain.Dispatcher
	if tc.JobQueue != "" && tc.JobDefinition != "" {
		followUp = awsinfra.NewBatchSubmitter(clients.Batch, awsinfra.BatchJobSpec{
			Queue:        tc.JobQueue,
			Definition:   tc.JobDefinition,
			NameTemplate: "${id}",
			Command:      gbaTableCommand,
			EnvMap:       map[string]string{"BUCKET": "bucket", "KEY": "key"},
		}, a.logger)
	}

	return usecase.NewTableService(usecase.TableSettings{
		Schedule: tc.Schedule,
		Crawler:  tc.Crawler,
		Database: tc.Database,
		Bucket:   tc.Bucket,
		Key:      tc.Key,
	},
		awsinfra.NewCrawlerRunner(clients.Glue, tc.PollInterval, a.logger),
		awsinfra.NewQueryRunner(clients.Athena, tc.WorkGroup, tc.PollInterval, a.logger),
		awsinfra.NewObjects(clients.S3, a.logger),
		followUp,
		a.logger,
	), nil
}
