package pipeline_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/statshare/importer/importer/pkg/pipeline"
)

func TestImporter_Pipeline_Stages(t *testing.T) {
	t.Parallel()

	require.Equal(t, []pipeline.Stage{
		pipeline.StageCopyingCsvFiles,
		pipeline.StageImportingMetadata,
		pipeline.StageImportingData,
		pipeline.StageWritingDataFiles,
		pipeline.StageCompleting,
	}, pipeline.Stages(true))

	require.Equal(t, []pipeline.Stage{
		pipeline.StageCopyingCsvFiles,
		pipeline.StageCreatingMappings,
		pipeline.StageAutoMapping,
		pipeline.StageManualMapping,
		pipeline.StageImportingMetadata,
		pipeline.StageImportingData,
		pipeline.StageWritingDataFiles,
		pipeline.StageCompleting,
	}, pipeline.Stages(false))
}

func TestImporter_Pipeline_LinkCountError(t *testing.T) {
	t.Parallel()

	err := &pipeline.LinkCountError{Dimension: "filter/sex", Expected: 3, Actual: 2}
	require.Equal(t, `dimension "filter/sex": expected 3 option links, found 2`, err.Error())
}
