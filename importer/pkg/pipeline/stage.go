// Package pipeline runs a data set version import from staged CSVs to a
// completed columnar data file, one stage at a time, persisting every stage
// transition so progress is observable and crash-consistent.
package pipeline

import (
	"context"

	"github.com/google/uuid"
)

// Stage is one state of an import attempt. Transitions are monotonic and are
// written to the metadata store before the stage body runs.
type Stage string

const (
	StageQueued            Stage = "Queued"
	StageCopyingCsvFiles   Stage = "CopyingCsvFiles"
	StageCreatingMappings  Stage = "CreatingMappings"
	StageAutoMapping       Stage = "AutoMapping"
	StageManualMapping     Stage = "ManualMapping"
	StageImportingMetadata Stage = "ImportingMetadata"
	StageImportingData     Stage = "ImportingData"
	StageWritingDataFiles  Stage = "WritingDataFiles"
	StageCompleting        Stage = "Completing"
	StageCompleted         Stage = "Completed"
	StageFailed            Stage = "Failed"
)

// Stages returns the stage sequence for an import. Second-or-later versions
// of a data set go through the mapping flow, where changed dimension options
// are reconciled against the previous version's public identifiers, before
// their metadata is imported.
func Stages(firstVersion bool) []Stage {
	if firstVersion {
		return []Stage{
			StageCopyingCsvFiles,
			StageImportingMetadata,
			StageImportingData,
			StageWritingDataFiles,
			StageCompleting,
		}
	}
	return []Stage{
		StageCopyingCsvFiles,
		StageCreatingMappings,
		StageAutoMapping,
		StageManualMapping,
		StageImportingMetadata,
		StageImportingData,
		StageWritingDataFiles,
		StageCompleting,
	}
}

// Mapper reconciles a new version's dimension options against the previous
// version's public identifiers. The reconciliation itself lives outside this
// pipeline; the stages only drive it.
type Mapper interface {
	// CreateMappings snapshots the old and new dimension option sets.
	CreateMappings(ctx context.Context, versionID uuid.UUID) error
	// ApplyAutoMappings resolves every option that maps unambiguously.
	ApplyAutoMappings(ctx context.Context, versionID uuid.UUID) error
	// AwaitManualMappings blocks until a human has resolved the remainder, or
	// returns immediately when nothing is left to resolve.
	AwaitManualMappings(ctx context.Context, versionID uuid.UUID) error
}
