package models

// Sentinel codes stored in the database for CDI word values and metadata
// flags. These mirror the coding scheme used by the lab's historical data
// and must not be renumbered.
const (
	NoData             = -100
	Unknown            = -200
	PossiblyWronglyRec = -300
	EmergencyRec       = -400
	ImpliedFalse       = -500
	ImpliedTrue        = -501
	ExplicitTrue       = 4
	LegacyTrue         = 1
	ExplicitFalse      = 0
	ExplicitNone       = -600
	ExplicitNA         = -700
	ExplicitOther      = -800
	NoExtraCategories  = -900
	ExtraCategories    = -1000
	ElevenPresumedTrue = -3000
)

// Gender sentinels.
const (
	Male        = -2001
	Female      = -2002
	OtherGender = -2003
)

// SnapshotsTable is the table holding snapshot metadata rows.
const SnapshotsTable = "snapshots"

// SnapshotContentTable holds per-word snapshot entries.
const SnapshotContentTable = "snapshot_content"
