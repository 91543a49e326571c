package export

// Stage is a state of the run state machine.
type Stage string

const (
	StageIdle        Stage = "idle"
	StageWalking     Stage = "walking"
	StageDeciding    Stage = "deciding"
	StageSkipping    Stage = "skipping"
	StageExtracting  Stage = "extracting"
	StageSerializing Stage = "serializing"
	StageWriting     Stage = "writing"
	StageRecording   Stage = "recording"
	StageReporting   Stage = "reporting"
	StageDone        Stage = "done"
)
