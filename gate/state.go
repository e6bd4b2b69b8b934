package gate

import "github.com/tablegate/tablegate/gate/types"

// State is a pipeline controller state. Stage states execute a stage; REPORT
// and DONE are terminal bookkeeping.
type State string

const (
	StateInit         State = "INIT"
	StatePreflight    State = "PREFLIGHT"
	StateQuality      State = "QUALITY"
	StateRowVolume    State = "ROW_VOLUME"
	StateSchemaReview State = "SCHEMA_REVIEW"
	StateGenerate     State = "GENERATE"
	StateValidate     State = "VALIDATE"
	StateReconcile    State = "RECONCILE"
	StateReclassify   State = "RECLASSIFY"
	StateReport       State = "REPORT"
	StateDone         State = "DONE"
)

// nextState is the happy-path stage order.
var nextState = map[State]State{
	StateInit:         StatePreflight,
	StatePreflight:    StateQuality,
	StateQuality:      StateRowVolume,
	StateRowVolume:    StateSchemaReview,
	StateSchemaReview: StateGenerate,
	StateGenerate:     StateValidate,
	StateValidate:     StateReconcile,
	StateReconcile:    StateReclassify,
	StateReclassify:   StateReport,
	StateReport:       StateDone,
}

// transition is the single abort chokepoint: a blocking failure from any
// stage goes straight to REPORT; everything else advances in order.
func transition(state State, res types.StageResult) State {
	if res.Blocking() {
		return StateReport
	}
	return nextState[state]
}
