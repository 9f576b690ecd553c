package saga

// StepState is the lifecycle state of a step inside one saga run.
type StepState int

const (
	INIT StepState = iota
	RUN
	DONE
	REJECT
	FAIL
	ROLLBACK
)

func (s StepState) String() string {
	switch s {
	case INIT:
		return "init"
	case RUN:
		return "run"
	case DONE:
		return "done"
	case REJECT:
		return "reject"
	case FAIL:
		return "fail"
	case ROLLBACK:
		return "rollback"
	default:
		return "unknown"
	}
}
