package exam

import "github.com/pkg/errors"

var (
	ErrNotFound               = errors.New("not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrDuplicateAttempt       = errors.New("attempt already exists for this exam and student")
	ErrScoreOutOfRange        = errors.New("score out of range")
	// ErrConflict means the attempt's status changed between read and write.
	ErrConflict = errors.New("attempt modified concurrently")
	// ErrExamLocked means an exam with attempts was redefined in a way that
	// would change how those attempts were scored.
	ErrExamLocked = errors.New("exam is locked by existing attempts")
)
