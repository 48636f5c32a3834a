package authz

import "fmt"

// Reason is the typed cause of a denial, surfaced to the caller for audit
// and accurate error messages; never downgraded to a bare boolean.
type Reason string

const (
	ReasonNotInSchool  Reason = "NotInSchool"
	ReasonNoAssignment Reason = "NoAssignment"
	ReasonExamLocked   Reason = "ExamLocked"
	ReasonWrongRole    Reason = "WrongRole"
)

// Error is a denial from the authorization engine.
type Error struct {
	Gate   Gate
	Reason Reason
}

func (e Error) Error() string {
	return fmt.Sprintf("permission denied (%s): %s", e.Gate, e.Reason)
}

func deny(gate Gate, reason Reason) error {
	return Error{Gate: gate, Reason: reason}
}

// IsDenial reports whether err is an authorization denial and, if so,
// returns it.
func IsDenial(err error) (Error, bool) {
	authErr, ok := err.(Error)
	return authErr, ok
}
