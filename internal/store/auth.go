package store

// IsApprover reports whether user is one of the task's three designated approvers.
// Comparison is exact and case-sensitive.
func IsApprover(t Task, user string) bool {
	return t.Approver1 == user || t.Approver2 == user || t.Approver3 == user
}
