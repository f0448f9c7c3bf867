package rbac

const (
	RoleStudent = "student"
	RoleTeacher = "teacher"
	RoleAdmin   = "admin"
)

// RolePermissions is the default policy. "-own" permissions are checked
// together with ownership in the handlers; "-all" lifts that restriction.
var RolePermissions = map[string][]string{
	RoleStudent: {
		"exam:view",
		"attempt:start",
		"attempt:submit",
		"attempt:view-own",
		"grade:view-own",
		"gpa:view-own",
	},
	RoleTeacher: {
		"exam:*",
		"attempt:view-all",
		"attempt:grade",
		"grade:calculate",
		"grade:set",
		"grade:view-all",
		"gpa:view-all",
		"course:manage",
	},
	RoleAdmin: {
		"*", // everything
	},
}

func KnownRole(role string) bool {
	_, ok := RolePermissions[role]
	return ok
}
