package entity

// Actor identifies the authenticated caller of a service operation.
type Actor struct {
	UserID int64
	Role   Role
}

// System is the actor used by background jobs and the CLI.
var System = Actor{Role: RoleAdmin}
