package model

import "strings"

type Role string

const (
	RoleTutor   Role = "TUTOR"
	RoleStudent Role = "STUDENT"
	RoleSystem  Role = "SYSTEM"
)

// SystemActorID identifies transitions made by the engine itself.
const SystemActorID = "system"

// Actor is the already-authenticated caller as resolved by the gateway.
type Actor struct {
	ID   string `json:"id"`
	Role Role   `json:"role"`
}

func SystemActor() Actor {
	return Actor{ID: SystemActorID, Role: RoleSystem}
}

func ParseRole(s string) (Role, bool) {
	role := Role(strings.ToUpper(strings.TrimSpace(s)))
	switch role {
	case RoleTutor, RoleStudent, RoleSystem:
		return role, true
	}
	return "", false
}
