// Package rbac implements the ordered permission-level lattice and
// RoleTemplate resolution the gateway layers on top of the fine-grained,
// resource/action permission engine in internal/repo/rbac. Where that
// package answers "can this user do X on Y", this package answers "what is
// this role template's effective level once inheritance is resolved".
package rbac

import "fmt"

// Level is one rung of the gateway's ordered permission ladder. Every level
// implies every level below it.
type Level int

const (
	LevelNone Level = iota
	LevelRead
	LevelWrite
	LevelCreate
	LevelDelete
	LevelAdmin
)

var levelNames = map[Level]string{
	LevelNone:   "NONE",
	LevelRead:   "READ",
	LevelWrite:  "WRITE",
	LevelCreate: "CREATE",
	LevelDelete: "DELETE",
	LevelAdmin:  "ADMIN",
}

var namesToLevel = map[string]Level{
	"NONE":   LevelNone,
	"READ":   LevelRead,
	"WRITE":  LevelWrite,
	"CREATE": LevelCreate,
	"DELETE": LevelDelete,
	"ADMIN":  LevelAdmin,
}

func (l Level) String() string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return "UNKNOWN"
}

// ParseLevel converts a RoleTemplate.Level string into a Level, rejecting
// anything outside the closed NONE..ADMIN set.
func ParseLevel(s string) (Level, error) {
	l, ok := namesToLevel[s]
	if !ok {
		return LevelNone, fmt.Errorf("rbac: unknown permission level %q", s)
	}
	return l, nil
}

// Satisfies reports whether l meets or exceeds the required level.
func (l Level) Satisfies(required Level) bool {
	return l >= required
}

// Max returns the higher of two levels.
func Max(a, b Level) Level {
	if a > b {
		return a
	}
	return b
}
