package services

import "strings"

// RoomSeparator joins the two participant keys of a room id
const RoomSeparator = "_"

// DeriveRoomID returns the room id shared by two participants. It is symmetric,
// and distinct unordered pairs of valid keys never map to the same id.
func DeriveRoomID(a, b string) (string, error) {
	for _, k := range [...]string{a, b} {
		if k == "" {
			return "", NewValidationError("participant", "must not be empty", k)
		}
		if strings.Contains(k, RoomSeparator) {
			return "", NewValidationError("participant", "must not contain "+RoomSeparator, k)
		}
	}
	if a == b {
		return "", NewValidationError("participant", "cannot open a room with yourself", a)
	}
	if b < a {
		a, b = b, a
	}
	return a + RoomSeparator + b, nil
}
