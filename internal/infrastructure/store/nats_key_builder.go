// Copyright The Stack Master Tool Authors.
// SPDX-License-Identifier: MIT

package store

import "strings"

// codeIndexPrefix namespaces meeting-code index keys inside the meetings
// bucket so they never collide with meeting UIDs.
const codeIndexPrefix = "code/"

// ParticipantKey builds the KV key for a participant scoped to its meeting.
func ParticipantKey(meetingUID, participantUID string) string {
	return meetingUID + "/" + participantUID
}

// CodeIndexKey builds the index key that maps a meeting code to its UID.
// Codes are indexed uppercase so lookups are case-insensitive.
func CodeIndexKey(code string) string {
	return codeIndexPrefix + strings.ToUpper(code)
}

// IsCodeIndexKey reports whether a key belongs to the meeting-code index.
func IsCodeIndexKey(key string) bool {
	return strings.HasPrefix(key, codeIndexPrefix)
}
