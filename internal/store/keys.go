package store

import (
	"fmt"
	"strconv"
	"strings"
)

// Key layout. Every key the pipeline owns lives under RootPrefix so the
// administrative clear can enumerate them with one scan.
//
//	caption:line:<session>:<speaker>:<baseTimestamp>
const (
	RootPrefix = "caption:"
	linePrefix = RootPrefix + "line:"
)

// LineKey builds the stable key for a merged line.
func LineKey(sessionID, speakerID string, baseTimestamp int64) string {
	return fmt.Sprintf("%s%s:%s:%d", linePrefix, sessionID, speakerID, baseTimestamp)
}

// SessionPrefix returns the prefix covering all line keys of one session.
func SessionPrefix(sessionID string) string {
	return linePrefix + sessionID + ":"
}

// ParseLineKey splits a line key into its parts. Speaker ids may not
// contain the delimiter; session ids are taken as-is from the key head.
func ParseLineKey(key string) (sessionID, speakerID string, baseTimestamp int64, err error) {
	rest, ok := strings.CutPrefix(key, linePrefix)
	if !ok {
		return "", "", 0, fmt.Errorf("not a line key: %q", key)
	}
	parts := strings.Split(rest, ":")
	if len(parts) != 3 {
		return "", "", 0, fmt.Errorf("malformed line key: %q", key)
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", "", 0, fmt.Errorf("malformed line key timestamp: %q", key)
	}
	return parts[0], parts[1], ts, nil
}
