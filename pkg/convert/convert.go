// Copyright (c) 2026 Whip Helmets. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package convert provides fault-tolerant parsing of query string values.

Malformed input falls back to a default instead of failing the request. Do
not use it where a malformed value must be reported to the client.
*/
package convert

import "strconv"

// ToIntD converts str to an int, returning def when str is empty or malformed.
func ToIntD(str string, def int) int {
	if str == "" {
		return def
	}
	if v, err := strconv.Atoi(str); err == nil {
		return v
	}
	return def
}

// ToBool parses "true", "1", "false", "0" and the other [strconv.ParseBool]
// spellings. Empty and malformed values are false.
func ToBool(s string) bool {
	v, _ := strconv.ParseBool(s)
	return v
}
