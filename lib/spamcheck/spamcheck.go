// Package spamcheck defines the check response shared by spam checkers.
package spamcheck

import (
	"fmt"
	"strings"
)

// Response is a result of a single spam check.
type Response struct {
	Name    string `json:"name"`    // name of the check
	Spam    bool   `json:"spam"`    // true if spam
	Status  int    `json:"status"`  // status code reported by a remote checker, 0 for local checks
	Details string `json:"details"` // details of the check
	Error   error  `json:"-"`       // error message, if any. Do not serialize it
}

func (r *Response) String() string {
	spamOrHam := "ham"
	if r.Spam {
		spamOrHam = "spam"
	}
	if r.Status != 0 {
		return fmt.Sprintf("%s: %s, %s [%d]", r.Name, spamOrHam, r.Details, r.Status)
	}
	return fmt.Sprintf("%s: %s, %s", r.Name, spamOrHam, r.Details)
}

// ChecksToString converts a slice of checks to a string
func ChecksToString(checks []Response) string {
	elems := []string{}
	for _, r := range checks {
		elems = append(elems, "{"+r.String()+"}")
	}
	return fmt.Sprintf("[%s] ", strings.Join(elems, ", "))
}
