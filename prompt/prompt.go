// Package prompt assembles the LLM prompts from the fixed preamble, the
// current clock, and the optional user-preferences file.
package prompt

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Preamble opens every prompt the agent sends.
const Preamble = "You are an AI Agent helping out a user in the role of an administrative assistant.\n\n"

const preferencesHeader = "Here are the user's preferences for how you should help them:\n\n"

// Builder produces prompts. PreferencesFile may name a missing file, in
// which case the preferences section is omitted entirely. Now defaults to
// time.Now and exists for tests.
type Builder struct {
	PreferencesFile string
	Now             func() time.Time
}

// Build concatenates the preamble, the current date/time, the preference
// file contents if present, and the user query. Neither the preference
// file nor the input is escaped; the LLM boundary is trusted as-is.
func (b Builder) Build(userInput string) string {
	now := time.Now()
	if b.Now != nil {
		now = b.Now()
	}

	var sb strings.Builder
	sb.WriteString(Preamble)
	fmt.Fprintf(&sb, "Today's date is: %s. It is %s.\n\n",
		now.Format("2006-01-02"), now.Format("15:04"))

	if b.PreferencesFile != "" {
		if prefs, err := os.ReadFile(b.PreferencesFile); err == nil {
			sb.WriteString(preferencesHeader)
			sb.Write(prefs)
		}
	}

	sb.WriteString("\nUser query:\n")
	sb.WriteString(userInput)
	return sb.String()
}
