// Copyright (C) 2026 Openplexity Contributors (maintainers@openplexity.dev)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package ux

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

// HeaderConfig groups the optional parameters of the chat header.
//
// # Description
//
// HeaderConfig lets the header grow new fields without breaking
// existing callers of Header().
//
// # Fields
//
//   - Mode: Search mode name (auto, pro, reasoning, ...).
//   - Model: Model preference. Empty means the mode's default.
//   - Space: Space name or UUID the conversation is scoped to.
//   - Profile: Active query profile. Empty for none.
//   - Incognito: True when the conversation leaves no history upstream.
//   - Authenticated: True when session cookies are configured.
type HeaderConfig struct {
	Mode          string
	Model         string
	Space         string
	Profile       string
	Incognito     bool
	Authenticated bool
}

// SessionStats aggregates metrics from a chat session for display.
//
// # Fields
//
//   - TurnCount: Number of question/answer exchanges
//   - SourceCount: Number of unique sources cited across the session
//   - Duration: Total session duration
type SessionStats struct {
	TurnCount   int
	SourceCount int
	Duration    time.Duration
}

// ChatUI defines the interface for chat user interface operations.
// Implementations handle rendering chat elements to different outputs.
type ChatUI interface {
	// Header displays the chat session header.
	Header(config HeaderConfig)

	// Prompt returns the styled input prompt string.
	Prompt() string

	// Response displays a complete answer (non-streaming path).
	Response(answer string)

	// Sources displays the sources cited by the last answer.
	Sources(sources []SourceInfo)

	// Related displays follow-up query suggestions.
	Related(queries []string)

	// Error displays a chat error. The session continues.
	Error(err error)

	// ContinuityLost warns that follow-up threading is unavailable.
	ContinuityLost(reason string)

	// SessionEnd displays the end-of-session summary.
	SessionEnd(stats SessionStats)
}

// terminalChatUI renders chat elements to a terminal.
type terminalChatUI struct {
	writer      io.Writer
	personality PersonalityLevel
}

var _ ChatUI = (*terminalChatUI)(nil)

// write ignores terminal write errors, there is no meaningful recovery.
func (u *terminalChatUI) write(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(u.writer, format, args...)
}

func (u *terminalChatUI) writeln(args ...interface{}) {
	_, _ = fmt.Fprintln(u.writer, args...)
}

// NewChatUI creates a new terminal-based ChatUI
func NewChatUI() ChatUI {
	return &terminalChatUI{
		writer:      os.Stdout,
		personality: GetPersonality().Level,
	}
}

// NewChatUIWithWriter creates a ChatUI with a custom writer (for testing)
func NewChatUIWithWriter(w io.Writer, personality PersonalityLevel) ChatUI {
	return &terminalChatUI{
		writer:      w,
		personality: personality,
	}
}

func (u *terminalChatUI) Header(config HeaderConfig) {
	switch u.personality {
	case PersonalityMachine:
		u.headerMachine(config)
	case PersonalityMinimal:
		u.headerMinimal(config)
	default:
		u.headerFull(config)
	}
}

func (u *terminalChatUI) headerMachine(config HeaderConfig) {
	parts := []string{fmt.Sprintf("mode=%s", config.Mode)}
	if config.Model != "" {
		parts = append(parts, fmt.Sprintf("model=%s", config.Model))
	}
	if config.Space != "" {
		parts = append(parts, fmt.Sprintf("space=%s", config.Space))
	}
	if config.Profile != "" {
		parts = append(parts, fmt.Sprintf("profile=%s", config.Profile))
	}
	if config.Incognito {
		parts = append(parts, "incognito=true")
	}
	parts = append(parts, fmt.Sprintf("authenticated=%t", config.Authenticated))
	u.write("CHAT_START: %s\n", strings.Join(parts, " "))
}

func (u *terminalChatUI) headerMinimal(config HeaderConfig) {
	u.write("Chat (mode: %s)\n", config.Mode)
	if config.Space != "" {
		u.write("Space: %s\n", config.Space)
	}
	if config.Incognito {
		u.writeln("Incognito: no follow-up threading")
	}
	u.writeln("Type 'exit' to end.")
}

func (u *terminalChatUI) headerFull(config HeaderConfig) {
	var content strings.Builder
	content.WriteString(Styles.Highlight.Render("Openplexity Chat"))
	content.WriteString("\n")
	content.WriteString(fmt.Sprintf("Mode: %s", Styles.Success.Render(config.Mode)))
	if config.Model != "" {
		content.WriteString(fmt.Sprintf(" | Model: %s", Styles.Success.Render(config.Model)))
	}
	if config.Space != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Space: %s", Styles.Success.Render(config.Space)))
	}
	if config.Profile != "" {
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Profile: %s", Styles.Success.Render(config.Profile)))
	}
	if config.Incognito {
		content.WriteString("\n")
		content.WriteString(Styles.Warning.Render("incognito: answers leave no history"))
	}
	if !config.Authenticated {
		content.WriteString("\n")
		content.WriteString(Styles.Muted.Render("anonymous session (no cookies configured)"))
	}

	boxStyle := Styles.Box.Width(60)
	u.writeln(boxStyle.Render(content.String()))
	u.writeln()
	u.writeln(Styles.Muted.Render("Type 'exit' to end."))
	u.writeln()
}

// Prompt returns the styled input prompt string
func (u *terminalChatUI) Prompt() string {
	if u.personality == PersonalityMachine {
		return "> "
	}
	return Styles.Highlight.Render("> ")
}

// Response displays a complete answer
func (u *terminalChatUI) Response(answer string) {
	if u.personality == PersonalityMachine {
		u.write("RESPONSE: %s\n", answer)
		return
	}
	u.writeln()
	u.writeln(answer)
}

// Sources displays the sources cited by the last answer
func (u *terminalChatUI) Sources(sources []SourceInfo) {
	if len(sources) == 0 {
		return
	}

	if u.personality == PersonalityMachine {
		for _, src := range sources {
			u.write("SOURCE: %s\t%s\n", src.Name, src.URL)
		}
		return
	}

	u.writeln()
	if u.personality == PersonalityMinimal {
		u.writeln("Sources:")
		for i, src := range sources {
			u.write("  %d. %s\n", i+1, src.Name)
		}
		return
	}

	var content strings.Builder
	for i, src := range sources {
		content.WriteString(fmt.Sprintf("%d. %s", i+1, src.Name))
		if src.URL != "" {
			content.WriteString("\n   ")
			content.WriteString(Styles.Muted.Render(src.URL))
		}
		if i < len(sources)-1 {
			content.WriteString("\n")
		}
	}

	boxStyle := Styles.InfoBox.Width(60)
	titleLine := Styles.Subtitle.Render("Sources")
	u.writeln(boxStyle.Render(titleLine + "\n" + content.String()))
}

// Related displays follow-up query suggestions
func (u *terminalChatUI) Related(queries []string) {
	if len(queries) == 0 {
		return
	}

	if u.personality == PersonalityMachine {
		for _, q := range queries {
			u.write("RELATED: %s\n", q)
		}
		return
	}
	if u.personality == PersonalityMinimal {
		return
	}

	u.writeln()
	u.writeln(Styles.Subtitle.Render("Related"))
	for _, q := range queries {
		u.write("  %s %s\n", IconSpark.Render(), q)
	}
}

// Error displays a chat error message
func (u *terminalChatUI) Error(err error) {
	if u.personality == PersonalityMachine {
		u.write("CHAT_ERROR: %v\n", err)
		return
	}
	u.writeln()
	u.write("%s %s\n", IconError.Render(), Styles.Error.Render(err.Error()))
}

// ContinuityLost warns that the next question starts a fresh thread
func (u *terminalChatUI) ContinuityLost(reason string) {
	if u.personality == PersonalityMachine {
		u.write("CONTINUITY_LOST: %s\n", reason)
		return
	}
	u.write("%s %s\n", IconWarning.Render(),
		Styles.Warning.Render("follow-up threading unavailable: "+reason))
}

// SessionEnd displays the end-of-session summary
func (u *terminalChatUI) SessionEnd(stats SessionStats) {
	switch u.personality {
	case PersonalityMachine:
		u.write("CHAT_END: turns=%d sources=%d duration=%s\n",
			stats.TurnCount, stats.SourceCount, stats.Duration.Round(time.Second))
	case PersonalityMinimal:
		u.write("Session ended. %d turns.\n", stats.TurnCount)
	default:
		var content strings.Builder
		content.WriteString(Styles.Subtitle.Render("Session ended"))
		content.WriteString("\n")
		content.WriteString(fmt.Sprintf("Turns: %s", Styles.Bold.Render(fmt.Sprintf("%d", stats.TurnCount))))
		if stats.SourceCount > 0 {
			content.WriteString(fmt.Sprintf("  Sources: %s", Styles.Bold.Render(fmt.Sprintf("%d", stats.SourceCount))))
		}
		if stats.Duration > 0 {
			content.WriteString(fmt.Sprintf("  Duration: %s",
				Styles.Bold.Render(formatDuration(stats.Duration))))
		}
		u.writeln()
		u.writeln(Styles.Box.Width(60).Render(content.String()))
	}
}

// formatDuration renders a duration in a compact human form.
func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}
