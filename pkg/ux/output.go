// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ux provides terminal output styling for the rando CLI.
//
// A Printer styles its lines only when it writes to a terminal. Output
// sent to a pipe or file is plain text, one message per line.
package ux

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// Brand colors
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - titles
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Icon is a status glyph printed before styled messages.
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconArrow   Icon = "→"
	IconBullet  Icon = "•"
)

// styles holds the lipgloss styles of one Printer.
type styles struct {
	title   lipgloss.Style
	bold    lipgloss.Style
	muted   lipgloss.Style
	success lipgloss.Style
	warning lipgloss.Style
	err     lipgloss.Style
}

// Printer writes status lines to a writer.
//
// Thread Safety: Not safe for concurrent use.
type Printer struct {
	w      io.Writer
	styled bool
	styles styles
}

// NewPrinter creates a Printer for w. Styling is enabled when w is a
// terminal.
func NewPrinter(w io.Writer) *Printer {
	return newPrinter(w, isTerminal(w))
}

func newPrinter(w io.Writer, styled bool) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		w:      w,
		styled: styled,
		styles: styles{
			title:   r.NewStyle().Bold(true).Foreground(ColorTealBright),
			bold:    r.NewStyle().Bold(true),
			muted:   r.NewStyle().Foreground(ColorSlate),
			success: r.NewStyle().Foreground(ColorSuccess),
			warning: r.NewStyle().Foreground(ColorWarning),
			err:     r.NewStyle().Foreground(ColorError),
		},
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// Styled reports whether the Printer emits styled output.
func (p *Printer) Styled() bool {
	return p.styled
}

// Render returns the icon with its status color.
func (p *Printer) Render(i Icon) string {
	if !p.styled {
		return string(i)
	}
	switch i {
	case IconSuccess:
		return p.styles.success.Render(string(i))
	case IconWarning:
		return p.styles.warning.Render(string(i))
	case IconError:
		return p.styles.err.Render(string(i))
	default:
		return p.styles.muted.Render(string(i))
	}
}

// Title prints a bold title line.
func (p *Printer) Title(format string, args ...any) {
	p.line(p.styles.title, "", format, args...)
}

// Success prints a message with a checkmark.
func (p *Printer) Success(format string, args ...any) {
	p.line(p.styles.success, IconSuccess, format, args...)
}

// Warning prints a warning message.
func (p *Printer) Warning(format string, args ...any) {
	p.line(p.styles.warning, IconWarning, format, args...)
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...any) {
	p.line(p.styles.err, IconError, format, args...)
}

// Info prints an unstyled message.
func (p *Printer) Info(format string, args ...any) {
	fmt.Fprintf(p.w, format+"\n", args...)
}

// Muted prints secondary text.
func (p *Printer) Muted(format string, args ...any) {
	p.line(p.styles.muted, "", format, args...)
}

func (p *Printer) line(style lipgloss.Style, icon Icon, format string, args ...any) {
	text := fmt.Sprintf(format, args...)
	if !p.styled {
		fmt.Fprintln(p.w, text)
		return
	}
	if icon != "" {
		fmt.Fprintf(p.w, "%s %s\n", p.Render(icon), style.Render(text))
		return
	}
	fmt.Fprintln(p.w, style.Render(text))
}
