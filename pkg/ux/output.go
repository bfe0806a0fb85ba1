// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package ux provides terminal output styling for the loanctl CLI.
package ux

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Aleutian color palette - deep ocean teals and arctic waters
var (
	ColorTealBright  = lipgloss.Color("#2CD7C7") // Bright teal - highlights, success
	ColorTealPrimary = lipgloss.Color("#20B9B4") // Primary teal - main brand color
	ColorTealDeep    = lipgloss.Color("#16858E") // Deep teal - borders, accents
	ColorSlate       = lipgloss.Color("#2C4A54") // Slate - muted text, borders

	ColorSuccess = lipgloss.Color("#2CD7C7")
	ColorWarning = lipgloss.Color("#F4D03F")
	ColorError   = lipgloss.Color("#E74C3C")
)

// Styles provides pre-configured lipgloss styles
var Styles = struct {
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Bold      lipgloss.Style
	Muted     lipgloss.Style
	Success   lipgloss.Style
	Warning   lipgloss.Style
	Error     lipgloss.Style
	Highlight lipgloss.Style

	Box        lipgloss.Style
	WarningBox lipgloss.Style
	ErrorBox   lipgloss.Style
}{
	Title:     lipgloss.NewStyle().Bold(true).Foreground(ColorTealBright),
	Subtitle:  lipgloss.NewStyle().Foreground(ColorTealPrimary),
	Bold:      lipgloss.NewStyle().Bold(true),
	Muted:     lipgloss.NewStyle().Foreground(ColorSlate),
	Success:   lipgloss.NewStyle().Foreground(ColorSuccess),
	Warning:   lipgloss.NewStyle().Foreground(ColorWarning),
	Error:     lipgloss.NewStyle().Foreground(ColorError),
	Highlight: lipgloss.NewStyle().Foreground(ColorTealBright).Bold(true),

	Box: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorTealDeep).
		Padding(0, 1),
	WarningBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorWarning).
		Padding(0, 1),
	ErrorBox: lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorError).
		Padding(0, 1),
}

// Icon provides themed status icons
type Icon string

const (
	IconSuccess Icon = "✓"
	IconWarning Icon = "⚠"
	IconError   Icon = "✗"
	IconPending Icon = "○"
	IconBullet  Icon = "•"
)

// Render returns the icon with appropriate styling
func (i Icon) Render() string {
	switch i {
	case IconSuccess:
		return Styles.Success.Render(string(i))
	case IconWarning:
		return Styles.Warning.Render(string(i))
	case IconError:
		return Styles.Error.Render(string(i))
	case IconPending:
		return Styles.Muted.Render(string(i))
	default:
		return string(i)
	}
}

// Tone selects the styling of a status line or box.
type Tone int

const (
	ToneNeutral Tone = iota
	ToneSuccess
	ToneWarning
	ToneError
)

func (t Tone) icon() Icon {
	switch t {
	case ToneSuccess:
		return IconSuccess
	case ToneWarning:
		return IconWarning
	case ToneError:
		return IconError
	default:
		return IconBullet
	}
}

func (t Tone) style() lipgloss.Style {
	switch t {
	case ToneSuccess:
		return Styles.Success
	case ToneWarning:
		return Styles.Warning
	case ToneError:
		return Styles.Error
	default:
		return Styles.Bold
	}
}

func (t Tone) box() lipgloss.Style {
	switch t {
	case ToneWarning:
		return Styles.WarningBox
	case ToneError:
		return Styles.ErrorBox
	default:
		return Styles.Box
	}
}

func (t Tone) machinePrefix() string {
	switch t {
	case ToneSuccess:
		return "OK"
	case ToneWarning:
		return "WARN"
	case ToneError:
		return "ERROR"
	default:
		return "INFO"
	}
}

// =============================================================================
// Printer
// =============================================================================

// Printer writes styled output at one personality level.
//
// Machine level writes plain, tab-separated or prefixed lines suitable for
// scripting; the other levels use lipgloss styling.
type Printer struct {
	w     io.Writer
	level PersonalityLevel
}

// NewPrinter creates a Printer writing to w.
func NewPrinter(w io.Writer, level PersonalityLevel) *Printer {
	return &Printer{w: w, level: level}
}

// Level returns the printer's personality level.
func (p *Printer) Level() PersonalityLevel { return p.level }

// Title prints a styled title. Machine level prints nothing.
func (p *Printer) Title(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.w, Styles.Title.Render(text))
}

// Status prints one status line with an icon.
func (p *Printer) Status(tone Tone, text string) {
	switch p.level {
	case PersonalityMachine:
		fmt.Fprintf(p.w, "%s: %s\n", tone.machinePrefix(), text)
	case PersonalityMinimal:
		fmt.Fprintf(p.w, "%s %s\n", tone.icon().Render(), text)
	default:
		fmt.Fprintf(p.w, "%s %s\n", tone.icon().Render(), tone.style().Render(text))
	}
}

// Field prints an aligned key/value pair.
func (p *Printer) Field(key, value string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.w, "%s\t%s\n", key, value)
		return
	}
	fmt.Fprintf(p.w, "  %s %s\n", Styles.Muted.Render(fmt.Sprintf("%-16s", key+":")), value)
}

// List prints a titled bullet list. Empty lists are skipped.
func (p *Printer) List(title string, items []string) {
	if len(items) == 0 {
		return
	}
	if p.level == PersonalityMachine {
		for _, item := range items {
			fmt.Fprintf(p.w, "%s\t%s\n", title, item)
		}
		return
	}
	fmt.Fprintln(p.w, Styles.Subtitle.Render(title))
	for _, item := range items {
		fmt.Fprintf(p.w, "  %s %s\n", IconBullet.Render(), item)
	}
}

// Box prints content in a rounded box with a title.
func (p *Printer) Box(tone Tone, title, content string) {
	if p.level == PersonalityMachine {
		fmt.Fprintf(p.w, "%s: %s\n", title, strings.ReplaceAll(content, "\n", " "))
		return
	}
	titleLine := tone.style().Bold(true).Render(title)
	fmt.Fprintln(p.w, tone.box().Width(72).Render(titleLine+"\n"+content))
}

// Muted prints secondary text. Machine level prints nothing.
func (p *Printer) Muted(text string) {
	if p.level == PersonalityMachine {
		return
	}
	fmt.Fprintln(p.w, Styles.Muted.Render(text))
}

// Meter renders a 0..1 value as a bar.
func (p *Printer) Meter(value float64, width int) string {
	if p.level == PersonalityMachine {
		return fmt.Sprintf("%.4f", value)
	}
	if value < 0 {
		value = 0
	}
	if value > 1 {
		value = 1
	}
	filled := int(value * float64(width))
	style := Styles.Success
	switch {
	case value >= 0.6:
		style = Styles.Error
	case value >= 0.3:
		style = Styles.Warning
	}
	bar := style.Render(strings.Repeat("█", filled)) + Styles.Muted.Render(strings.Repeat("░", width-filled))
	return fmt.Sprintf("%s %.3f", bar, value)
}
