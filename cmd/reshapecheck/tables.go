// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package main

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	lgtable "github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/gomlx/reshapecheck/pkg/core/reshape"
)

var (
	headerRowStyle = lipgloss.NewStyle().Reverse(true).
			Padding(0, 2, 0, 2).Align(lipgloss.Center)

	oddRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFF")).
			PaddingLeft(1).PaddingRight(1)
	evenRowStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#999")).
			PaddingLeft(1).PaddingRight(1)

	validStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	invalidStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
)

func newTable() *lgtable.Table {
	return lgtable.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("99"))).
		StyleFunc(func(row, col int) (s lipgloss.Style) {
			if row == lgtable.HeaderRow {
				return headerRowStyle
			}
			if row%2 == 0 {
				s = oddRowStyle
			} else {
				s = evenRowStyle
			}
			if col == 2 || col == 3 {
				s = s.Align(lipgloss.Right)
			}
			return
		})
}

// verdictRow returns the table cells of one verdict.
func verdictRow(request reshape.Request, verdict reshape.Verdict) []string {
	status := validStyle.Render("valid")
	details := ""
	if verdict.Resolved.Rank() > 0 {
		details = fmt.Sprintf("resolved to %s", verdict.Resolved)
	}
	if !verdict.Valid {
		status = invalidStyle.Render(verdict.Kind.String())
		details = verdict.Reason
	}
	return []string{
		request.Input.String(),
		request.Target.String(),
		countCell(verdict.InputElementCount),
		countCell(verdict.TargetElementCount),
		status,
		verdict.Backend,
		details,
	}
}

// countCell formats an element count, the exact value of an overflowing one is in the verdict reason.
func countCell(count int) string {
	if count == reshape.CountOverflow {
		return "overflow"
	}
	return humanize.Comma(int64(count))
}

// renderVerdicts returns the table of verdicts.
func renderVerdicts(requests []reshape.Request, verdicts []reshape.Verdict) string {
	table := newTable().Headers("Input", "Target", "# Input", "# Target", "Verdict", "Backend", "Details")
	for i, verdict := range verdicts {
		table.Row(verdictRow(requests[i], verdict)...)
	}
	return table.Render()
}
