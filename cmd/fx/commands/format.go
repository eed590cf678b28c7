package commands

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/wonny/fxlab/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// RunHeader holds the fields printed above a command's output
type RunHeader struct {
	Title  string
	Tag    string
	Base   string
	Quotes []string
	Model  string
	Period *Period // Optional
}

// Period represents a date range
type Period struct {
	StartDate string
	EndDate   string
}

// PrintRunHeader prints a formatted run header
func PrintRunHeader(h RunHeader) {
	fmt.Println()
	PrintDoubleSeparator()
	fmt.Printf("  %s\n", h.Title)
	PrintSeparator()
	if h.Base != "" {
		fmt.Printf("  Base      : %s\n", h.Base)
	}
	if len(h.Quotes) > 0 {
		fmt.Printf("  Quotes    : %s\n", strings.Join(h.Quotes, ","))
	}
	if h.Model != "" {
		fmt.Printf("  Model     : %s\n", h.Model)
	}

	// Optional period
	if h.Period != nil {
		fmt.Printf("  Period    : %s ~ %s\n", h.Period.StartDate, h.Period.EndDate)
	}

	PrintSeparator()
	fmt.Printf("[%s] started at %s\n", h.Tag, time.Now().Format("2006-01-02 15:04:05"))
}

// PrintCompletion prints a completion line with elapsed time
func PrintCompletion(tag string, started time.Time) {
	fmt.Println()
	fmt.Printf("✅ %s completed in %.2fs\n", tag, time.Since(started).Seconds())
}

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}

// PrintWarning prints a warning message
func PrintWarning(message string) {
	fmt.Println()
	fmt.Printf("⚠️  %s\n", message)
	fmt.Println()
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintInfo prints an info message
func PrintInfo(message string) {
	fmt.Printf("ℹ️  %s\n", message)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	PrintTableRow(columns, widths)

	// Separator line
	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	for i, val := range values {
		fmt.Printf("%-*s", widths[i], val)
		if i < len(values)-1 {
			fmt.Print("  ")
		}
	}
	fmt.Println()
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// statusIcon maps a per-quote state onto the output icons
func statusIcon(st contracts.QuoteState) string {
	switch st {
	case contracts.QuoteOK:
		return "✅"
	case contracts.QuoteSkipped:
		return "⚠️"
	default:
		return "❌"
	}
}

// formatFloat prints NaN as "-"
func formatFloat(v float64, prec int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	return fmt.Sprintf("%.*f", prec, v)
}

// formatPtr prints nil as "-"
func formatPtr(v *float64, prec int) string {
	if v == nil {
		return "-"
	}
	return formatFloat(*v, prec)
}
