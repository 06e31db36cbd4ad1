package output

import (
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
)

// colorEnabled reports whether stdout is a terminal that can take color
func colorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
}

func colorize(text, color string) string {
	if !colorEnabled() {
		return text
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Render(text)
}

// Green colors text green
func Green(text string) string {
	return colorize(text, "2")
}

// Red colors text red
func Red(text string) string {
	return colorize(text, "1")
}

// Yellow colors text yellow
func Yellow(text string) string {
	return colorize(text, "3")
}

// Cyan colors text cyan
func Cyan(text string) string {
	return colorize(text, "6")
}

// Dim renders text faint
func Dim(text string) string {
	if !colorEnabled() {
		return text
	}
	return lipgloss.NewStyle().Faint(true).Render(text)
}

// Bold renders text bold
func Bold(text string) string {
	if !colorEnabled() {
		return text
	}
	return lipgloss.NewStyle().Bold(true).Render(text)
}
