package tui

import (
	"fmt"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the ASCII art banner for Packhound.
func PrintBanner() {
	p := termenv.ColorProfile()
	// Amber-to-red scheme, hound colors
	s1 := termenv.String(`                 _    _                           _ `).Foreground(p.Color("#fbbf24"))
	s2 := termenv.String(` _ __   __ _  __| |__| |__   ___  _   _ _ __   __| |`).Foreground(p.Color("#f59e0b"))
	s3 := termenv.String("| '_ \\ / _` |/ _` / _` '_ \\ / _ \\| | | | '_ \\ / _` |").Foreground(p.Color("#f97316"))
	s4 := termenv.String(`| |_) | (_| | (_| | (_| | | | (_) | |_| | | | | (_| |`).Foreground(p.Color("#ef4444"))
	s5 := termenv.String(`| .__/ \__,_|\__,_|\__,_| |_|\___/ \__,_|_| |_|\__,_|`).Foreground(p.Color("#dc2626"))
	s6 := termenv.String(`|_|                                                  `).Foreground(p.Color("#b91c1c"))

	fmt.Println()
	fmt.Println(s1)
	fmt.Println(s2)
	fmt.Println(s3)
	fmt.Println(s4)
	fmt.Println(s5)
	fmt.Println(s6)
	fmt.Println()
}
