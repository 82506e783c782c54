package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`   __ _                              `, "#818cf8"},
	{`  / _| | _____      ___ __ _   _ _ __  `, "#a78bfa"},
	{` | |_| |/ _ \ \ /\ / / '__| | | | '_ \ `, "#c084fc"},
	{` |  _| | (_) \ V  V /| |  | |_| | | | |`, "#e879f9"},
	{` |_| |_|\___/ \_/\_/ |_|   \__,_|_| |_|`, "#f472b6"},
}

// PrintBanner writes the ASCII art banner to w using its color profile.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, out.String(l.text).Foreground(out.Color(l.color)))
	}
	fmt.Fprintln(w)
}
