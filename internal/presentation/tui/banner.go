package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []string{
	` __   __                      __ _`,
	` \ \ / /__ _ __  _   _  ___  / _| | _____      __`,
	`  \ V / _ \ '_ \| | | |/ _ \| |_| |/ _ \ \ /\ / /`,
	`   | |  __/ | | | |_| |  __/|  _| | (_) \ V  V /`,
	`   |_|\___|_| |_|\__,_|\___||_| |_|\___/ \_/\_/`,
}

var bannerColors = []string{"#818cf8", "#a78bfa", "#c084fc", "#e879f9", "#f472b6"}

// PrintBanner writes the venueflow banner to w.
func PrintBanner(w io.Writer) {
	out := termenv.NewOutput(w)
	fmt.Fprintln(w)
	for i, line := range bannerLines {
		fmt.Fprintln(w, out.String(line).Foreground(out.Color(bannerColors[i])))
	}
	fmt.Fprintln(w)
}
