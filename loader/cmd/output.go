package main

import (
	"fmt"
	"io"
	"time"

	"helprag/loader/service"
	"helprag/types"

	"github.com/fatih/color"
)

var (
	okColor    = color.New(color.FgGreen, color.Bold)
	errColor   = color.New(color.FgRed, color.Bold)
	labelColor = color.New(color.FgCyan)
	dimColor   = color.New(color.Faint)
)

func printReport(w io.Writer, r *service.Report) {
	okColor.Fprintf(w, "Ingestion %s finished in %s\n", r.RunID, r.Duration.Round(time.Millisecond))
	labelColor.Fprint(w, "  source:    ")
	fmt.Fprintln(w, r.SourceDir)
	labelColor.Fprint(w, "  documents: ")
	fmt.Fprintln(w, r.Documents)
	labelColor.Fprint(w, "  articles:  ")
	fmt.Fprintln(w, r.Articles)
	labelColor.Fprint(w, "  chunks:    ")
	fmt.Fprintln(w, r.Chunks)
	labelColor.Fprint(w, "  vectors:   ")
	fmt.Fprintln(w, r.Vectors)
}

func printAnswer(w io.Writer, resp *types.ChatResponse) {
	fmt.Fprintln(w, resp.Answer)
	if len(resp.Sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	labelColor.Fprintln(w, "Sources:")
	for i, src := range resp.Sources {
		title := src.ID
		if src.Title != nil {
			title = *src.Title
		}
		fmt.Fprintf(w, "  [%d] %s ", i, title)
		dimColor.Fprintf(w, "(%s, %.3f)\n", src.ID, src.Score)
	}
}

func printError(w io.Writer, err error) {
	errColor.Fprint(w, "error: ")
	fmt.Fprintln(w, err)
}
