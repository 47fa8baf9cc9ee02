package main

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"helprag/app/agent"
	"helprag/loader/service"
	"helprag/types"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func init() {
	color.NoColor = true
}

func TestPrintReport(t *testing.T) {
	var buf bytes.Buffer
	id := uuid.MustParse("7d444840-9dc0-11d1-b245-5ffdce74fad2")
	printReport(&buf, &service.Report{
		RunID:     id,
		SourceDir: "data/raw",
		Documents: 3,
		Articles:  3,
		Chunks:    7,
		Vectors:   7,
		Duration:  1500 * time.Millisecond,
	})
	out := buf.String()
	assert.Contains(t, out, "Ingestion 7d444840-9dc0-11d1-b245-5ffdce74fad2 finished in 1.5s")
	assert.Contains(t, out, "  source:    data/raw\n")
	assert.Contains(t, out, "  chunks:    7\n")
	assert.Contains(t, out, "  vectors:   7\n")
}

func TestPrintAnswer(t *testing.T) {
	t.Run("With sources", func(t *testing.T) {
		var buf bytes.Buffer
		title := "Refunds"
		printAnswer(&buf, &types.ChatResponse{
			Answer: "Refunds take 14 days.",
			Sources: []types.Source{
				{ID: "refunds-chunk-0", Score: 0.912, Title: &title},
				{ID: "billing-chunk-1", Score: 0.5},
			},
		})
		assert.Equal(t, "Refunds take 14 days.\n\nSources:\n"+
			"  [0] Refunds (refunds-chunk-0, 0.912)\n"+
			"  [1] billing-chunk-1 (billing-chunk-1, 0.500)\n", buf.String())
	})

	t.Run("Fallback answer", func(t *testing.T) {
		var buf bytes.Buffer
		printAnswer(&buf, &types.ChatResponse{Answer: agent.NoContextAnswer, Sources: []types.Source{}})
		assert.Equal(t, agent.NoContextAnswer+"\n", buf.String())
	})
}

func TestPrintError(t *testing.T) {
	var buf bytes.Buffer
	printError(&buf, errors.New("missing required environment variables: OPENAI_API_KEY"))
	assert.Equal(t, "error: missing required environment variables: OPENAI_API_KEY\n", buf.String())
}

func TestCommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["ingest"])
	assert.True(t, names["ask"])

	assert.NotNil(t, ingestCmd.Flags().Lookup("source-dir"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("watch"))
	assert.NotNil(t, ingestCmd.Flags().Lookup("debounce"))
	assert.Equal(t, "5", askCmd.Flags().Lookup("top-k").DefValue)
	assert.Error(t, askCmd.Args(askCmd, nil))
}
