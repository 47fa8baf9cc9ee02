package main

import (
	"errors"

	"helprag/app/agent"
	"helprag/model"
	"helprag/types"

	"github.com/spf13/cobra"
)

var askTopK int

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Answer a question from the indexed articles",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().IntVarP(&askTopK, "top-k", "k", types.DefaultTopK, "number of chunks to retrieve")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	d, err := loadDeps(ctx)
	if err != nil {
		return err
	}
	defer d.close()

	generator, err := model.NewGenerator(d.cfg)
	if err != nil {
		return err
	}
	a := agent.NewAgent(agent.NewRetriever(d.embedder, d.index), generator, d.cfg.LLM.Temperature)

	resp, err := a.Answer(ctx, args[0], askTopK)
	if err != nil && !errors.Is(err, types.ErrNoMatches) {
		return err
	}
	printAnswer(cmd.OutOrStdout(), resp)
	return nil
}
