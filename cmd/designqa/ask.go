package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"design-props-rag/internal/app"
	"design-props-rag/internal/assistant"
	"design-props-rag/internal/logging"
	"design-props-rag/internal/models"
	"design-props-rag/internal/table"
)

var askFlags struct {
	question    string
	interactive bool
}

var askCmd = &cobra.Command{
	Use:   "ask <urn>",
	Short: "Ask one question, or start an interactive conversation with -i",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsk,
}

func init() {
	askCmd.Flags().StringVarP(&askFlags.question, "query", "q", "", "Question to answer (non-interactive mode)")
	askCmd.Flags().BoolVarP(&askFlags.interactive, "interactive", "i", false, "Run in interactive mode")
}

func runAsk(cmd *cobra.Command, args []string) error {
	if !askFlags.interactive && askFlags.question == "" {
		return fmt.Errorf("query is required in non-interactive mode, use -q 'your question' or -i")
	}

	a, err := app.Build(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	urn := args[0]
	if askFlags.interactive {
		return runInteractiveMode(cmd.Context(), a.Assistant, urn, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	response, err := processQuery(cmd.Context(), a.Assistant, urn, askFlags.question)
	if err != nil {
		return fmt.Errorf("failed to process query: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), formatAnswer(response))
	return nil
}

func runInteractiveMode(ctx context.Context, a *assistant.Assistant, urn string, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)

	fmt.Fprintln(out, "Design Assistant - Ask questions about the design's elements (type 'exit' to quit)")
	fmt.Fprintln(out, "Commands: /table prints the property table, /history prints the conversation")

	for {
		fmt.Fprint(out, "\n> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if strings.EqualFold(input, "exit") || strings.EqualFold(input, "quit") {
			break
		}
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "/table":
			tbl, err := a.PropertyTable(ctx, urn, "")
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
				continue
			}
			if err := table.Render(out, tbl, table.FormatASCII); err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			continue
		case "/history":
			transcript, ok := a.Transcript(urn)
			if !ok {
				fmt.Fprintln(out, "No conversation yet")
				continue
			}
			// Skip the grounding turn, it repeats the whole table.
			for _, m := range transcript[1:] {
				fmt.Fprintf(out, "[%s] %s\n", m.Role, m.Text)
			}
			continue
		}

		// Show "thinking" indicator
		fmt.Fprint(out, "Reading design properties... ")

		response, err := processQuery(ctx, a, urn, input)
		if err != nil {
			fmt.Fprintf(out, "\rError: %v\n", err)
			continue
		}

		fmt.Fprintln(out, "\r"+formatAnswer(response))
	}
	return scanner.Err()
}

func processQuery(ctx context.Context, a *assistant.Assistant, urn, question string) (*models.Response, error) {
	startTime := time.Now()
	response, err := a.Ask(ctx, urn, question, "")
	if err != nil {
		return nil, err
	}
	logging.New("ask").Debug("query processed", "duration", time.Since(startTime))
	return response, nil
}

func formatAnswer(response *models.Response) string {
	var sb strings.Builder
	sb.WriteString(response.Answer)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("  [Design: %s, %s]\n", response.DesignID, response.Timestamp))
	return sb.String()
}
