package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"cypherify/internal/classical"
	"cypherify/internal/teacher"
)

func newAskCommand(a *app) *cobra.Command {
	var (
		topic     string
		hint      string
		direction string
	)
	cmd := &cobra.Command{
		Use:   "ask [question...]",
		Short: "Ask the cryptography teacher a question",
		Long: `Ask forwards a question to the configured chat-completions endpoint. The
API key comes from CYPHERIFY_TEACHER_API_KEY or OPENAI_API_KEY, which may be
set in a .env file. Without a key the command explains how to enable it;
nothing else in cypherify needs the teacher.

With no question on the command line, ask starts a conversation: each line
read from standard input is a question, and earlier turns are sent along
up to teacher.history_window.

Examples:
  cypherify ask "Why is ROT13 its own inverse?"
  cypherify ask --topic vigenere "How does the Kasiski test work?"
  cypherify ask --hint substitution`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.teacher.Enabled() {
				return teacher.ErrTeacherDisabled
			}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if hint != "" {
				f, err := classical.ParseFamily(hint)
				if err != nil {
					return err
				}
				a.metrics.TeacherQuestions.Inc()
				ans, err := a.teacher.Hint(ctx, f.String(), direction)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ans.Text)
				return nil
			}

			if len(args) > 0 {
				a.metrics.TeacherQuestions.Inc()
				ans, err := a.teacher.Ask(ctx, teacher.Question{Text: strings.Join(args, " "), CipherContext: topic})
				if err != nil {
					return err
				}
				fmt.Fprintln(out, ans.Text)
				return nil
			}

			var history []teacher.Message
			scanner := bufio.NewScanner(cmd.InOrStdin())
			fmt.Fprint(cmd.ErrOrStderr(), "> ")
			for scanner.Scan() {
				q := strings.TrimSpace(scanner.Text())
				if q == "" {
					fmt.Fprint(cmd.ErrOrStderr(), "> ")
					continue
				}
				if q == "quit" || q == "exit" {
					break
				}
				a.metrics.TeacherQuestions.Inc()
				ans, err := a.teacher.Ask(ctx, teacher.Question{Text: q, CipherContext: topic, History: history})
				var apiErr *teacher.APIError
				switch {
				case errors.As(err, &apiErr):
					fmt.Fprintf(cmd.ErrOrStderr(), "%v\n> ", err)
					continue
				case err != nil:
					return err
				}
				history = ans.History
				fmt.Fprintf(out, "%s\n\n", ans.Text)
				fmt.Fprint(cmd.ErrOrStderr(), "> ")
			}
			return scanner.Err()
		},
	}
	cmd.Flags().StringVar(&topic, "topic", "", "cipher the question is about, e.g. vigenere")
	cmd.Flags().StringVar(&hint, "hint", "", "ask for a short practical tip about this family")
	cmd.Flags().StringVar(&direction, "direction", "decrypt", "encrypt or decrypt, for --hint")
	cmd.MarkFlagsMutuallyExclusive("hint", "topic")
	cmd.RegisterFlagCompletionFunc("hint", completeFamilies())
	cmd.RegisterFlagCompletionFunc("topic", completeFamilies())
	return cmd
}
