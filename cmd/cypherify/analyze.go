package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"cypherify/internal/classical"
	"cypherify/internal/classifier"
	"cypherify/internal/report"
	"cypherify/internal/sample"
	"cypherify/internal/store"
	"cypherify/internal/teacher"
	"cypherify/internal/textstats"
)

func newClassifyCommand(a *app) *cobra.Command {
	var (
		file   string
		review bool
	)
	cmd := &cobra.Command{
		Use:   "classify [ciphertext...]",
		Short: "Identify the cipher family of a ciphertext and recover its key",
		Long: `Classify runs every cipher family's key search concurrently, ranks the
best candidate of each family, and explains the decision. When no family is
convincing the top result is "unclassified" with the statistics behind that
verdict.

Examples:
  cypherify classify "Khoor Zruog"
  cypherify classify --file message.txt --json
  echo "Uryyb Jbeyq" | cypherify classify --review`,
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args, file)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a.noteSeenBefore(cmd, input)
			res, err := a.classifier.Classify(ctx, input)
			if err != nil {
				return err
			}
			doc := report.NewClassificationDocument(res)
			a.remember(ctx, doc, input)

			out := cmd.OutOrStdout()
			if err := a.output(out, doc, func(w io.Writer) { report.PrintReport(w, res) }); err != nil {
				return err
			}
			if !review {
				return nil
			}
			rv, err := a.teacher.ReviewCandidates(ctx, res.Candidates)
			if errors.Is(err, teacher.ErrTeacherDisabled) {
				fmt.Fprintln(cmd.ErrOrStderr(), "Teacher review skipped: no API key configured.")
				return nil
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr())
			fmt.Fprintf(cmd.ErrOrStderr(), "TEACHER REVIEW (%s confidence): %s key %s\n",
				rv.Confidence, rv.Candidate.Family, rv.Candidate.KeyText)
			fmt.Fprintf(cmd.ErrOrStderr(), "  %s\n", rv.Reasoning)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the ciphertext from a file")
	cmd.Flags().BoolVar(&review, "review", false, "ask the teacher for a second opinion on the candidates")
	return cmd
}

// noteSeenBefore tells the user when the same ciphertext was classified
// earlier. Lookup failures are ignored.
func (a *app) noteSeenBefore(cmd *cobra.Command, input string) {
	s, err := a.history()
	if err != nil || s == nil {
		return
	}
	rec, err := s.FindByInput(cmd.Context(), store.KindClassify, store.InputDigest(store.KindClassify, input))
	if err != nil {
		return
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Seen before: %s on %s (%s %s)\n",
		rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), rec.Family, rec.Key)
}

func newTransformCommand(a *app, dir classifier.Direction) *cobra.Command {
	var (
		family string
		key    string
		file   string
	)
	cmd := &cobra.Command{
		Use:   dir.String() + " [text...]",
		Short: fmt.Sprintf("%s with a named cipher family and a known key", capitalize(dir.String())),
		Long: fmt.Sprintf(`%s applies a cipher family directly with a key you supply,
bypassing classification. Key formats:
  shift, rot-n   an integer shift, e.g. 3
  affine         "a,b" with a coprime to 26, e.g. 5,8
  vigenere       a keyword, e.g. LEMON
  substitution   the 26-letter cipher alphabet
  rail-fence     the number of rails
  bacon          the output symbols, AB (default) or 01
  reverse, a1z26, morse   no key

Example:
  cypherify %s --family vigenere --key LEMON "attack at dawn"`, capitalize(dir.String()), dir.String()),
		RunE: func(cmd *cobra.Command, args []string) error {
			input, err := readInput(cmd, args, file)
			if err != nil {
				return err
			}
			res, err := a.classifier.Transform(family, dir, input, key)
			if err != nil {
				return err
			}
			doc := report.NewTransformDocument(res)
			a.remember(cmd.Context(), doc, input)
			return a.output(cmd.OutOrStdout(), doc, func(w io.Writer) { report.PrintTransform(w, res) })
		},
	}
	cmd.Flags().StringVar(&family, "family", "", "cipher family (see 'cypherify families')")
	cmd.Flags().StringVarP(&key, "key", "k", "", "cipher key")
	cmd.Flags().StringVarP(&file, "file", "f", "", "read the text from a file")
	cmd.MarkFlagRequired("family")
	cmd.RegisterFlagCompletionFunc("family", completeFamilies())
	return cmd
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func newFamiliesCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "families",
		Short: "List the supported cipher families and their key spaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			report.PrintFamilies(cmd.OutOrStdout(), a.classifier.Families())
			return nil
		},
	}
}

func newSampleCommand(a *app) *cobra.Command {
	var (
		index   int
		family  string
		key     string
		modern  int
		seed    string
		list    bool
		encrypt string
	)
	cmd := &cobra.Command{
		Use:   "sample",
		Short: "Print practice input: an English passage, optionally enciphered, or modern cipher output",
		Long: `Sample prints one of the built-in English passages. With --family and
--key the passage is enciphered first, which makes a quick exercise for
classify. --modern prints letters of ChaCha20 keystream, the kind of input a
classical analysis should report as unclassified. --encrypt enciphers the
passage with ChaCha20 under a passphrase and prints it as letter pairs.

Examples:
  cypherify sample --index 2 --family shift --key 7 | cypherify classify
  cypherify sample --modern 64 --seed lab-1 | cypherify classify`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			out := cmd.OutOrStdout()
			if list {
				for i := 0; i < sample.Passages(); i++ {
					p, _ := sample.Passage(i)
					fmt.Fprintf(out, "%2d  %s\n", i, report.Truncate(p, 64))
				}
				return nil
			}
			if modern > 0 {
				var alphabet *textstats.Alphabet
				if a.cfg.Analysis.Alphabet != "" {
					if alphabet, err = textstats.NewAlphabet(a.cfg.Analysis.Alphabet); err != nil {
						return err
					}
				}
				letters, err := sample.ModernLetters(seed, modern, alphabet)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, letters)
				return nil
			}

			text, err := sample.Passage(index)
			if err != nil {
				return err
			}
			switch {
			case encrypt != "":
				text, err = sample.ModernEncrypt(text, encrypt)
			case family != "":
				var res *classifier.TransformResult
				if res, err = a.classifier.Transform(family, classifier.Encrypt, text, key); err == nil {
					text = res.Output
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(out, text)
			return nil
		},
	}
	f := cmd.Flags()
	f.IntVarP(&index, "index", "i", 0, "passage number")
	f.BoolVar(&list, "list", false, "list the passages")
	f.StringVar(&family, "family", "", "encipher the passage with this family")
	f.StringVarP(&key, "key", "k", "", "key for --family")
	f.IntVar(&modern, "modern", 0, "print this many letters of stream cipher output instead of a passage")
	f.StringVar(&seed, "seed", "cypherify", "seed for --modern")
	f.StringVar(&encrypt, "encrypt", "", "encipher the passage with ChaCha20 under this passphrase")
	cmd.MarkFlagsMutuallyExclusive("family", "encrypt", "modern")
	return cmd
}

// completeFamilies offers the family names for --family.
func completeFamilies() func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, prefix string) ([]string, cobra.ShellCompDirective) {
		var names []string
		for _, f := range classical.NewRegistry(classical.DefaultSettings()).Models() {
			names = append(names, f.Family().String())
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}
