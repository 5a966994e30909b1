package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/spf13/cobra"

	"cypherify/internal/report"
	"cypherify/internal/store"
)

var errNoHistory = errors.New("history is disabled (storage.enabled = false or --no-history)")

func (a *app) requireHistory() (*store.Store, error) {
	s, err := a.history()
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, errNoHistory
	}
	return s, nil
}

func newHistoryCommand(a *app) *cobra.Command {
	var (
		kind   string
		family string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded analyses, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireHistory()
			if err != nil {
				return err
			}
			f := store.Filter{Kind: store.Kind(kind), Family: family, Limit: limit}
			if f.Kind != "" && !f.Kind.Valid() {
				return fmt.Errorf("unknown kind %q (classify, transform, password, pin)", kind)
			}
			records, err := s.List(cmd.Context(), f)
			if err != nil {
				return err
			}
			if a.jsonOut {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				if records == nil {
					records = []store.Record{}
				}
				return enc.Encode(records)
			}
			report.PrintHistory(cmd.OutOrStdout(), records)
			return nil
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "only this kind: classify, transform, password or pin")
	cmd.Flags().StringVar(&family, "family", "", "only this top family")
	cmd.Flags().IntVar(&limit, "limit", store.DefaultListLimit, "maximum records")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show <id>",
			Short: "Print the stored result document of one analysis",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.requireHistory()
				if err != nil {
					return err
				}
				rec, err := s.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if err := store.VerifyRecord(rec); err != nil {
					return err
				}
				var buf bytes.Buffer
				if err := json.Indent(&buf, rec.Result, "", "  "); err != nil {
					return fmt.Errorf("stored result: %w", err)
				}
				buf.WriteByte('\n')
				_, err = buf.WriteTo(cmd.OutOrStdout())
				return err
			},
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete one analysis",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.requireHistory()
				if err != nil {
					return err
				}
				return s.Delete(cmd.Context(), args[0])
			},
		},
		&cobra.Command{
			Use:   "stats",
			Short: "Summarise the history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.requireHistory()
				if err != nil {
					return err
				}
				st, err := s.Stats(cmd.Context())
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Records:        %d\n", st.Total)
				for _, k := range []store.Kind{store.KindClassify, store.KindTransform, store.KindPassword, store.KindPIN} {
					fmt.Fprintf(out, "  %-13s %d\n", k, st.ByKind[k])
				}
				fmt.Fprintf(out, "Unclassified:   %d\n", st.Unclassified)
				if len(st.ByFamily) > 0 {
					fmt.Fprintln(out, "Top families:")
					for _, f := range slices.Sorted(maps.Keys(st.ByFamily)) {
						fmt.Fprintf(out, "  %-13s %d\n", f, st.ByFamily[f])
					}
				}
				if st.Oldest != nil {
					fmt.Fprintf(out, "Oldest:         %s\n", st.Oldest.Format("2006-01-02 15:04:05"))
					fmt.Fprintf(out, "Newest:         %s\n", st.Newest.Format("2006-01-02 15:04:05"))
				}
				sc, err := s.Schema(cmd.Context())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Database:       %s (schema v%d)\n", s.Path(), sc.Version)
				return nil
			},
		},
		&cobra.Command{
			Use:   "verify",
			Short: "Check every record against its digest",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := a.requireHistory()
				if err != nil {
					return err
				}
				bad, err := s.VerifyAll(cmd.Context())
				if err != nil {
					return err
				}
				if len(bad) > 0 {
					for _, id := range bad {
						fmt.Fprintf(cmd.OutOrStdout(), "MODIFIED  %s\n", id)
					}
					return fmt.Errorf("%d record(s) failed verification", len(bad))
				}
				fmt.Fprintln(cmd.OutOrStdout(), "All records verified.")
				return nil
			},
		},
		newPruneCommand(a),
	)
	return cmd
}

func newPruneCommand(a *app) *cobra.Command {
	var keep int
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete all but the newest records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.requireHistory()
			if err != nil {
				return err
			}
			n, err := s.Prune(cmd.Context(), keep)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d record(s).\n", n)
			return nil
		},
	}
	cmd.Flags().IntVar(&keep, "keep", 100, "records to keep")
	return cmd
}
