package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"cypherify/internal/password"
	"cypherify/internal/report"
)

// rateFlags selects the attacker rate shared by password and pin.
type rateFlags struct {
	rate      float64
	calibrate bool
	cost      int
	duration  time.Duration
}

func (r *rateFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Float64Var(&r.rate, "rate", 0, "attacker guesses per second (default: password.guesses_per_second)")
	f.BoolVar(&r.calibrate, "calibrate", false, "measure this machine's bcrypt rate and use it as the attacker rate")
	f.IntVar(&r.cost, "bcrypt-cost", 0, "bcrypt cost for --calibrate (default: password.bcrypt_cost)")
	f.DurationVar(&r.duration, "calibrate-for", time.Second, "how long --calibrate measures")
	cmd.MarkFlagsMutuallyExclusive("rate", "calibrate")
}

func (r *rateFlags) estimator(cmd *cobra.Command, a *app) (*password.Estimator, error) {
	switch {
	case r.calibrate:
		cost := r.cost
		if cost == 0 {
			cost = a.cfg.Password.BcryptCost
		}
		rate, err := password.MeasureHashRate(cmd.Context(), cost, r.duration)
		if err != nil {
			return nil, err
		}
		fmt.Fprintf(cmd.ErrOrStderr(), "Measured %.1f bcrypt (cost %d) guesses/s on this machine.\n", rate, cost)
		return password.NewEstimator(rate)
	case r.rate != 0:
		return password.NewEstimator(r.rate)
	default:
		return a.estimator, nil
	}
}

func newPasswordCommand(a *app) *cobra.Command {
	var (
		policy password.Policy
		rate   rateFlags
	)
	cmd := &cobra.Command{
		Use:   "password [password]",
		Short: "Estimate how long a password policy resists brute force",
		Long: `Password estimates the brute-force search space of a password policy and
the time an attacker needs to exhaust it. Give either a sample password,
whose character classes and length are inferred, or the policy flags.
The password itself is never stored or logged.

Examples:
  cypherify password --lower --upper --digits --length 12
  cypherify password 'Tr0ub4dor&3'
  cypherify password --lower --length 10 --calibrate`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := rate.estimator(cmd, a)
			if err != nil {
				return err
			}

			var est *password.Estimate
			switch {
			case len(args) == 1 && cmd.Flags().Changed("length"):
				return errors.New("give either a password or policy flags, not both")
			case len(args) == 1:
				est, err = e.EstimatePassword(args[0])
			default:
				est, err = e.Estimate(policy)
			}
			if err != nil {
				return err
			}
			a.metrics.PasswordEstimates.Inc()

			doc := report.NewPasswordDocument(est)
			a.remember(cmd.Context(), doc, "")
			return a.output(cmd.OutOrStdout(), doc, func(w io.Writer) { report.PrintPasswordReport(w, est) })
		},
	}
	f := cmd.Flags()
	f.BoolVar(&policy.Lowercase, "lower", false, "lowercase letters (26)")
	f.BoolVar(&policy.Uppercase, "upper", false, "uppercase letters (26)")
	f.BoolVar(&policy.Digits, "digits", false, "digits (10)")
	f.BoolVar(&policy.Symbols, "symbols", false, "symbols (32)")
	f.IntVarP(&policy.Length, "length", "n", 8, "password length")
	rate.register(cmd)
	return cmd
}

func newPINCommand(a *app) *cobra.Command {
	var (
		attack string
		rate   rateFlags
	)
	cmd := &cobra.Command{
		Use:   "pin <pin>",
		Short: "Estimate how quickly a 4 or 6 digit PIN falls",
		Long: `PIN counts the guesses an attacker needs to find a 4 or 6 digit PIN.
A sequential attack counts upwards from all zeros; a dictionary attack tries
the most common PINs first and then counts upwards.

Examples:
  cypherify pin 1234 --attack dictionary
  cypherify pin 482915`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			atk, err := password.ParseAttack(attack)
			if err != nil {
				return err
			}
			e, err := rate.estimator(cmd, a)
			if err != nil {
				return err
			}
			res, err := e.AnalyzePIN(args[0], atk)
			if err != nil {
				return err
			}
			a.metrics.PasswordEstimates.Inc()

			doc := report.NewPINDocument(res)
			a.remember(cmd.Context(), doc, "")
			return a.output(cmd.OutOrStdout(), doc, func(w io.Writer) { report.PrintPINReport(w, res) })
		},
	}
	cmd.Flags().StringVar(&attack, "attack", "dictionary", "attack strategy: sequential or dictionary")
	rate.register(cmd)
	return cmd
}
