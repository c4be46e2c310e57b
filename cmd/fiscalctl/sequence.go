package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/spf13/cobra"
)

func newSequenceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sequence",
		Aliases: []string{"seq"},
		Short:   "Inspect authorized fiscal number ranges",
	}

	var activeOnly bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List the fiscal sequences of a tenant",
		Example: `  fiscalctl sequence list --tenant 550e8400-e29b-41d4-a716-446655440000
  fiscalctl sequence list -t 550e8400-e29b-41d4-a716-446655440000 --active -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}
			sequences, err := a.sequences.List(cmd.Context(), tenantID, activeOnly)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), sequences, func(w io.Writer) error {
				return writeSequenceTable(w, sequences)
			})
		},
	}
	list.Flags().BoolVar(&activeOnly, "active", false, "Only active sequences")

	status := &cobra.Command{
		Use:     "status <document-type>",
		Short:   "Show the active range of a document type",
		Example: `  fiscalctl sequence status final-consumer --tenant 550e8400-e29b-41d4-a716-446655440000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}
			seq, err := a.sequences.GetActiveStatus(cmd.Context(), tenantID, args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), seq, func(w io.Writer) error {
				return writeSequenceStatus(w, seq)
			})
		},
	}

	cmd.AddCommand(list, status)
	return cmd
}

func writeSequenceTable(w io.Writer, sequences []invoicingapp.SequenceResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tPREFIX\tRANGE\tCURRENT\tREMAINING\tEXPIRES\tSTATE")
	for _, s := range sequences {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%d\t%d\t%s\t%s\n",
			s.DocumentType, s.Prefix, s.StartNumber, s.EndNumber, s.CurrentNumber,
			s.Remaining, s.ExpirationDate.Format("2006-01-02"), sequenceState(s))
	}
	return tw.Flush()
}

func writeSequenceStatus(w io.Writer, s *invoicingapp.SequenceResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Document type:\t%s (%s)\n", s.DocumentType, s.DocumentCode)
	fmt.Fprintf(tw, "Range:\t%s%0*d - %s%0*d\n", s.Prefix, s.PadWidth, s.StartNumber, s.Prefix, s.PadWidth, s.EndNumber)
	fmt.Fprintf(tw, "Issued:\t%d\n", s.Issued)
	fmt.Fprintf(tw, "Remaining:\t%d\n", s.Remaining)
	if s.NextFiscal != "" {
		fmt.Fprintf(tw, "Next number:\t%s\n", s.NextFiscal)
	}
	fmt.Fprintf(tw, "Expires:\t%s\n", s.ExpirationDate.Format("2006-01-02"))
	fmt.Fprintf(tw, "State:\t%s\n", sequenceState(*s))
	return tw.Flush()
}

func sequenceState(s invoicingapp.SequenceResponse) string {
	switch {
	case !s.IsActive:
		return "inactive"
	case s.Expired:
		return "expired"
	case s.Exhausted:
		return "exhausted"
	case s.RunningLow:
		return "running-low"
	default:
		return "ok"
	}
}
