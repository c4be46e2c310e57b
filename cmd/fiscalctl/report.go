package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	invoicingapp "github.com/clinicerp/backend/internal/application/invoicing"
	"github.com/spf13/cobra"
)

func newReportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Build 606/607 period reports",
	}

	var reportType string
	generate := &cobra.Command{
		Use:   "generate <YYYYMM>",
		Short: "Generate or regenerate the draft report of a period",
		Example: `  fiscalctl report generate 202601 --type 607 --tenant 550e8400-e29b-41d4-a716-446655440000
  fiscalctl report generate 202601 --type purchases -t 550e8400-e29b-41d4-a716-446655440000 -o json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}
			report, err := a.reports.Generate(cmd.Context(), tenantID, args[0], reportType)
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), report, func(w io.Writer) error {
				return writeReportSummary(w, report)
			})
		},
	}
	generate.Flags().StringVar(&reportType, "type", "607", "Report type: 606, 607, purchases or sales")

	balance := &cobra.Command{
		Use:     "tax-balance <YYYYMM>",
		Short:   "Show tax collected minus tax paid for a period",
		Example: `  fiscalctl report tax-balance 202601 --tenant 550e8400-e29b-41d4-a716-446655440000`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tenantID, err := a.tenantID()
			if err != nil {
				return err
			}
			result, err := a.reports.TaxBalance(cmd.Context(), tenantID, args[0])
			if err != nil {
				return err
			}
			return a.render(cmd.OutOrStdout(), result, func(w io.Writer) error {
				return writeTaxBalance(w, result)
			})
		},
	}

	cmd.AddCommand(generate, balance)
	return cmd
}

func writeReportSummary(w io.Writer, r *invoicingapp.ReportResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Report:\t%s %s (%s)\n", r.ReportType, r.Period, r.Status)
	fmt.Fprintf(tw, "Records:\t%d\n", r.TotalRecords)
	fmt.Fprintf(tw, "Amount:\t%s\n", r.TotalAmount)
	fmt.Fprintf(tw, "Tax:\t%s\n", r.TotalTax)
	fmt.Fprintf(tw, "Checksum:\t%s\n", r.Checksum)
	if err := tw.Flush(); err != nil {
		return err
	}
	if len(r.Groups) == 0 {
		return nil
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tTYPE\tRECORDS\tAMOUNT\tTAX\t")
	for _, g := range r.Groups {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\t\n",
			g.Code, g.DocumentType, g.Records, g.TotalAmount.StringFixed(2), g.TaxAmount.StringFixed(2))
	}
	return tw.Flush()
}

func writeTaxBalance(w io.Writer, b *invoicingapp.TaxBalanceResponse) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Period:\t%s\n", b.Period)
	fmt.Fprintf(tw, "Tax collected:\t%s\n", b.TaxCollected)
	fmt.Fprintf(tw, "Tax paid:\t%s\n", b.TaxPaid)
	fmt.Fprintf(tw, "Balance:\t%s\n", b.Balance)
	return tw.Flush()
}
