package main

import (
	"github.com/spf13/cobra"

	"github.com/study-analytics-engine/internal/analytics"
	"github.com/study-analytics-engine/internal/domain"
)

func patientsCmd(a *app) *cobra.Command {
	var search string
	cmd := &cobra.Command{
		Use:   "patients",
		Short: "List patients, optionally filtered by name or id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			patients, err := a.engine.Patients(search)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), patients)
		},
	}
	cmd.Flags().StringVar(&search, "search", "", "case-insensitive substring of patient name or id")
	return cmd
}

func diseasesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "diseases <patient-id>",
		Short: "List diseases with at least one score for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diseases, err := a.engine.GetAvailableDiseases(args[0])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), diseases)
		},
	}
}

func seriesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "series <patient-id> <disease>",
		Short: "Print the chronological score series for one disease",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			series, err := a.engine.GetComparisonSeries(args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), series)
		},
	}
}

type trendOutput struct {
	PatientID string       `json:"patient_id"`
	Disease   string       `json:"disease"`
	Trend     domain.Trend `json:"trend"`
	Threshold float64      `json:"threshold"`
}

func trendCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "trend <patient-id> <disease>",
		Short: "Classify a disease series as Improving, Worsening or Stable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			trend, err := a.engine.GetTrend(args[0], args[1])
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), trendOutput{
				PatientID: args[0],
				Disease:   args[1],
				Trend:     trend,
				Threshold: a.engine.Threshold(),
			})
		},
	}
}

func viewCmd(a *app) *cobra.Command {
	var (
		disease   string
		compareTo string
		allExams  bool
	)
	cmd := &cobra.Command{
		Use:   "view <patient-id>",
		Short: "Show the progression review for a patient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var opts []analytics.ViewOption
			if compareTo != "" {
				opts = append(opts, analytics.CompareAgainst(compareTo))
			}
			if allExams {
				opts = append(opts, analytics.AcrossExamTypes())
			}
			view, err := a.engine.GetComparisonView(args[0], disease, opts...)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), view)
		},
	}
	cmd.Flags().StringVar(&disease, "disease", "", "disease to review (defaults to the latest primary finding)")
	cmd.Flags().StringVar(&compareTo, "compare-to", "", "earlier study id to compare the latest scan against")
	cmd.Flags().BoolVar(&allExams, "all-exam-types", false, "plot every modality and body region instead of the latest exam type only")
	return cmd
}

// rangeFlag registers --range on cmd and returns a parser for its value.
func rangeFlag(cmd *cobra.Command) func() (domain.DateRange, error) {
	var raw string
	cmd.Flags().StringVar(&raw, "range", string(domain.RangeLast6Months), "date range: 30d, 6m or 12m")
	return func() (domain.DateRange, error) {
		r, err := domain.ParseDateRange(raw)
		if err != nil {
			return "", domain.WrapEngineError(domain.ErrCodeInvalidRange, "unsupported --range value", err)
		}
		return r, nil
	}
}

func monthlyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monthly",
		Short: "Monthly AI analysis agreement within a date range",
		Args:  cobra.NoArgs,
	}
	parse := rangeFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		r, err := parse()
		if err != nil {
			return err
		}
		buckets, err := a.engine.GetMonthlyAgreementTrend(r)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), buckets)
	}
	return cmd
}

func distributionCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "distribution",
		Short: "Primary disease counts within a date range",
		Args:  cobra.NoArgs,
	}
	parse := rangeFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		r, err := parse()
		if err != nil {
			return err
		}
		dist, err := a.engine.GetDiseaseDistribution(r)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), dist)
	}
	return cmd
}

func topDiseaseCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "top-disease",
		Short: "Most frequent primary disease within a date range",
		Args:  cobra.NoArgs,
	}
	parse := rangeFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		r, err := parse()
		if err != nil {
			return err
		}
		top, err := a.engine.GetTopDisease(r)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), map[string]string{"range": string(r), "top_disease": top})
	}
	return cmd
}

func summaryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "summary",
		Short: "Headline analytics KPIs within a date range",
		Args:  cobra.NoArgs,
	}
	parse := rangeFlag(cmd)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		r, err := parse()
		if err != nil {
			return err
		}
		summary, err := a.engine.GetSummary(r)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), summary)
	}
	return cmd
}

func exportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Write the loaded studies back out as a YAML dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.loader.Encode(cmd.OutOrStdout(), a.store.Snapshot().Studies)
		},
	}
}
