package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hrygo/timetable/server/service/timetable"
)

var (
	checkCmd = &cobra.Command{
		Use:   "check",
		Short: "Check a candidate schedule against a snapshot file",
		Long: `Check reads committed schedule records from --snapshot and a single
candidate record from --candidate, then reports every violated rule.
The command exits non-zero when the candidate is not legal.`,
		RunE: runCheck,
	}

	suggestCmd = &cobra.Command{
		Use:   "suggest",
		Short: "Suggest legal slots for a section and professor",
		RunE:  runSuggest,
	}
)

func init() {
	for _, cmd := range []*cobra.Command{checkCmd, suggestCmd} {
		cmd.Flags().String("snapshot", "", "YAML or JSON file with the committed schedule records")
		cmd.Flags().StringSlice("exclude", nil, "record ids to ignore, e.g. the record being edited")
		cmd.Flags().StringP("output", "o", "yaml", `output format: "yaml" or "json"`)
		_ = cmd.MarkFlagRequired("snapshot")
	}
	checkCmd.Flags().String("candidate", "", "YAML or JSON file with the candidate record")
	checkCmd.Flags().Bool("suggest", false, "also list alternative slots when the candidate is not legal")
	_ = checkCmd.MarkFlagRequired("candidate")

	suggestCmd.Flags().String("section", "", "section id")
	suggestCmd.Flags().String("professor", "", "professor id")
	suggestCmd.Flags().String("days", "", "comma separated weekdays, e.g. monday,wed")
	suggestCmd.Flags().Int("duration", timetable.DefaultDurationMinutes, "meeting length in minutes")
	suggestCmd.Flags().String("delivery-mode", "Onsite", `delivery mode: "Onsite" or "Online"`)
	suggestCmd.Flags().Int("max", timetable.SuggestionCount, "maximum number of suggestions")
	for _, name := range []string{"section", "professor", "days"} {
		_ = suggestCmd.MarkFlagRequired(name)
	}
}

func windowConfig() (timetable.WindowConfig, error) {
	return timetable.WindowConfigFromProfile(loadProfile())
}

type checkOutput struct {
	Legal       bool                  `json:"legal" yaml:"legal"`
	Violations  []timetable.Violation `json:"violations" yaml:"violations"`
	Suggestions []string              `json:"suggestions,omitempty" yaml:"suggestions,omitempty"`
}

func runCheck(cmd *cobra.Command, _ []string) error {
	cfg, err := windowConfig()
	if err != nil {
		return err
	}
	records, err := loadRecords(mustString(cmd, "snapshot"))
	if err != nil {
		return err
	}
	raw, err := loadRecord(mustString(cmd, "candidate"))
	if err != nil {
		return err
	}

	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	committed := timetable.ExcludeIDs(timetable.NormalizeAll(records), exclude...)
	candidate := timetable.NormalizeCandidate(raw)
	if err := timetable.ValidateCandidate(candidate); err != nil {
		return err
	}

	violations := timetable.CheckConflicts(candidate, committed, cfg)
	out := checkOutput{Legal: len(violations) == 0, Violations: violations}
	if out.Violations == nil {
		out.Violations = []timetable.Violation{}
	}
	if withSuggestions, _ := cmd.Flags().GetBool("suggest"); withSuggestions && !out.Legal {
		for _, slot := range timetable.SuggestSlots(timetable.ParamsFor(candidate), committed, cfg, 0) {
			out.Suggestions = append(out.Suggestions, slot.Label())
		}
	}
	if err := writeOutput(mustString(cmd, "output"), out); err != nil {
		return err
	}
	if !out.Legal {
		return fmt.Errorf("candidate violates %d rule(s)", len(violations))
	}
	return nil
}

func runSuggest(cmd *cobra.Command, _ []string) error {
	cfg, err := windowConfig()
	if err != nil {
		return err
	}
	records, err := loadRecords(mustString(cmd, "snapshot"))
	if err != nil {
		return err
	}
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	committed := timetable.ExcludeIDs(timetable.NormalizeAll(records), exclude...)

	duration, _ := cmd.Flags().GetInt("duration")
	maxSlots, _ := cmd.Flags().GetInt("max")
	schoolYear, semester := viper.GetString("school-year"), viper.GetString("semester")
	params := timetable.SuggestParams{
		Term:            timetable.Term{SchoolYear: schoolYear, Semester: semester},
		SectionID:       mustString(cmd, "section"),
		ProfessorID:     mustString(cmd, "professor"),
		Days:            timetable.ParseDays(mustString(cmd, "days")),
		DurationMinutes: duration,
		DeliveryMode:    timetable.ParseDeliveryMode(mustString(cmd, "delivery-mode")),
	}
	if len(params.Days) == 0 {
		return fmt.Errorf("--days contains no recognised weekday")
	}

	slots := timetable.SuggestSlots(params, committed, cfg, maxSlots)
	labels := make([]string, 0, len(slots))
	for _, slot := range slots {
		labels = append(labels, slot.Label())
	}
	return writeOutput(mustString(cmd, "output"), map[string]any{"suggestions": labels})
}

func mustString(cmd *cobra.Command, name string) string {
	v, err := cmd.Flags().GetString(name)
	if err != nil {
		panic(err)
	}
	return v
}

func writeJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
