package models

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type RecurrenceType string

const (
	DailyRecurrence   RecurrenceType = "daily"
	WeeklyRecurrence  RecurrenceType = "weekly"
	MonthlyRecurrence RecurrenceType = "monthly"
	YearlyRecurrence  RecurrenceType = "yearly"
)

// Rule is the variant part of a recurrence pattern. It is implemented only by
// DailyRule, WeeklyRule, MonthlyRule and YearlyRule.
type Rule interface {
	Type() RecurrenceType
	Every() int
	isRule()
}

type DailyRule struct {
	Interval int `json:"interval" validate:"min=1,max=365"`
}

type WeeklyRule struct {
	Interval   int            `json:"interval" validate:"min=1,max=365"`
	DaysOfWeek []time.Weekday `json:"days_of_week" validate:"min=1,dive,min=0,max=6"`
}

type MonthlyRule struct {
	Interval int `json:"interval" validate:"min=1,max=365"`
	// DayOfMonth is clamped to the last day of short months when generating.
	DayOfMonth int `json:"day_of_month" validate:"min=1,max=31"`
}

type YearlyRule struct {
	Interval int `json:"interval" validate:"min=1,max=365"`
}

func (DailyRule) Type() RecurrenceType   { return DailyRecurrence }
func (WeeklyRule) Type() RecurrenceType  { return WeeklyRecurrence }
func (MonthlyRule) Type() RecurrenceType { return MonthlyRecurrence }
func (YearlyRule) Type() RecurrenceType  { return YearlyRecurrence }

func (r DailyRule) Every() int   { return r.Interval }
func (r WeeklyRule) Every() int  { return r.Interval }
func (r MonthlyRule) Every() int { return r.Interval }
func (r YearlyRule) Every() int  { return r.Interval }

func (DailyRule) isRule()   {}
func (WeeklyRule) isRule()  {}
func (MonthlyRule) isRule() {}
func (YearlyRule) isRule()  {}

// RecurrencePattern describes how a completed task spawns its next occurrence.
type RecurrencePattern struct {
	Rule    Rule
	EndDate *time.Time // Last date an occurrence may fall on; nil repeats forever
}

func NewDailyPattern(interval int) RecurrencePattern {
	return RecurrencePattern{Rule: DailyRule{Interval: interval}}
}

func NewWeeklyPattern(interval int, days ...time.Weekday) RecurrencePattern {
	return RecurrencePattern{Rule: WeeklyRule{Interval: interval, DaysOfWeek: days}}
}

func NewMonthlyPattern(interval, dayOfMonth int) RecurrencePattern {
	return RecurrencePattern{Rule: MonthlyRule{Interval: interval, DayOfMonth: dayOfMonth}}
}

func NewYearlyPattern(interval int) RecurrencePattern {
	return RecurrencePattern{Rule: YearlyRule{Interval: interval}}
}

// Until returns a copy of p that stops at end.
func (p RecurrencePattern) Until(end time.Time) RecurrencePattern {
	p.EndDate = &end
	return p
}

// Type returns the variant tag, or "" when no rule is set.
func (p RecurrencePattern) Type() RecurrenceType {
	if p.Rule == nil {
		return ""
	}
	return p.Rule.Type()
}

// patternWire is the flat, type-tagged encoding shared by JSON, YAML and the JSONB column.
type patternWire struct {
	Type       RecurrenceType `json:"type" yaml:"type"`
	Interval   int            `json:"interval" yaml:"interval"`
	DaysOfWeek []int          `json:"days_of_week,omitempty" yaml:"days_of_week,omitempty,flow"`
	DayOfMonth int            `json:"day_of_month,omitempty" yaml:"day_of_month,omitempty"`
	EndDate    *time.Time     `json:"end_date,omitempty" yaml:"end_date,omitempty"`
}

func (p RecurrencePattern) toWire() patternWire {
	w := patternWire{EndDate: p.EndDate}
	switch r := p.Rule.(type) {
	case DailyRule:
		w.Type, w.Interval = DailyRecurrence, r.Interval
	case WeeklyRule:
		w.Type, w.Interval = WeeklyRecurrence, r.Interval
		for _, d := range r.DaysOfWeek {
			w.DaysOfWeek = append(w.DaysOfWeek, int(d))
		}
	case MonthlyRule:
		w.Type, w.Interval, w.DayOfMonth = MonthlyRecurrence, r.Interval, r.DayOfMonth
	case YearlyRule:
		w.Type, w.Interval = YearlyRecurrence, r.Interval
	}
	return w
}

func (w patternWire) toPattern() (RecurrencePattern, error) {
	p := RecurrencePattern{EndDate: w.EndDate}
	switch w.Type {
	case DailyRecurrence:
		p.Rule = DailyRule{Interval: w.Interval}
	case WeeklyRecurrence:
		days := make([]time.Weekday, 0, len(w.DaysOfWeek))
		for _, d := range w.DaysOfWeek {
			days = append(days, time.Weekday(d))
		}
		p.Rule = WeeklyRule{Interval: w.Interval, DaysOfWeek: days}
	case MonthlyRecurrence:
		p.Rule = MonthlyRule{Interval: w.Interval, DayOfMonth: w.DayOfMonth}
	case YearlyRecurrence:
		p.Rule = YearlyRule{Interval: w.Interval}
	case "":
		// left for validation to report
	default:
		return RecurrencePattern{}, errors.Errorf("unknown recurrence type '%s'", w.Type)
	}
	return p, nil
}

func (p RecurrencePattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toWire())
}

func (p *RecurrencePattern) UnmarshalJSON(data []byte) error {
	var w patternWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	decoded, err := w.toPattern()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

func (p RecurrencePattern) MarshalYAML() (interface{}, error) {
	return p.toWire(), nil
}

func (p *RecurrencePattern) UnmarshalYAML(value *yaml.Node) error {
	var w patternWire
	if err := value.Decode(&w); err != nil {
		return err
	}
	decoded, err := w.toPattern()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
