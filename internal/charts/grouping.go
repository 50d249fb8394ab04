package charts

import "slices"

const (
	GroupDay   = "day"
	GroupWeek  = "week"
	GroupMonth = "month"
)

type groupingRule struct {
	recommended string
	available   []string
	message     string
}

var groupingRules = map[int]groupingRule{
	1:  {GroupDay, []string{GroupDay}, "Para 1 mes se recomienda agrupación diaria"},
	3:  {GroupDay, []string{GroupDay, GroupWeek}, "Para 3 meses se recomienda agrupación diaria o semanal"},
	6:  {GroupWeek, []string{GroupWeek, GroupMonth}, "Para 6 meses se recomienda agrupación semanal"},
	12: {GroupMonth, []string{GroupWeek, GroupMonth}, "Para 1 año se recomienda agrupación mensual para mejor visualización"},
}

// Grouping is the time bucketing chosen for a look-back window.
type Grouping struct {
	MonthsBack  int      `json:"months_back"`
	Requested   string   `json:"requested"`
	Selected    string   `json:"selected"`
	Recommended string   `json:"recommended,omitempty"`
	Available   []string `json:"available"`
	Disabled    []string `json:"disabled"`
	Optimal     string   `json:"optimal,omitempty"`
	// Message is set when the request was switched to the recommendation.
	Message string `json:"message,omitempty"`
}

func (g Grouping) Switched() bool { return g.Selected != g.Requested }

func validGroup(s string) bool { return s == GroupDay || s == GroupWeek || s == GroupMonth }

// ResolveGrouping picks the grouping for monthsBack. A disabled request is
// replaced by the recommendation; unknown windows keep any valid request.
func ResolveGrouping(monthsBack int, requested string) Grouping {
	all := []string{GroupDay, GroupWeek, GroupMonth}
	g := Grouping{MonthsBack: monthsBack, Requested: requested, Selected: requested}

	rule, ok := groupingRules[monthsBack]
	if !ok {
		if !validGroup(requested) {
			g.Selected = GroupDay
		}
		g.Available = all
		g.Disabled = []string{}
		return g
	}

	g.Recommended = rule.recommended
	g.Available = slices.Clone(rule.available)
	g.Disabled = []string{}
	for _, v := range all {
		if !slices.Contains(rule.available, v) {
			g.Disabled = append(g.Disabled, v)
		}
	}
	if monthsBack == 12 {
		g.Optimal = GroupMonth
	}
	if !slices.Contains(rule.available, requested) {
		g.Selected = rule.recommended
		g.Message = rule.message
	}
	return g
}

// timeScale sets the x axis ticks for a grouping; it only affects labels.
func timeScale(monthsBack int, groupBy string, mobile bool) TimeScale {
	pick := func(m, d string) string {
		if mobile {
			return m
		}
		return d
	}
	switch groupBy {
	case GroupWeek:
		step := 2
		if monthsBack <= 3 {
			step = 1
		}
		return TimeScale{Unit: GroupWeek, Round: GroupWeek, StepSize: step, DisplayFormats: map[string]string{
			"week":  "dd/MM",
			"month": "LLL",
		}}
	case GroupMonth:
		return TimeScale{Unit: GroupMonth, Round: GroupMonth, StepSize: 1, DisplayFormats: map[string]string{
			"month": "LLL yyyy",
			"year":  "yyyy",
		}}
	default:
		step := 7
		switch {
		case monthsBack <= 1:
			step = 2
		case monthsBack <= 3:
			step = 5
		}
		return TimeScale{Unit: GroupDay, Round: GroupDay, StepSize: step, DisplayFormats: map[string]string{
			"day":   pick("dd-LLL", "dd/MM"),
			"week":  pick("dd-LLL", "dd/MM"),
			"month": pick("LLL", "MMM yyyy"),
		}}
	}
}
