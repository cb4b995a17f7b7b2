package evaluator

import (
	"time"

	"github.com/robfig/cron/v3"

	"github.com/r3e-network/faas-trigger-engine/pkg/eventmodel"
)

const timeTriggerWindow = 60 * time.Second

// cronParser parses standard 5-field cron expressions (minute hour
// day-of-month month day-of-week).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// evaluateTime implements the Time condition: the trigger fires iff a
// scheduled cron tick occurred within the 60 seconds up to and including
// the event's timestamp, in the declared timezone, inclusive on both
// ends. Ticks strictly after the event never match, so a trigger fires in
// the minute following its schedule point, never early.
func evaluateTime(params map[string]interface{}, event *eventmodel.Event) (bool, error) {
	cronExpr, _ := params["cron"].(string)
	if cronExpr == "" {
		cronExpr = "* * * * *"
	}
	tzName, _ := params["timezone"].(string)
	if tzName == "" {
		tzName = "UTC"
	}

	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return false, eventmodel.InvalidParametersError("invalid cron expression: " + err.Error())
	}

	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return false, eventmodel.InvalidParametersError("invalid timezone: " + err.Error())
	}

	eventTime := time.Unix(event.Timestamp, 0).In(loc)
	windowStart := eventTime.Add(-timeTriggerWindow)

	// Next tick strictly after (windowStart - 1ns) is the earliest tick
	// >= windowStart, giving an inclusive lower bound; the upper bound
	// (eventTime) is checked directly below.
	tick := schedule.Next(windowStart.Add(-time.Nanosecond))
	if tick.After(eventTime) {
		return false, nil
	}
	return true, nil
}
