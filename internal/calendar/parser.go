package calendar

import (
	"fmt"
	"strings"
	"time"

	"villasole/internal/models"
)

// ParseICS extracts VEVENT entries from an iCalendar feed. It covers the
// subset rental platforms emit: DTSTART/DTEND as DATE or DATE-TIME (with or
// without UTC suffix), folded lines, and escaped text values.
func ParseICS(raw string) ([]models.CalendarEvent, error) {
	lines := unfoldLines(raw)

	var events []models.CalendarEvent
	var current *models.CalendarEvent
	inEvent := false

	for _, line := range lines {
		switch {
		case line == "BEGIN:VEVENT":
			inEvent = true
			current = &models.CalendarEvent{}
		case line == "END:VEVENT":
			if inEvent && current != nil {
				if current.Start.IsZero() || current.End.IsZero() {
					// Events without both boundaries cannot block dates.
					inEvent = false
					current = nil
					continue
				}
				if !current.End.After(current.Start) {
					return nil, fmt.Errorf("event %s: DTEND %s not after DTSTART %s",
						current.UID, current.End.Format(models.DateFormat), current.Start.Format(models.DateFormat))
				}
				events = append(events, *current)
			}
			inEvent = false
			current = nil
		default:
			if !inEvent || current == nil {
				continue
			}
			if err := applyEventLine(current, line); err != nil {
				return nil, err
			}
		}
	}

	return events, nil
}

func applyEventLine(event *models.CalendarEvent, line string) error {
	name, value, ok := splitContentLine(line)
	if !ok {
		return nil
	}

	switch name {
	case "UID":
		event.UID = unescapeText(value)
	case "SUMMARY":
		event.Summary = unescapeText(value)
	case "DESCRIPTION":
		event.Description = unescapeText(value)
	case "DTSTART":
		t, err := parseICSTime(value)
		if err != nil {
			return fmt.Errorf("parse DTSTART %q: %w", value, err)
		}
		event.Start = t
	case "DTEND":
		t, err := parseICSTime(value)
		if err != nil {
			return fmt.Errorf("parse DTEND %q: %w", value, err)
		}
		event.End = t
	}
	return nil
}

// splitContentLine separates "NAME;PARAM=X:value" into the property name and
// its value, dropping parameters.
func splitContentLine(line string) (name, value string, ok bool) {
	colon := strings.Index(line, ":")
	if colon < 0 {
		return "", "", false
	}
	name = line[:colon]
	value = line[colon+1:]
	if semi := strings.Index(name, ";"); semi >= 0 {
		name = name[:semi]
	}
	return strings.ToUpper(strings.TrimSpace(name)), strings.TrimSpace(value), true
}

func parseICSTime(value string) (time.Time, error) {
	layouts := []string{
		"20060102",          // DATE
		"20060102T150405Z",  // UTC DATE-TIME
		"20060102T150405",   // floating DATE-TIME
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, value); err == nil {
			// Blocking granularity is whole days.
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported time format")
}

// unfoldLines joins folded continuation lines (RFC 5545 §3.1) and strips
// carriage returns.
func unfoldLines(raw string) []string {
	rawLines := strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n")

	var lines []string
	for _, line := range rawLines {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}
		if (strings.HasPrefix(line, " ") || strings.HasPrefix(line, "\t")) && len(lines) > 0 {
			lines[len(lines)-1] += line[1:]
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

func unescapeText(value string) string {
	replacer := strings.NewReplacer(`\n`, "\n", `\N`, "\n", `\,`, ",", `\;`, ";", `\\`, `\`)
	return replacer.Replace(value)
}
