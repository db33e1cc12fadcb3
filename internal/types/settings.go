package types

import (
	"fmt"
	"time"

	trackerrors "worktrack/internal/infrastructure/errors"
)

// Settings are the user's preferences, stored in the snapshot
type Settings struct {
	RequiredDailyPresence int64  `json:"requiredDailyPresence"` // ms
	TimerMaxDuration      int64  `json:"timerMaxDuration"`      // ms
	AutoSaveInterval      int64  `json:"autoSaveInterval"`      // seconds
	DataRetentionWeeks    int    `json:"dataRetentionWeeks"`
	Theme                 string `json:"theme"`
	TimeFormat            string `json:"timeFormat"`
	ShowSeconds           bool   `json:"showSeconds"`
	WeekStartsOnMonday    bool   `json:"weekStartsOnMonday"`
}

// DefaultSettings returns the first-run settings
func DefaultSettings() Settings {
	return Settings{
		RequiredDailyPresence: Millis(8 * time.Hour),
		TimerMaxDuration:      Millis(DefaultTimerMaxDuration),
		AutoSaveInterval:      30,
		DataRetentionWeeks:    5,
		Theme:                 "system",
		TimeFormat:            "24h",
		ShowSeconds:           true,
		WeekStartsOnMonday:    true,
	}
}

// TimerMax returns the task timer cap
func (s Settings) TimerMax() time.Duration { return FromMillis(s.TimerMaxDuration) }

// RequiredPresence returns the daily presence target
func (s Settings) RequiredPresence() time.Duration { return FromMillis(s.RequiredDailyPresence) }

// AutoSaveEvery returns the debounce interval for auto-save
func (s Settings) AutoSaveEvery() time.Duration {
	return time.Duration(s.AutoSaveInterval) * time.Second
}

func (s Settings) Validate() error {
	const op = "Settings.Validate"
	switch {
	case s.RequiredPresence() < time.Hour || s.RequiredPresence() > 16*time.Hour:
		return trackerrors.HandleValidationError(op, "requiredDailyPresence", fmt.Sprint(s.RequiredDailyPresence), "must be between 1h and 16h")
	case s.TimerMax() < time.Hour || s.TimerMax() > TimerMaxCeiling:
		return trackerrors.HandleValidationError(op, "timerMaxDuration", fmt.Sprint(s.TimerMaxDuration), "must be between 1h and 24h")
	case s.AutoSaveInterval < 1 || s.AutoSaveInterval > 300:
		return trackerrors.HandleValidationError(op, "autoSaveInterval", fmt.Sprint(s.AutoSaveInterval), "must be between 1 and 300 seconds")
	case s.DataRetentionWeeks < 1 || s.DataRetentionWeeks > 52:
		return trackerrors.HandleValidationError(op, "dataRetentionWeeks", fmt.Sprint(s.DataRetentionWeeks), "must be between 1 and 52")
	case s.TimeFormat != "" && s.TimeFormat != "24h" && s.TimeFormat != "12h":
		return trackerrors.HandleValidationError(op, "timeFormat", s.TimeFormat, "must be 24h or 12h")
	}
	return nil
}

// SettingsUpdate is a partial update; nil fields are left unchanged
type SettingsUpdate struct {
	RequiredDailyPresence *int64  `json:"requiredDailyPresence,omitempty"`
	TimerMaxDuration      *int64  `json:"timerMaxDuration,omitempty"`
	AutoSaveInterval      *int64  `json:"autoSaveInterval,omitempty"`
	DataRetentionWeeks    *int    `json:"dataRetentionWeeks,omitempty"`
	Theme                 *string `json:"theme,omitempty"`
	TimeFormat            *string `json:"timeFormat,omitempty"`
	ShowSeconds           *bool   `json:"showSeconds,omitempty"`
	WeekStartsOnMonday    *bool   `json:"weekStartsOnMonday,omitempty"`
}

// Fields lists the names of the fields the update touches
func (u SettingsUpdate) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(u.RequiredDailyPresence != nil, "requiredDailyPresence")
	add(u.TimerMaxDuration != nil, "timerMaxDuration")
	add(u.AutoSaveInterval != nil, "autoSaveInterval")
	add(u.DataRetentionWeeks != nil, "dataRetentionWeeks")
	add(u.Theme != nil, "theme")
	add(u.TimeFormat != nil, "timeFormat")
	add(u.ShowSeconds != nil, "showSeconds")
	add(u.WeekStartsOnMonday != nil, "weekStartsOnMonday")
	return fields
}

// Apply returns s with the update applied, or an error leaving s untouched
func (s Settings) Apply(u SettingsUpdate) (Settings, error) {
	next := s
	if u.RequiredDailyPresence != nil {
		next.RequiredDailyPresence = *u.RequiredDailyPresence
	}
	if u.TimerMaxDuration != nil {
		next.TimerMaxDuration = *u.TimerMaxDuration
	}
	if u.AutoSaveInterval != nil {
		next.AutoSaveInterval = *u.AutoSaveInterval
	}
	if u.DataRetentionWeeks != nil {
		next.DataRetentionWeeks = *u.DataRetentionWeeks
	}
	if u.Theme != nil {
		next.Theme = *u.Theme
	}
	if u.TimeFormat != nil {
		next.TimeFormat = *u.TimeFormat
	}
	if u.ShowSeconds != nil {
		next.ShowSeconds = *u.ShowSeconds
	}
	if u.WeekStartsOnMonday != nil {
		next.WeekStartsOnMonday = *u.WeekStartsOnMonday
	}
	if err := next.Validate(); err != nil {
		return s, err
	}
	return next, nil
}

// FillDefaults replaces zero-valued numeric fields with defaults
func (s Settings) FillDefaults() Settings {
	d := DefaultSettings()
	if s.RequiredDailyPresence == 0 {
		s.RequiredDailyPresence = d.RequiredDailyPresence
	}
	if s.TimerMaxDuration == 0 {
		s.TimerMaxDuration = d.TimerMaxDuration
	}
	if s.AutoSaveInterval == 0 {
		s.AutoSaveInterval = d.AutoSaveInterval
	}
	if s.DataRetentionWeeks == 0 {
		s.DataRetentionWeeks = d.DataRetentionWeeks
	}
	if s.Theme == "" {
		s.Theme = d.Theme
	}
	if s.TimeFormat == "" {
		s.TimeFormat = d.TimeFormat
	}
	return s
}
