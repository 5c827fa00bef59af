package tools

import (
	"context"
	"fmt"
	"time"
)

// GetCurrentTimeInput represents the input parameters for GetCurrentTime.
type GetCurrentTimeInput struct {
	// Format is a Go reference-time layout.
	Format string `json:"format,omitempty" jsonschema_description:"Time format string according to Go's time formatting conventions, default format is : 2006-01-02T15:04:05Z07:00"`
	// Location is the IANA time zone identifier.
	Location string `json:"location,omitempty" jsonschema_description:"IANA time zone identifier (e.g., 'Asia/Colombo', 'America/New_York'), default is UTC"`
}

// GetCurrentTimeOutput represents the output of GetCurrentTime.
type GetCurrentTimeOutput struct {
	CurrentTime string `json:"currentTime"`
	Location    string `json:"location"`
}

// Clock returns the current time; tests replace it.
type Clock func() time.Time

// GetCurrentTime formats the current time according to the input parameters.
func (c Clock) GetCurrentTime(_ context.Context, input GetCurrentTimeInput) (GetCurrentTimeOutput, error) {
	format := input.Format
	if format == "" {
		format = time.RFC3339
	}

	loc := time.UTC
	if input.Location != "" {
		var err error
		loc, err = time.LoadLocation(input.Location)
		if err != nil {
			return GetCurrentTimeOutput{}, fmt.Errorf("invalid location: %w", err)
		}
	}

	now := time.Now
	if c != nil {
		now = c
	}
	return GetCurrentTimeOutput{
		CurrentTime: now().In(loc).Format(format),
		Location:    loc.String(),
	}, nil
}
