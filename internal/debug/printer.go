package debug

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"griefing/internal/models"
)

// PrintAgreement logs the agreement snapshot in JSON format
func PrintAgreement(agreement *models.Agreement) {
	jsonData, err := json.MarshalIndent(agreement, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal agreement to JSON", "error", err)
		return
	}

	slog.Debug("Agreement details", "json", string(jsonData))
}

// PrintEvent logs a single event in JSON format
func PrintEvent(event *models.Event) {
	jsonData, err := json.MarshalIndent(event, "", "  ")
	if err != nil {
		slog.Error("Failed to marshal event to JSON", "error", err)
		return
	}

	slog.Debug("Event details", "event_type", event.EventType, "json", string(jsonData))
}

// WriteJSON writes v to w as indented JSON followed by a newline
func WriteJSON(w io.Writer, v interface{}) error {
	jsonData, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal to JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}
