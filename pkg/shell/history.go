package shell

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"

	"github.com/harun/nodeshell/internal/tracing"
)

// DefaultHistorySize is the number of entries kept per profile by Compact
const DefaultHistorySize = 1000

// HistoryEntry is one executed command line
type HistoryEntry struct {
	Line      string    `json:"line"`
	Cwd       string    `json:"cwd"`
	Workspace string    `json:"workspace"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// History persists command lines as one JSONL file per profile
type History struct {
	dir        string
	maxEntries int
	logger     zerolog.Logger
	mu         sync.Mutex
}

// NewHistory creates the history directory when missing. maxEntries <= 0
// selects DefaultHistorySize.
func NewHistory(dir string, maxEntries int, logger zerolog.Logger) (*History, error) {
	if dir == "" {
		return nil, fmt.Errorf("history directory is required")
	}
	if maxEntries <= 0 {
		maxEntries = DefaultHistorySize
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return &History{
		dir:        dir,
		maxEntries: maxEntries,
		logger:     logger.With().Str("component", "history").Logger(),
	}, nil
}

// validateProfile keeps profile names path-safe
func validateProfile(profile string) error {
	if profile == "" {
		return fmt.Errorf("profile cannot be empty")
	}
	if strings.Contains(profile, "..") {
		return fmt.Errorf("profile cannot contain '..'")
	}
	if strings.ContainsAny(profile, "/\\\x00") {
		return fmt.Errorf("profile cannot contain path separators or null bytes")
	}
	return nil
}

func (h *History) path(profile string) string {
	return filepath.Join(h.dir, profile+".jsonl")
}

// Append writes entry to the profile's history file
func (h *History) Append(ctx context.Context, profile string, entry HistoryEntry) (err error) {
	_, span := tracing.StartSpan(ctx, tracerName, "history.append", attribute.String("profile", profile))
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateProfile(profile); err != nil {
		return err
	}
	if strings.TrimSpace(entry.Line) == "" {
		return fmt.Errorf("history line cannot be empty")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal history entry: %w", err)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.OpenFile(h.path(profile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write history entry: %w", err)
	}
	return nil
}

// Load returns the profile's entries, oldest first. Corrupted lines are skipped.
func (h *History) Load(ctx context.Context, profile string) (entries []HistoryEntry, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "history.load", attribute.String("profile", profile))
	defer func() { tracing.EndSpan(span, err) }()
	logger := tracing.LoggerFromContext(ctx, h.logger)

	if err := validateProfile(profile); err != nil {
		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	file, err := os.Open(h.path(profile))
	if err != nil {
		if os.IsNotExist(err) {
			return []HistoryEntry{}, nil
		}
		return nil, fmt.Errorf("failed to open history file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		if line == "" {
			continue
		}

		var entry HistoryEntry
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.Line == "" {
			logger.Warn().Str("profile", profile).Int("line", lineNum).Msg("Skipping invalid history line")
			continue
		}
		entries = append(entries, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}
	return entries, nil
}

// Compact rewrites the profile's history keeping the newest entries up to the
// configured limit, dropping corrupted lines on the way
func (h *History) Compact(ctx context.Context, profile string) error {
	entries, err := h.Load(ctx, profile)
	if err != nil {
		return err
	}
	if len(entries) > h.maxEntries {
		entries = entries[len(entries)-h.maxEntries:]
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	historyPath := h.path(profile)
	tempPath := historyPath + ".tmp"

	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}

	w := bufio.NewWriter(file)
	for _, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			file.Close()
			os.Remove(tempPath)
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		w.Write(append(data, '\n'))
	}
	if err := w.Flush(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync file: %w", err)
	}
	file.Close()

	if err := os.Rename(tempPath, historyPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	h.logger.Debug().Str("profile", profile).Int("entries", len(entries)).Msg("History compacted")
	return nil
}

// Clear removes the profile's history file
func (h *History) Clear(profile string) error {
	if err := validateProfile(profile); err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if err := os.Remove(h.path(profile)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete history file: %w", err)
	}
	return nil
}
