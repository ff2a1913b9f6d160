package reporting

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/acarl005/stripansi"

	"github.com/ethereum-optimism/infra/ibs-acceptor/types"
)

const (
	ScorecardFileName = "scorecard.json"
	SummaryFileName   = "summary.txt"
)

// Sink persists a finished scorecard.
type Sink interface {
	Complete(sc types.Scorecard) error
}

// RunDir returns the directory the sinks write a run's files to.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, "testrun-"+runID)
}

func writeRunFile(baseDir, runID, name string, content []byte) error {
	outputDir := RunDir(baseDir, runID)
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	path := filepath.Join(outputDir, name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// JSONFileSink writes the scorecard exactly as it is printed.
type JSONFileSink struct {
	baseDir string
}

func NewJSONFileSink(baseDir string) *JSONFileSink {
	return &JSONFileSink{baseDir: baseDir}
}

func (s *JSONFileSink) Complete(sc types.Scorecard) error {
	b, err := MarshalScorecard(sc)
	if err != nil {
		return fmt.Errorf("failed to marshal scorecard: %w", err)
	}
	return writeRunFile(s.baseDir, sc.RunID, ScorecardFileName, append(b, '\n'))
}

// TextSummarySink writes the results table without terminal colours.
type TextSummarySink struct {
	baseDir string
}

func NewTextSummarySink(baseDir string) *TextSummarySink {
	return &TextSummarySink{baseDir: baseDir}
}

func (s *TextSummarySink) Complete(sc types.Scorecard) error {
	content := stripansi.Strip(FormatTable(sc))
	return writeRunFile(s.baseDir, sc.RunID, SummaryFileName, []byte(content))
}

// CompleteAll hands sc to every sink, returning the combined errors.
func CompleteAll(sinks []Sink, sc types.Scorecard) error {
	var result error
	for _, s := range sinks {
		if err := s.Complete(sc); err != nil {
			result = errors.Join(result, err)
		}
	}
	return result
}
