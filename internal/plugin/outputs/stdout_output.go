package outputs

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
)

const (
	colorReset = "\033[0m"
	colorGreen = "\033[32m"
	colorCyan  = "\033[36m"
)

// StdoutOutput writes batches to standard output
type StdoutOutput struct {
	plugin.BasePlugin
	colorize bool
	format   string

	mu  sync.Mutex
	out io.Writer
}

// NewStdoutOutput creates a new stdout output plugin
func NewStdoutOutput(id string) *StdoutOutput {
	return &StdoutOutput{
		BasePlugin: plugin.NewBasePlugin(id, "Stdout Output", model.OutputPluginType),
		colorize:   false,
		format:     "text",
		out:        os.Stdout,
	}
}

// SetWriter redirects output, mainly for tests.
func (s *StdoutOutput) SetWriter(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = w
}

// Initialize prepares the stdout output for operation
func (s *StdoutOutput) Initialize() bool {
	s.colorize = s.ConfigBool("colorize", s.colorize)
	s.format = s.ConfigString("format", s.format)

	s.SetStatus(model.StatusInitialized)
	return true
}

// Start begins stdout output operation
func (s *StdoutOutput) Start() bool {
	s.SetStatus(model.StatusRunning)
	return true
}

// Stop halts stdout output operation
func (s *StdoutOutput) Stop() bool {
	s.SetStatus(model.StatusStopped)
	return true
}

// Validate accepts the text and json formats
func (s *StdoutOutput) Validate() bool {
	switch s.ConfigString("format", "text") {
	case "text", "json":
		return true
	}
	return false
}

// Send writes every record of the batch, one per line
func (s *StdoutOutput) Send(batch *model.DataBatch) bool {
	if batch == nil || batch.Size() == 0 {
		return true
	}

	if s.GetStatus() != model.StatusRunning {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch batch.BatchType {
	case model.ProductRecordType:
		for _, product := range batch.Products {
			if s.format == "json" {
				s.writeJSON(product)
			} else {
				s.writeProduct(batch.Timestamp, product)
			}
		}
	case model.TriggerRecordType:
		for _, msg := range batch.Triggers {
			if s.format == "json" {
				s.writeJSON(msg)
			} else {
				s.writeTrigger(msg)
			}
		}
	}

	return true
}

func (s *StdoutOutput) writeJSON(v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintln(s.out, string(data))
}

func (s *StdoutOutput) writeProduct(ts time.Time, p model.Product) {
	fmt.Fprintf(s.out, "[%s] %s ProductId=%d Name=%s Cost=%d\n",
		ts.Format(time.RFC3339), s.label(model.ProductRecordType, colorGreen), p.ProductID, p.Name, p.Cost)
}

func (s *StdoutOutput) writeTrigger(msg model.TriggerMessage) {
	fmt.Fprintf(s.out, "[%s] %s %s (%s): %s\n",
		msg.ReceivedAt.Format(time.RFC3339), s.label(model.TriggerRecordType, colorCyan), msg.Queue, msg.ID, msg.Payload)

	if len(msg.Attributes) > 0 {
		attributesJSON, _ := json.Marshal(msg.Attributes)
		fmt.Fprintf(s.out, "  %s\n", string(attributesJSON))
	}
}

func (s *StdoutOutput) label(recordType model.RecordType, color string) string {
	if s.colorize {
		return color + string(recordType) + colorReset
	}
	return string(recordType)
}
