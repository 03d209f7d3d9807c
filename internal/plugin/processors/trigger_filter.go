package processors

import (
	"regexp"

	"github.com/sliink/queuesync/internal/model"
	"github.com/sliink/queuesync/internal/plugin"
)

// TriggerFilter keeps triggers whose payload matches any configured pattern
// and copies named capture groups into the trigger attributes.
type TriggerFilter struct {
	plugin.BasePlugin
	patterns []*regexp.Regexp
}

// NewTriggerFilter creates a new trigger filter plugin
func NewTriggerFilter(id string) *TriggerFilter {
	return &TriggerFilter{
		BasePlugin: plugin.NewBasePlugin(id, "Trigger Filter", model.ProcessorPluginType),
		patterns:   make([]*regexp.Regexp, 0),
	}
}

// Initialize compiles the configured patterns
func (p *TriggerFilter) Initialize() bool {
	p.patterns = p.patterns[:0]
	for _, pat := range p.ConfigStringSlice("patterns") {
		regex, err := regexp.Compile(pat)
		if err != nil {
			return false
		}
		p.patterns = append(p.patterns, regex)
	}

	p.SetStatus(model.StatusInitialized)
	return len(p.patterns) > 0
}

// Start begins filter operation
func (p *TriggerFilter) Start() bool {
	p.SetStatus(model.StatusRunning)
	return true
}

// Stop halts filter operation
func (p *TriggerFilter) Stop() bool {
	p.SetStatus(model.StatusStopped)
	return true
}

// Validate requires at least one pattern and that every pattern compiles
func (p *TriggerFilter) Validate() bool {
	patterns := p.ConfigStringSlice("patterns")
	if len(patterns) == 0 {
		return false
	}
	for _, pat := range patterns {
		if _, err := regexp.Compile(pat); err != nil {
			return false
		}
	}
	return true
}

// Process drops triggers that match no pattern. Non-trigger batches pass
// through unchanged.
func (p *TriggerFilter) Process(batch *model.DataBatch) *model.DataBatch {
	if batch == nil || batch.Size() == 0 || batch.BatchType != model.TriggerRecordType {
		return batch
	}

	if p.GetStatus() != model.StatusRunning {
		return batch
	}

	resultBatch := batch.Derive(model.TriggerRecordType)
	for _, msg := range batch.Triggers {
		if matched, ok := p.match(msg); ok {
			resultBatch.AddTrigger(matched)
		}
	}

	return resultBatch
}

// match applies the first matching pattern to a trigger.
func (p *TriggerFilter) match(msg model.TriggerMessage) (model.TriggerMessage, bool) {
	for _, pattern := range p.patterns {
		matches := pattern.FindStringSubmatch(msg.Payload)
		if matches == nil {
			continue
		}

		attrs := make(map[string]string, len(msg.Attributes)+len(matches))
		for k, v := range msg.Attributes {
			attrs[k] = v
		}
		for i, name := range pattern.SubexpNames() {
			if i > 0 && name != "" {
				attrs[name] = matches[i]
			}
		}
		msg.Attributes = attrs
		return msg, true
	}
	return msg, false
}
