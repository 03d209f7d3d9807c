package model

import "time"

// Product is one row of the destination table.
type Product struct {
	ProductID int    `json:"ProductId"`
	Name      string `json:"Name"`
	Cost      int    `json:"Cost"`
}

// TriggerMessage is a single queue message. Payload is opaque and passed
// through unmodified.
type TriggerMessage struct {
	ID         string            `json:"id"`
	Queue      string            `json:"queue"`
	Payload    string            `json:"payload"`
	ReceivedAt time.Time         `json:"received_at"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// ToMap converts the trigger to a map representation
func (m TriggerMessage) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"id":          m.ID,
		"queue":       m.Queue,
		"payload":     m.Payload,
		"received_at": m.ReceivedAt,
		"attributes":  m.Attributes,
	}
}

// ToMap converts the product to a map representation
func (p Product) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"ProductId": p.ProductID,
		"Name":      p.Name,
		"Cost":      p.Cost,
	}
}
