package activitylog

import (
	"fmt"
	"reflect"

	"github.com/c360studio/semstreams/component"
)

// activityLogSchema defines the configuration schema.
var activityLogSchema = component.GenerateConfigSchema(reflect.TypeOf(Config{}))

// Config holds configuration for the activity-log component.
type Config struct {
	// EventStreamName is the JetStream stream carrying submission events.
	EventStreamName string `json:"event_stream_name" schema:"type:string,description:JetStream stream for submission events,category:basic,default:SUBMISSION"`

	// ConsumerName is the durable consumer name. Durable so restarts
	// resume instead of replaying or dropping events.
	ConsumerName string `json:"consumer_name" schema:"type:string,description:Durable JetStream consumer name,category:advanced,default:activity-log"`
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		EventStreamName: "SUBMISSION",
		ConsumerName:    "activity-log",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.EventStreamName == "" {
		return fmt.Errorf("event_stream_name is required")
	}
	if c.ConsumerName == "" {
		return fmt.Errorf("consumer_name is required")
	}
	return nil
}
