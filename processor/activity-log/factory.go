package activitylog

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the activity-log component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "activity-log",
		Factory:     NewComponent,
		Schema:      activityLogSchema,
		Type:        "processor",
		Protocol:    "http",
		Domain:      "hypha",
		Description: "Per-submission activity feed built from submission domain events",
		Version:     "0.1.0",
	})
}
