package submissionapi

import (
	"fmt"

	"github.com/c360studio/semstreams/component"
)

// RegistryInterface defines the minimal interface needed for registration.
type RegistryInterface interface {
	RegisterWithConfig(component.RegistrationConfig) error
}

// Register registers the submission-api component with the given registry.
func Register(registry RegistryInterface) error {
	if registry == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	return registry.RegisterWithConfig(component.RegistrationConfig{
		Name:        "submission-api",
		Factory:     NewComponent,
		Schema:      submissionAPISchema,
		Type:        "processor",
		Protocol:    "http",
		Domain:      "hypha",
		Description: "HTTP API for submission workflow transitions, reviews, and determinations",
		Version:     "0.1.0",
	})
}
