package models

import "time"

// FactoryStatus is the registry-side state of a factory
type FactoryStatus string

const (
	FactoryUnregistered FactoryStatus = "unregistered"
	FactoryRegistered   FactoryStatus = "registered"
	FactoryRetired      FactoryStatus = "retired"
)

// Factory represents a factory known to a registry
type Factory struct {
	FactoryID  string        `json:"factory_id"`
	RegistryID string        `json:"registry_id"`
	Status     FactoryStatus `json:"status"`
	ExtraData  []byte        `json:"extra_data,omitempty"`

	AuthorizedAt time.Time  `json:"authorized_at"`
	RetiredAt    *time.Time `json:"retired_at,omitempty"`
}

// InstanceRecord is the provenance entry of an instance created through a factory
type InstanceRecord struct {
	// Identification
	InstanceID   string `json:"instance_id"`
	FactoryID    string `json:"factory_id"`
	RegistryID   string `json:"registry_id"`
	InstanceType string `json:"instance_type"`

	// Position in the registry's append-only list
	Index int `json:"index"`

	// Account that asked the factory for the instance
	Creator   string    `json:"creator"`
	CreatedAt time.Time `json:"created_at"`
}
