// Package services implements the driving port interfaces.
// Services contain the core business logic (ingestion, retrieval and
// grounded answering) and orchestrate calls to driven ports (adapters).
//
// Services are pure Go with no CGO or external dependencies beyond uuid.
package services
