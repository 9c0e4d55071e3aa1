// Package mocks provides mock implementations for testing purposes.
package mocks

//go:generate mockgen -destination=mock_deliverer.go -package=mocks github.com/randalmurphal/eventbatch/pkg/eventbatch Deliverer
//go:generate mockgen -destination=mock_deadletter.go -package=mocks github.com/randalmurphal/eventbatch/pkg/eventbatch/deadletter Sink
