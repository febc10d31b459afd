package service

import "time"

// Timeout constants for service operations
const (
	// DefaultCommandTimeout bounds a single external release command
	DefaultCommandTimeout = 30 * time.Minute
	// maxCommandLength bounds the configured release command
	maxCommandLength = 255
)

const githubActionsTrue = "true"
