package domain

import (
	"fmt"
	"time"
)

// RoundStatus represents the lifecycle phase of a round.
type RoundStatus string

const (
	RoundCooldown RoundStatus = "COOLDOWN"
	RoundActive   RoundStatus = "ACTIVE"
	RoundFinished RoundStatus = "FINISHED"
)

// StatusAt derives the phase of a round spanning [startAt, endAt] at now.
// Both boundaries belong to the active phase.
func StatusAt(startAt, endAt, now time.Time) RoundStatus {
	switch {
	case now.Before(startAt):
		return RoundCooldown
	case now.After(endAt):
		return RoundFinished
	default:
		return RoundActive
	}
}

// ParseRoundStatus validates a status received from a caller.
func ParseRoundStatus(s string) (RoundStatus, error) {
	switch st := RoundStatus(s); st {
	case RoundCooldown, RoundActive, RoundFinished:
		return st, nil
	}
	return "", NewValidationError("status", fmt.Sprintf("unknown round status %q", s))
}

// Rank orders statuses for listing: active rounds first, finished last.
func (s RoundStatus) Rank() int {
	switch s {
	case RoundActive:
		return 0
	case RoundCooldown:
		return 1
	default:
		return 2
	}
}
