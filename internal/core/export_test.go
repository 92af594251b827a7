package core

import "time"

// Test hooks.

func (e *Extractor) SetClock(fn func() time.Time) { e.now = fn }

var (
	ParseAmount = parseAmount
	HumanizeAge = humanizeAge
)
