// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"fmt"
	"strings"
	"time"
)

// Statistics tracks received message counts and rates
type Statistics struct {
	StartTime      time.Time
	LastUpdateTime time.Time

	// Counters
	TotalMessages uint64
	DataMessages  uint64
	ParseErrors   uint64
	Disconnects   uint64
	SetPoints     uint64 // set-points written back to the client
	ByType        [numMsgTypes]uint64

	// Rates (calculated)
	MessageRate float64 // messages/sec
	ErrorRate   float64 // parse errors/sec
}

// NewStatistics creates a new statistics tracker
func NewStatistics() *Statistics {
	now := time.Now()
	return &Statistics{
		StartTime:      now,
		LastUpdateTime: now,
	}
}

// Update counts one message returned by the server
func (s *Statistics) Update(msgType MsgType) {
	s.TotalMessages++
	if int(msgType) >= 0 && int(msgType) < numMsgTypes {
		s.ByType[msgType]++
	}

	switch {
	case msgType == MsgParseError:
		s.ParseErrors++
	case msgType == MsgDisconnected:
		s.Disconnects++
	case msgType.HasData():
		s.DataMessages++
	}
	s.LastUpdateTime = time.Now()
}

// RecordSetPoint counts one set-point written back to the client
func (s *Statistics) RecordSetPoint() {
	s.SetPoints++
}

// Count returns how many messages of msgType were seen
func (s *Statistics) Count(msgType MsgType) uint64 {
	if int(msgType) < 0 || int(msgType) >= numMsgTypes {
		return 0
	}
	return s.ByType[msgType]
}

// CalculateRates calculates line and error rates
func (s *Statistics) CalculateRates() {
	elapsed := time.Since(s.StartTime).Seconds()
	if elapsed > 0 {
		s.MessageRate = float64(s.TotalMessages) / elapsed
		s.ErrorRate = float64(s.ParseErrors) / elapsed
	}
}

// String returns a formatted statistics summary
func (s *Statistics) String() string {
	s.CalculateRates()

	var errorPercent float64
	if s.TotalMessages > 0 {
		errorPercent = float64(s.ParseErrors) * 100.0 / float64(s.TotalMessages)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Statistics (%.0f seconds) ===\n", time.Since(s.StartTime).Seconds())
	fmt.Fprintf(&sb, "Total Messages:  %8d\n", s.TotalMessages)
	fmt.Fprintf(&sb, "Data Messages:   %8d\n", s.DataMessages)
	if s.ParseErrors > 0 {
		fmt.Fprintf(&sb, "Parse Errors:    %8d (%.1f%%)\n", s.ParseErrors, errorPercent)
	}
	for t := MsgCoefficients; t <= MsgExit; t++ {
		if t == MsgParseError || s.ByType[t] == 0 {
			continue
		}
		fmt.Fprintf(&sb, "  %-14s %6d\n", FormatMsgType(t)+":", s.ByType[t])
	}
	fmt.Fprintf(&sb, "Set-Points Sent: %8d\n", s.SetPoints)
	fmt.Fprintf(&sb, "Message Rate:    %8.1f msgs/sec\n", s.MessageRate)
	fmt.Fprintf(&sb, "Error Rate:      %8.1f errors/sec\n", s.ErrorRate)
	sb.WriteString("================================\n")

	return sb.String()
}

// Reset resets all statistics counters
func (s *Statistics) Reset() {
	*s = *NewStatistics()
}
