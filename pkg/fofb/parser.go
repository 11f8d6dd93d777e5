// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package fofb

import (
	"math"
	"strconv"
	"strings"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
)

// ParseLine tokenizes one protocol line, updates st and returns its type.
//
// Tokens are separated by single spaces, so repeated spaces produce empty
// tokens that fail numeric parsing. Value lists are written slot by slot: a
// token that is not a number stops the update, keeping the slots parsed
// before it, and the line is reported as MsgParseError. Missing tokens leave
// the remaining slots untouched and extra tokens are ignored.
//
// ParseLine has no side effects beyond st; acting on MsgDebug and
// MsgDisconnected is up to the caller.
func ParseLine(st *State, line string) MsgType {
	args := strings.Split(strings.Trim(line, " \r\n"), " ")

	switch args[0] {
	case VerbCoefficients:
		return parseNumList(st, args[1:], MsgCoefficients)
	case VerbSetPoints:
		return parseNumList(st, args[1:], MsgSetPoints)
	case VerbPositions:
		return parseNumList(st, args[1:], MsgPositions)
	case VerbGain:
		return parseGain(st, args[1:])
	case VerbClearAcc:
		return MsgClearAccumulator
	case VerbDebug:
		return MsgDebug
	case VerbDisconnect:
		return MsgDisconnected
	case VerbExit:
		return MsgExit
	default:
		return MsgParseError
	}
}

// parseNumList writes numbers into the buffer selected by msgType
func parseNumList(st *State, nums []string, msgType MsgType) MsgType {
	buf, fracWidth, ok := st.destination(msgType)
	if !ok {
		return MsgParseError
	}

	n := min(len(nums), len(buf))
	for i := 0; i < n; i++ {
		v, ok := parseFixed(nums[i], fracWidth)
		if !ok {
			return MsgParseError
		}
		buf[i] = v
	}
	return msgType
}

// parseGain is parseNumList for the single gain slot
func parseGain(st *State, nums []string) MsgType {
	if len(nums) == 0 {
		return MsgGain
	}
	v, ok := parseFixed(nums[0], st.widths.Gain)
	if !ok {
		return MsgParseError
	}
	st.Gain = v
	return MsgGain
}

// parseFixed parses one decimal token and converts it to fixed point
func parseFixed(tok string, fracWidth int) (int32, bool) {
	if !isDecimal(tok) {
		return 0, false
	}
	// ParseFloat refuses a signed NaN
	if strings.EqualFold(strings.TrimLeft(tok, "+-"), "nan") {
		return fixedpoint.ToFixed(math.NaN(), fracWidth), true
	}
	num, err := strconv.ParseFloat(tok, 64)
	if err != nil && !isRangeErr(err) {
		return 0, false
	}
	return fixedpoint.ToFixed(num, fracWidth), true
}

// isDecimal reports whether tok is a plain decimal literal:
// [+-] (inf | infinity | nan | digits [. digits] [e [+-] digits]),
// with at least one mantissa digit. Hex floats and '_' separators,
// which ParseFloat would otherwise accept, are rejected.
func isDecimal(tok string) bool {
	if tok != "" && (tok[0] == '+' || tok[0] == '-') {
		tok = tok[1:]
	}
	switch strings.ToLower(tok) {
	case "inf", "infinity", "nan":
		return true
	}

	i, digits := 0, 0
	for ; i < len(tok) && isDigit(tok[i]); i++ {
		digits++
	}
	if i < len(tok) && tok[i] == '.' {
		for i++; i < len(tok) && isDigit(tok[i]); i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(tok) && (tok[i] == 'e' || tok[i] == 'E') {
		i++
		if i < len(tok) && (tok[i] == '+' || tok[i] == '-') {
			i++
		}
		exp := 0
		for ; i < len(tok) && isDigit(tok[i]); i++ {
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(tok)
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// isRangeErr reports an out of range literal such as "1e400".
// ParseFloat returns ±Inf for these, which then saturates.
func isRangeErr(err error) bool {
	numErr, ok := err.(*strconv.NumError)
	return ok && numErr.Err == strconv.ErrRange
}
