// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

// Command libfofbserver builds the FOFB co-simulation server as a shared
// library for GHDL's VHPIDIRECT interface:
//
//	go build -buildmode=c-shared -o libfofb_server.so ./cmd/libfofbserver
//
// Handles are opaque pointer sized values; 0 means creation failed. Logic
// vectors are written as 32 std_ulogic ordinals, MSB first.
package main

/*
#include <stdint.h>
*/
import "C"

import (
	"unsafe"

	"github.com/Thermoquad/fofbsim/pkg/fixedpoint"
	"github.com/Thermoquad/fofbsim/pkg/fofbserver"
)

//export new_fofb_server
func new_fofb_server(port C.uint32_t, gainFracWidth, coeffsFracWidth, bpmFracWidth C.int32_t) C.uintptr_t {
	return C.uintptr_t(lib.create(uint32(port), int32(gainFracWidth), int32(coeffsFracWidth), int32(bpmFracWidth)))
}

//export fofb_server_wait_con
func fofb_server_wait_con(h C.uintptr_t) {
	lib.waitCon(uint64(h))
}

//export fofb_server_wait_data
func fofb_server_wait_data(h C.uintptr_t, msgType *C.int32_t) {
	t := lib.waitData(uint64(h))
	if msgType != nil {
		*msgType = C.int32_t(t)
	}
}

//export fofb_server_read_coeff
func fofb_server_read_coeff(h C.uintptr_t, index C.uint32_t, coeff *C.uint8_t) {
	lib.readVector(uint64(h), "read_coeff", uint32(index), vectorBuf(coeff), (*fofbserver.Server).ReadCoefficient)
}

//export fofb_server_read_sp
func fofb_server_read_sp(h C.uintptr_t, index C.uint32_t, bpmSP *C.uint8_t) {
	lib.readVector(uint64(h), "read_sp", uint32(index), vectorBuf(bpmSP), (*fofbserver.Server).ReadSetPoint)
}

//export fofb_server_read_bpm_pos
func fofb_server_read_bpm_pos(h C.uintptr_t, index C.uint32_t, bpmPos *C.uint8_t) {
	lib.readVector(uint64(h), "read_bpm_pos", uint32(index), vectorBuf(bpmPos), (*fofbserver.Server).ReadPosition)
}

//export fofb_server_read_gain
func fofb_server_read_gain(h C.uintptr_t, gain *C.int32_t) {
	if g, ok := lib.readGain(uint64(h)); ok && gain != nil {
		*gain = C.int32_t(g)
	}
}

//export fofb_server_write_sp
func fofb_server_write_sp(h C.uintptr_t, correctorSP C.int32_t) {
	lib.writeSetPoint(uint64(h), int32(correctorSP))
}

//export fofb_server_delete
func fofb_server_delete(h C.uintptr_t) {
	lib.release(uint64(h))
}

// vectorBuf views a caller owned 32 byte buffer
func vectorBuf(p *C.uint8_t) *[fixedpoint.VectorWidth]byte {
	if p == nil {
		return nil
	}
	return (*[fixedpoint.VectorWidth]byte)(unsafe.Pointer(p))
}

func main() {}
