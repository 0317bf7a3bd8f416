// This file was auto-generated using createmock. See the following page for
// more information:
//
//     https://github.com/jacobsa/oglemock
//

package mock_flash

import (
	fmt "fmt"
	flash "github.com/xipfs/xipfs/flash"
	oglemock "github.com/jacobsa/oglemock"
	runtime "runtime"
	unsafe "unsafe"
)

type MockDevice interface {
	flash.Device
	oglemock.MockObject
}

type mockDevice struct {
	controller  oglemock.Controller
	description string
}

func NewMockDevice(
	c oglemock.Controller,
	desc string) MockDevice {
	return &mockDevice{
		controller:  c,
		description: desc,
	}
}

func (m *mockDevice) Oglemock_Id() uintptr {
	return uintptr(unsafe.Pointer(m))
}

func (m *mockDevice) Oglemock_Description() string {
	return m.description
}

func (m *mockDevice) Size() (o0 int64) {
	// Get a file name and line number for the caller.
	_, file, line, _ := runtime.Caller(1)

	// Hand the call off to the controller, which does most of the work.
	retVals := m.controller.HandleMethodCall(
		m,
		"Size",
		file,
		line,
		[]interface{}{})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.Size: invalid return values: %v", retVals))
	}

	// o0 int64
	if retVals[0] != nil {
		o0 = retVals[0].(int64)
	}

	return
}

func (m *mockDevice) PageSize() (o0 int64) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"PageSize",
		file,
		line,
		[]interface{}{})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.PageSize: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(int64)
	}

	return
}

func (m *mockDevice) WriteBlockSize() (o0 int64) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"WriteBlockSize",
		file,
		line,
		[]interface{}{})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.WriteBlockSize: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(int64)
	}

	return
}

func (m *mockDevice) InFlash(p0 int64) (o0 bool) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"InFlash",
		file,
		line,
		[]interface{}{p0})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.InFlash: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(bool)
	}

	return
}

func (m *mockDevice) PageAligned(p0 int64) (o0 bool) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"PageAligned",
		file,
		line,
		[]interface{}{p0})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.PageAligned: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(bool)
	}

	return
}

func (m *mockDevice) Overflow(p0 int64, p1 int64) (o0 bool) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"Overflow",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.Overflow: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(bool)
	}

	return
}

func (m *mockDevice) PageOverflow(p0 int64, p1 int64) (o0 bool) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"PageOverflow",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.PageOverflow: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(bool)
	}

	return
}

func (m *mockDevice) ReadAt(p0 []byte, p1 int64) (o0 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"ReadAt",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.ReadAt: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(error)
	}

	return
}

func (m *mockDevice) ErasePage(p0 int64) (o0 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"ErasePage",
		file,
		line,
		[]interface{}{p0})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.ErasePage: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(error)
	}

	return
}

func (m *mockDevice) WriteUnaligned(p0 int64, p1 []byte) (o0 error) {
	_, file, line, _ := runtime.Caller(1)

	retVals := m.controller.HandleMethodCall(
		m,
		"WriteUnaligned",
		file,
		line,
		[]interface{}{p0, p1})

	if len(retVals) != 1 {
		panic(fmt.Sprintf("mockDevice.WriteUnaligned: invalid return values: %v", retVals))
	}

	if retVals[0] != nil {
		o0 = retVals[0].(error)
	}

	return
}
