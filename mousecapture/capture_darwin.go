//go:build darwin && cgo

package mousecapture

/*
#cgo darwin LDFLAGS: -framework CoreGraphics -framework ApplicationServices -framework CoreFoundation
#include <ApplicationServices/ApplicationServices.h>
#include <CoreFoundation/CoreFoundation.h>
#include <stdbool.h>
#include <stdint.h>

extern CGEventRef goPointerEvent(CGEventTapProxy proxy, CGEventType type, CGEventRef event, void *userInfo);

static Boolean axTrusted(void) {
        return AXIsProcessTrusted();
}

static CGEventMask cgEventMaskBit(CGEventType type) {
        return ((CGEventMask)1) << type;
}

static CFMachPortRef createTap(uintptr_t handle, CGEventMask mask) {
        return CGEventTapCreate(kCGHIDEventTap,
                                kCGHeadInsertEventTap,
                                kCGEventTapOptionListenOnly,
                                mask,
                                goPointerEvent,
                                (void *)handle);
}

static CFRunLoopRef currentRunLoop(void) {
        return CFRunLoopGetCurrent();
}

static CFRunLoopSourceRef addTapSource(CFRunLoopRef loop, CFMachPortRef tap) {
        CFRunLoopSourceRef source = CFMachPortCreateRunLoopSource(kCFAllocatorDefault, tap, 0);
        if (source == NULL) {
                return NULL;
        }
        CFRunLoopAddSource(loop, source, kCFRunLoopCommonModes);
        return source;
}

static void enableTap(CFMachPortRef tap, bool on) {
        CGEventTapEnable(tap, on);
}

static void runLoopSlice(double seconds) {
        CFRunLoopRunInMode(kCFRunLoopDefaultMode, seconds, false);
}

static void stopRunLoop(CFRunLoopRef loop) {
        CFRunLoopStop(loop);
        CFRunLoopWakeUp(loop);
}

static void removeTap(CFRunLoopRef loop, CFRunLoopSourceRef source, CFMachPortRef tap) {
        if (source != NULL) {
                CFRunLoopRemoveSource(loop, source, kCFRunLoopCommonModes);
                CFRelease(source);
        }
        if (tap != NULL) {
                CFMachPortInvalidate(tap);
                CFRelease(tap);
        }
}

static double cgEventGetX(CGEventRef event) {
        return CGEventGetLocation(event).x;
}

static double cgEventGetY(CGEventRef event) {
        return CGEventGetLocation(event).y;
}
*/
import "C"

import (
	"runtime/cgo"
	"sync/atomic"
	"unsafe"
)

// runSlice bounds how long Run sits in CFRunLoopRunInMode before rechecking
// the sticky stop flag.
const runSlice = 0.25

type quartzMechanism struct{}

// Native returns the Quartz event tap mechanism.
func Native(opts Options) (Mechanism, error) {
	return quartzMechanism{}, nil
}

func (quartzMechanism) Name() string { return "quartz" }

func (quartzMechanism) Install(mask Mask, h Handler) (Tap, error) {
	if C.axTrusted() == C.Boolean(0) {
		return nil, ErrPermission
	}

	t := &quartzTap{mask: mask, handler: h}
	t.handle = cgo.NewHandle(t)

	var cgMask C.CGEventMask
	for _, k := range Kinds {
		if mask.Has(k) {
			cgMask |= C.cgEventMaskBit(quartzType(k))
		}
	}

	t.port = C.createTap(C.uintptr_t(t.handle), cgMask)
	if t.port == 0 {
		t.handle.Delete()
		return nil, ErrPermission
	}

	t.loop = C.currentRunLoop()
	t.source = C.addTapSource(t.loop, t.port)
	if t.source == 0 {
		C.removeTap(t.loop, 0, t.port)
		t.handle.Delete()
		return nil, ErrInstall
	}
	return t, nil
}

type quartzTap struct {
	mask    Mask
	handler Handler
	handle  cgo.Handle
	enabled atomic.Bool
	stopped atomic.Bool

	port   C.CFMachPortRef
	source C.CFRunLoopSourceRef
	loop   C.CFRunLoopRef
}

func (t *quartzTap) Enable() error {
	t.enabled.Store(true)
	C.enableTap(t.port, C.bool(true))
	return nil
}

func (t *quartzTap) Run() {
	for !t.stopped.Load() {
		C.runLoopSlice(C.double(runSlice))
	}
}

func (t *quartzTap) Stop() {
	if t.stopped.Swap(true) {
		return
	}
	C.stopRunLoop(t.loop)
}

func (t *quartzTap) Disable() {
	t.enabled.Store(false)
	C.enableTap(t.port, C.bool(false))
}

func (t *quartzTap) Remove() {
	C.removeTap(t.loop, t.source, t.port)
	t.port, t.source = 0, 0
	t.handle.Delete()
}

func quartzType(k Kind) C.CGEventType {
	switch k {
	case LeftDown:
		return C.kCGEventLeftMouseDown
	case LeftUp:
		return C.kCGEventLeftMouseUp
	case RightDown:
		return C.kCGEventRightMouseDown
	case RightUp:
		return C.kCGEventRightMouseUp
	case Move:
		return C.kCGEventMouseMoved
	case LeftDrag:
		return C.kCGEventLeftMouseDragged
	case RightDrag:
		return C.kCGEventRightMouseDragged
	}
	return C.kCGEventNull
}

func quartzKind(t C.CGEventType) (Kind, bool) {
	switch t {
	case C.kCGEventLeftMouseDown:
		return LeftDown, true
	case C.kCGEventLeftMouseUp:
		return LeftUp, true
	case C.kCGEventRightMouseDown:
		return RightDown, true
	case C.kCGEventRightMouseUp:
		return RightUp, true
	case C.kCGEventMouseMoved:
		return Move, true
	case C.kCGEventLeftMouseDragged:
		return LeftDrag, true
	case C.kCGEventRightMouseDragged:
		return RightDrag, true
	}
	return 0, false
}

//export goPointerEvent
func goPointerEvent(_ C.CGEventTapProxy, eventType C.CGEventType, event C.CGEventRef, userInfo unsafe.Pointer) C.CGEventRef {
	t, ok := cgo.Handle(uintptr(userInfo)).Value().(*quartzTap)
	if !ok {
		return event
	}

	// macOS disables a tap whose callback stalls; turn it back on.
	if eventType == C.kCGEventTapDisabledByTimeout || eventType == C.kCGEventTapDisabledByUserInput {
		if t.enabled.Load() {
			C.enableTap(t.port, C.bool(true))
		}
		return event
	}

	kind, ok := quartzKind(eventType)
	if !ok || !t.enabled.Load() || !t.mask.Has(kind) {
		return event
	}
	t.handler(kind, float64(C.cgEventGetX(event)), float64(C.cgEventGetY(event)))
	return event
}
