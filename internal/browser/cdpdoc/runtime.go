// internal/browser/cdpdoc/runtime.go
package cdpdoc

import (
	"context"
	"fmt"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
)

// ObjectGroup is the remote object group every handle is allocated in.
const ObjectGroup = "ghost"

// Runtime is the part of the CDP runtime domain the document needs.
type Runtime interface {
	Evaluate(ctx context.Context, expression string) (*runtime.RemoteObject, error)
	CallFunctionOn(ctx context.Context, object runtime.RemoteObjectID, declaration string, returnByValue bool) (*runtime.RemoteObject, error)
	Release(ctx context.Context, object runtime.RemoteObjectID) error
}

// RunFunc executes chromedp actions against the payment tab.
type RunFunc func(ctx context.Context, actions ...chromedp.Action) error

// CDPRuntime implements Runtime over a chromedp tab.
type CDPRuntime struct {
	run RunFunc
}

// NewCDPRuntime wraps run, usually a session's action runner.
func NewCDPRuntime(run RunFunc) *CDPRuntime {
	return &CDPRuntime{run: run}
}

func (r *CDPRuntime) Evaluate(ctx context.Context, expression string) (*runtime.RemoteObject, error) {
	var res *runtime.RemoteObject
	err := r.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, exc, err := runtime.Evaluate(expression).WithObjectGroup(ObjectGroup).Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		res = obj
		return nil
	}))
	return res, err
}

func (r *CDPRuntime) CallFunctionOn(ctx context.Context, object runtime.RemoteObjectID, declaration string, returnByValue bool) (*runtime.RemoteObject, error) {
	var res *runtime.RemoteObject
	err := r.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		obj, exc, err := runtime.CallFunctionOn(declaration).
			WithObjectID(object).
			WithObjectGroup(ObjectGroup).
			WithReturnByValue(returnByValue).
			Do(c)
		if err != nil {
			return err
		}
		if exc != nil {
			return exceptionError(exc)
		}
		res = obj
		return nil
	}))
	return res, err
}

func (r *CDPRuntime) Release(ctx context.Context, object runtime.RemoteObjectID) error {
	return r.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return runtime.ReleaseObject(object).Do(c)
	}))
}

// ReleaseAll frees every handle handed out so far, e.g. when the document is replaced.
func (r *CDPRuntime) ReleaseAll(ctx context.Context) error {
	return r.run(ctx, chromedp.ActionFunc(func(c context.Context) error {
		return runtime.ReleaseObjectGroup(ObjectGroup).Do(c)
	}))
}

func exceptionError(exc *runtime.ExceptionDetails) error {
	if exc.Exception != nil && exc.Exception.Description != "" {
		return fmt.Errorf("cdpdoc: script exception: %s", exc.Exception.Description)
	}
	return fmt.Errorf("cdpdoc: script exception: %s", exc.Text)
}
