package ctxutil

import (
	"context"
	"testing"
)

func TestRequestData(t *testing.T) {
	ctx := context.Background()
	if UserID(ctx) != "" {
		t.Fatalf("anonymous context should have no user")
	}
	ctx = WithRequestData(ctx, &RequestData{UserID: " user-1 "})
	if got := UserID(ctx); got != "user-1" {
		t.Fatalf("UserID: want user-1 got %q", got)
	}
	if GetRequestData(nil) != nil {
		t.Fatalf("nil ctx should yield nil request data")
	}
}

func TestTraceData(t *testing.T) {
	ctx := WithTraceData(context.Background(), &TraceData{TraceID: "t", RequestID: "r"})
	td := GetTraceData(ctx)
	if td == nil || td.TraceID != "t" || td.RequestID != "r" {
		t.Fatalf("trace data round trip failed: %#v", td)
	}
	if Default(nil) == nil {
		t.Fatalf("Default(nil) must return a context")
	}
}
