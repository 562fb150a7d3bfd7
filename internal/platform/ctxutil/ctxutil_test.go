package ctxutil

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestRequestDataRoundTrip(t *testing.T) {
	if got := UserID(context.Background()); got != uuid.Nil {
		t.Fatalf("empty ctx: want=Nil got=%v", got)
	}
	id := uuid.New()
	ctx := WithRequestData(context.Background(), &RequestData{UserID: id})
	if got := UserID(ctx); got != id {
		t.Fatalf("user id: want=%v got=%v", id, got)
	}
}

func TestTraceDataOnNilContext(t *testing.T) {
	var nilCtx context.Context
	ctx := WithTraceData(nilCtx, &TraceData{TraceID: "t", RequestID: "r"})
	td := GetTraceData(ctx)
	if td == nil || td.TraceID != "t" || td.RequestID != "r" {
		t.Fatalf("trace data: want t/r got=%+v", td)
	}
	if GetTraceData(nilCtx) != nil {
		t.Fatalf("nil ctx should have no trace data")
	}
}
